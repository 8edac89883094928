// Package controller runs the limb and centroidal managers of a multi-contact robot on a fixed control
// period.
package controller

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/centroidal"
	"github.com/isri-aist/MultiContactController/command"
	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/limb"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/task"
	"github.com/isri-aist/MultiContactController/utils"
)

// Robot is everything the controller reads from and writes to the robot and its whole-body solver.
type Robot interface {
	centroidal.RobotState
	centroidal.TaskTargets
	task.GripperSink
	LimbTasks() map[string]task.LimbTask
}

// Controller owns the control clock, the limb managers and the centroidal manager.
type Controller struct {
	cfg    Config
	robot  Robot
	logger logging.Logger

	// tick counts completed cycles; time is tick*dt to avoid accumulating rounding error.
	tick int64

	factory    *contact.Factory
	decoder    *command.Decoder
	limbs      *limb.ManagerSet
	centroidal *centroidal.Manager
}

// New returns a controller for robot. Reset must be called before the first Run.
func New(cfg Config, robot Robot, logger logging.Logger) (*Controller, error) {
	if err := cfg.Validate("controller"); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:     cfg,
		robot:   robot,
		logger:  logger,
		factory: contact.NewFactory(cfg.Contacts),
	}
	c.decoder = command.NewDecoder(c.factory, logger.Sublogger("command"))

	limbTasks := robot.LimbTasks()
	limbs, err := limb.NewManagerSet(cfg.Limbs, limbTasks, robot, c, logger.Sublogger("limb"))
	if err != nil {
		return nil, errors.Wrap(err, "limb manager set")
	}
	c.limbs = limbs

	cm, err := centroidal.NewManager(cfg.Centroidal, centroidal.Deps{
		Clock:     c,
		Limbs:     limbs,
		Robot:     robot,
		Targets:   robot,
		LimbTasks: limbTasks,
		Logger:    logger.Sublogger("centroidal"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "centroidal manager")
	}
	c.centroidal = cm
	return c, nil
}

// T returns the current control time [sec].
func (c *Controller) T() float64 { return float64(c.tick) * c.cfg.Dt }

// Dt returns the control period [sec].
func (c *Controller) Dt() float64 { return c.cfg.Dt }

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }

// Limbs returns the limb manager set.
func (c *Controller) Limbs() *limb.ManagerSet { return c.limbs }

// Centroidal returns the centroidal manager.
func (c *Controller) Centroidal() *centroidal.Manager { return c.centroidal }

// Factory returns the contact constraint factory built from the configured vertex sets.
func (c *Controller) Factory() *contact.Factory { return c.factory }

// Decoder returns the step command decoder.
func (c *Controller) Decoder() *command.Decoder { return c.decoder }

// Reset restarts the controller at time zero with the given initial contacts. Limbs missing from
// contacts start free.
func (c *Controller) Reset(contacts map[string]contact.Constraint) error {
	c.tick = 0
	for name := range contacts {
		if _, ok := c.limbs.Get(name); !ok {
			return errors.Errorf("initial contact for unknown limb %q", name)
		}
	}
	c.limbs.Reset(contacts)
	if err := c.centroidal.Reset(); err != nil {
		return errors.Wrap(err, "resetting centroidal manager")
	}
	c.logger.Infow("controller reset", "dt", c.cfg.Dt, "limbs", c.limbs.Limbs(), "contacts", len(contacts))
	return nil
}

// ResetFromDocuments is Reset with contacts decoded from constraint documents keyed by limb name.
// Documents missing a name or a pose take the limb name and the current limb surface pose.
func (c *Controller) ResetFromDocuments(docs map[string]utils.Document) error {
	limbTasks := c.robot.LimbTasks()
	contacts := map[string]contact.Constraint{}
	for name, doc := range docs {
		doc = utils.CopyDocument(doc)
		if doc == nil {
			continue
		}
		if _, ok := doc["name"]; !ok {
			doc["name"] = name
		}
		if _, ok := doc["pose"]; !ok {
			lt, ok := limbTasks[name]
			if !ok {
				return errors.Errorf("initial contact for unknown limb %q", name)
			}
			doc["pose"] = poseDocument(spatialmath.NewPoseConfig(lt.SurfacePose()))
		}
		constraint, err := c.factory.Decode(doc)
		if err != nil {
			return errors.Wrapf(err, "initial contact of %q", name)
		}
		contacts[name] = constraint
	}
	return c.Reset(contacts)
}

func poseDocument(cfg spatialmath.PoseConfig) utils.Document {
	return utils.Document{
		"translation": []interface{}{cfg.Translation[0], cfg.Translation[1], cfg.Translation[2]},
		"rotation":    []interface{}{cfg.Rotation[0], cfg.Rotation[1], cfg.Rotation[2]},
	}
}

// Run executes one control cycle at T and then advances the clock.
func (c *Controller) Run() {
	c.limbs.Update()
	c.centroidal.Update()
	c.tick++
}

// Stop stops every manager.
func (c *Controller) Stop() {
	c.limbs.Stop()
	c.centroidal.Stop()
	c.logger.Infow("controller stopped", "t", c.T())
}

// AppendStepCommand shifts step by the current time and hands it to its limb manager.
func (c *Controller) AppendStepCommand(step *command.StepCommand, relative bool) bool {
	if relative {
		step.SetBaseTime(c.T())
	}
	return c.limbs.AppendStepCommand(step)
}

// LoopConfig configures Loop.
type LoopConfig struct {
	// Cycles stops the loop after this many cycles. Zero runs until the context is done.
	Cycles int
	// AfterCycle is called after every cycle. A non-nil error stops the loop.
	AfterCycle func(c *Controller) error
}

// Loop calls Run once per control period of clk until the context is done, the cycle budget is
// exhausted, or AfterCycle fails.
func (c *Controller) Loop(ctx context.Context, clk clock.Clock, cfg LoopConfig) error {
	period := time.Duration(c.cfg.Dt * float64(time.Second))
	ticker := clk.Ticker(period)
	defer ticker.Stop()
	for i := 0; cfg.Cycles <= 0 || i < cfg.Cycles; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		c.Run()
		if cfg.AfterCycle != nil {
			if err := cfg.AfterCycle(c); err != nil {
				return err
			}
		}
	}
	return nil
}
