package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/isri-aist/MultiContactController/config"
	"github.com/isri-aist/MultiContactController/controller"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/sim"
	"github.com/isri-aist/MultiContactController/trace"
)

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func successf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.FgGreen).Fprintf(w, format+"\n", a...)
}

// newLogger logs to the error writer and, with --log-file, to a rotated file. The returned closer
// releases the file.
func newLogger(c *cli.Context) (logging.Logger, io.Closer) {
	logger := logging.NewBlankLogger("mcc")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if !c.Bool(flagDebug) {
		logger.SetLevel(logging.INFO)
	}
	var closer io.Closer = io.NopCloser(nil)
	if path := c.String(flagLogFile); path != "" {
		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 3,
		}
		logger.AddAppender(logging.NewWriterAppender(file))
		closer = file
	}
	return logger, closer
}

func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Read(path, logger)
}

type session struct {
	cfg        *config.Config
	scenario   *config.Scenario
	robot      *sim.Robot
	controller *controller.Controller
}

// newSession builds the robot and controller and applies the scenario. Invariant violations raised
// while doing so are returned as errors.
func newSession(c *cli.Context, logger logging.Logger, scenarioPath string) (s *session, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("controller stopped: %v", r)
		}
	}()
	s = &session{}
	if s.cfg, err = loadConfig(c, logger); err != nil {
		return nil, err
	}
	if s.robot, err = sim.NewRobot(s.cfg.Robot, logger.Sublogger("sim")); err != nil {
		return nil, err
	}
	if s.controller, err = controller.New(s.cfg.Controller, s.robot, logger); err != nil {
		return nil, err
	}
	if scenarioPath == "" {
		return s, nil
	}
	if s.scenario, err = config.ReadScenario(scenarioPath); err != nil {
		return nil, err
	}
	if err := s.scenario.Apply(s.controller); err != nil {
		return nil, errors.Wrapf(err, "applying scenario %q", scenarioPath)
	}
	return s, nil
}

// RunAction runs a scenario on the simulated robot and prints a summary.
func RunAction(c *cli.Context) (err error) {
	logger, closer := newLogger(c)
	defer func() { err = multierr.Combine(err, closer.Close()) }()
	s, err := newSession(c, logger, c.String(flagScenario))
	if err != nil {
		return err
	}

	duration := c.Float64(flagDuration)
	if duration <= 0 {
		duration = s.scenario.EndTime(s.controller)
	}
	cycles := int(math.Ceil(duration/s.controller.Dt() - 1e-9))

	rec := trace.NewRecorder()
	afterCycle := func(ctrl *controller.Controller) error {
		s.robot.Step()
		rec.Record(ctrl)
		return nil
	}
	if err := runCycles(c.Context, s.controller, c.Bool(flagRealtime), cycles, afterCycle); err != nil {
		return err
	}
	s.controller.Stop()

	summary, err := rec.Summarize()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", summary.String())

	if bins := c.Int(flagHistogram); bins > 0 {
		if err := rec.FprintMarginHistogram(c.App.Writer, bins); err != nil {
			return err
		}
	}
	if path := c.String(flagCSV); path != "" {
		if err := writeCSV(path, rec); err != nil {
			return err
		}
		printf(c.App.Writer, "trace written to %s", path)
	}
	if dir := c.String(flagPlot); dir != "" {
		if err := rec.Plot(dir); err != nil {
			return err
		}
		printf(c.App.Writer, "plots written to %s", dir)
	}
	return nil
}

func runCycles(
	ctx context.Context,
	ctrl *controller.Controller,
	realtime bool,
	cycles int,
	afterCycle func(*controller.Controller) error,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("controller stopped at t=%.3f: %v", ctrl.T(), r)
		}
	}()
	if realtime {
		if ctx == nil {
			ctx = context.Background()
		}
		return ctrl.Loop(ctx, clock.New(), controller.LoopConfig{Cycles: cycles, AfterCycle: afterCycle})
	}
	for i := 0; i < cycles; i++ {
		ctrl.Run()
		if err := afterCycle(ctrl); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, rec *trace.Recorder) error {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return multierr.Combine(rec.WriteCSV(f), f.Close())
}

// ValidateAction checks the configuration and, when given, that the scenario applies cleanly.
func ValidateAction(c *cli.Context) (err error) {
	logger, closer := newLogger(c)
	defer func() { err = multierr.Combine(err, closer.Close()) }()
	s, err := newSession(c, logger, c.String(flagScenario))
	if err != nil {
		return err
	}
	cm := s.cfg.Controller.Centroidal
	successf(c.App.Writer, "configuration is valid: %d limbs, %s centroidal planner, dt %g",
		len(s.cfg.Controller.Limbs), cm.Method, s.cfg.Controller.Dt)
	if s.scenario != nil {
		successf(c.App.Writer, "scenario is valid: %d step commands, ends at %.3f s",
			len(s.scenario.StepCommands), s.scenario.EndTime(s.controller))
	}
	return nil
}

// VersionAction prints the version of the tool.
func VersionAction(c *cli.Context) error {
	version := Version
	if version == "" {
		version = "(dev)"
	}
	printf(c.App.Writer, "mcc %s %s", version, GitRevision)
	return nil
}
