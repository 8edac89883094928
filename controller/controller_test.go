package controller

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/sim"
	"github.com/isri-aist/MultiContactController/utils"
)

var standing = map[string]utils.Document{
	"LeftFoot":  {"type": "Surface"},
	"RightFoot": {"type": "Surface"},
}

func newTestController(t *testing.T) (*Controller, *sim.Robot) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	robot, err := sim.NewRobot(sim.DefaultConfig(), logger.Sublogger("sim"))
	test.That(t, err, test.ShouldBeNil)
	c, err := New(DefaultConfig(), robot, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.ResetFromDocuments(standing), test.ShouldBeNil)
	return c, robot
}

func runCycles(c *Controller, robot *sim.Robot, n int) {
	for i := 0; i < n; i++ {
		c.Run()
		robot.Step()
	}
}

func totalTargetForce(robot *sim.Robot) r3.Vector {
	var total r3.Vector
	for _, name := range robot.LimbNames() {
		l, _ := robot.Limb(name)
		total = total.Add(l.TargetWrench().Force)
	}
	return total
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("controller"), test.ShouldBeNil)

	cfg.Dt = 0
	cfg.Limbs = append(cfg.Limbs, cfg.Limbs[0])
	err := cfg.Validate("controller")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "dt must be positive")
	test.That(t, err.Error(), test.ShouldContainSubstring, `duplicate limb "LeftFoot"`)

	cfg = DefaultConfig()
	cfg.Limbs = nil
	test.That(t, cfg.Validate("controller"), test.ShouldNotBeNil)
}

func TestNewMissingLimbTask(t *testing.T) {
	logger := logging.NewTestLogger(t)
	simCfg := sim.DefaultConfig()
	delete(simCfg.Limbs, "RightFoot")
	robot, err := sim.NewRobot(simCfg, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = New(DefaultConfig(), robot, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "RightFoot")
}

func TestReset(t *testing.T) {
	c, _ := newTestController(t)
	test.That(t, c.T(), test.ShouldEqual, 0)
	test.That(t, c.Dt(), test.ShouldEqual, DefaultDt)

	contacts := c.Limbs().ContactList(0)
	test.That(t, contacts, test.ShouldHaveLength, 2)
	test.That(t, contacts["LeftFoot"].Pose().Point.Y, test.ShouldAlmostEqual, 0.1)
	test.That(t, contacts["RightFoot"].Pose().Point.Y, test.ShouldAlmostEqual, -0.1)

	err := c.ResetFromDocuments(map[string]utils.Document{"LeftHand": {"type": "Surface"}})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "LeftHand")
}

func TestStanding(t *testing.T) {
	c, robot := newTestController(t)
	runCycles(c, robot, 100)
	test.That(t, c.T(), test.ShouldAlmostEqual, 0.5)

	weight := robot.Mass() * 9.80665
	total := totalTargetForce(robot)
	test.That(t, total.Z, test.ShouldAlmostEqual, weight, weight*0.01)

	com := robot.ControlCentroidalPose().Point
	test.That(t, com.X, test.ShouldAlmostEqual, 0, 1e-3)
	test.That(t, com.Y, test.ShouldAlmostEqual, 0, 1e-3)
	test.That(t, com.Z, test.ShouldAlmostEqual, 1, 1e-3)

	c.Stop()
	test.That(t, totalTargetForce(robot), test.ShouldResemble, r3.Vector{})
}

func TestStep(t *testing.T) {
	c, robot := newTestController(t)
	runCycles(c, robot, 10)

	step, err := c.Decoder().DecodeStepCommand(utils.Document{
		"limb":       "LeftFoot",
		"type":       "Add",
		"startTime":  0.5,
		"endTime":    1.3,
		"pose":       utils.Document{"translation": []interface{}{0.1, 0.1, 0.0}},
		"constraint": utils.Document{"type": "Surface"},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.AppendStepCommand(step, true), test.ShouldBeTrue)
	test.That(t, step.SwingCommand.StartTime, test.ShouldAlmostEqual, 0.55)

	// Overlapping steps are rejected.
	again, err := c.Decoder().DecodeStepCommand(utils.Document{
		"limb": "LeftFoot", "type": "Remove", "startTime": 0.0, "endTime": 0.5,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.AppendStepCommand(again, true), test.ShouldBeFalse)

	runCycles(c, robot, 200)
	left, _ := c.Limbs().Get("LeftFoot")
	test.That(t, left.IsExecutingSwing(), test.ShouldBeTrue)
	test.That(t, c.Limbs().ContactList(c.T()), test.ShouldHaveLength, 1)
	foot, _ := robot.Limb("LeftFoot")
	test.That(t, foot.TargetWrench().Force.Z, test.ShouldAlmostEqual, 0, 1e-6)

	runCycles(c, robot, 200)
	test.That(t, left.IsExecutingSwing(), test.ShouldBeFalse)
	test.That(t, c.Limbs().ContactList(c.T()), test.ShouldHaveLength, 2)
	test.That(t, foot.SurfacePose().Point.X, test.ShouldAlmostEqual, 0.1, 5e-3)
	test.That(t, foot.SurfacePose().Point.Z, test.ShouldAlmostEqual, 0, 5e-3)

	weight := robot.Mass() * 9.80665
	test.That(t, totalTargetForce(robot).Z, test.ShouldAlmostEqual, weight, weight*0.05)
}

func TestLoop(t *testing.T) {
	c, robot := newTestController(t)
	mockClock := clock.NewMock()

	var cycles int
	done := make(chan error, 1)
	go func() {
		done <- c.Loop(context.Background(), mockClock, LoopConfig{
			Cycles: 5,
			AfterCycle: func(*Controller) error {
				robot.Step()
				cycles++
				return nil
			},
		})
	}()
	err := advanceUntilDone(t, mockClock, done)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cycles, test.ShouldEqual, 5)
	test.That(t, c.T(), test.ShouldAlmostEqual, 5*DefaultDt)

	t.Run("callback error", func(t *testing.T) {
		errStop := errors.New("stop")
		go func() {
			done <- c.Loop(context.Background(), mockClock, LoopConfig{
				AfterCycle: func(*Controller) error { return errStop },
			})
		}()
		err := advanceUntilDone(t, mockClock, done)
		test.That(t, err, test.ShouldEqual, errStop)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := c.Loop(ctx, mockClock, LoopConfig{})
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	})
}

func advanceUntilDone(t *testing.T, mockClock *clock.Mock, done <-chan error) error {
	t.Helper()
	for i := 0; i < 1000; i++ {
		select {
		case err := <-done:
			return err
		default:
			mockClock.Add(time.Duration(DefaultDt * float64(time.Second)))
		}
	}
	t.Fatal("loop did not finish")
	return nil
}
