package centroidal

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/isri-aist/MultiContactController/command"
	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/spatialmath"
)

func TestIntegrateRotation(t *testing.T) {
	q := spatialmath.ExpRot(r3.Vector{X: math.Pi / 2})

	// the increment is applied in the world frame, after q
	next := IntegrateRotation(q, r3.Vector{Z: 1}, r3.Vector{}, 0.1)
	test.That(t, spatialmath.QuatAlmostEqual(next, quat.Mul(spatialmath.ExpRot(r3.Vector{Z: 0.1}), q), 1e-12),
		test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(
		spatialmath.RotateVector(next, r3.Vector{Y: 1}), r3.Vector{Z: 1}, 1e-9), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(
		spatialmath.RotateVector(next, r3.Vector{X: 1}), r3.Vector{X: math.Cos(0.1), Y: math.Sin(0.1)}, 1e-9),
		test.ShouldBeTrue)

	// dt * (omega + dt/2 * alpha)
	next = IntegrateRotation(spatialmath.IdentityQuat(), r3.Vector{}, r3.Vector{Z: 2}, 0.1)
	test.That(t, spatialmath.LogRot(next).Z, test.ShouldAlmostEqual, 0.01, 1e-12)
}

func TestZMP(t *testing.T) {
	wrench := spatialmath.ForceVec{Force: r3.Vector{Z: 500}}
	zmp := ZMP(wrench, r3.Vector{X: 0.05, Z: 0.8}, r3.Vector{})
	test.That(t, spatialmath.R3VectorAlmostEqual(zmp, r3.Vector{X: 0.05}, 1e-12), test.ShouldBeTrue)

	// the moment about the com cancels the offset of the force
	wrench.Moment = r3.Vector{Y: 25}
	zmp = ZMP(wrench, r3.Vector{X: 0.05, Z: 0.8}, r3.Vector{})
	test.That(t, spatialmath.R3VectorAlmostEqual(zmp, r3.Vector{}, 1e-12), test.ShouldBeTrue)

	wrench.Moment = r3.Vector{Y: -25}
	zmp = ZMP(wrench, r3.Vector{X: 0.05, Z: 0.8}, r3.Vector{})
	test.That(t, spatialmath.R3VectorAlmostEqual(zmp, r3.Vector{X: 0.1}, 1e-12), test.ShouldBeTrue)

	origin := r3.Vector{X: 1, Y: 2, Z: 0.1}
	test.That(t, ZMP(spatialmath.ForceVec{Force: r3.Vector{Z: -1}}, r3.Vector{}, origin), test.ShouldResemble, origin)
	test.That(t, ZMP(spatialmath.ForceVec{}, r3.Vector{}, origin), test.ShouldResemble, origin)
}

func TestContactRegion(t *testing.T) {
	contacts := map[string]contact.Constraint{
		"LeftFoot":  footSurface("LeftFootPlane", footPose(0, 0.1)),
		"RightFoot": footSurface("RightFootPlane", footPose(0.2, -0.1)),
	}
	lo, hi := ContactRegion(contacts, r3.Vector{})
	test.That(t, spatialmath.R3VectorAlmostEqual(lo, r3.Vector{X: -0.1, Y: -0.15}, 1e-12), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(hi, r3.Vector{X: 0.3, Y: 0.15}, 1e-12), test.ShouldBeTrue)

	lo, hi = ContactRegion(nil, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, lo, test.ShouldResemble, r3.Vector{X: 1, Y: 2})
	test.That(t, hi, test.ShouldResemble, r3.Vector{X: 1, Y: 2})
}

func TestContactRegionWithoutContact(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	m := f.manager
	f.limbs.Reset(map[string]contact.Constraint{})

	m.contacts = nil
	m.lastAnchorPoint = r3.Vector{X: 0.1, Y: 0.05}
	f.robot.basePose = spatialmath.NewPoseFromPoint(r3.Vector{X: 0.3, Y: 0.2, Z: 1})
	m.updateMonitor()

	// the region collapses onto the last anchor point, where the zmp is also drawn
	cd := m.ControlData()
	test.That(t, cd.ContactRegionMin, test.ShouldResemble, r3.Vector{X: 0.1, Y: 0.05})
	test.That(t, cd.ContactRegionMax, test.ShouldResemble, r3.Vector{X: 0.1, Y: 0.05})
	test.That(t, cd.PlannedZMP, test.ShouldResemble, r3.Vector{X: 0.1, Y: 0.05})
}

func TestNominalCentroidalPose(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	m := f.manager
	f.clock.tick = 100

	test.That(t, m.IsFinished(0.5), test.ShouldBeTrue)
	test.That(t, m.AppendNominalCentroidalPose(0.4, spatialmath.NewZeroPose()), test.ShouldBeFalse)

	lowered := spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.9})
	test.That(t, m.AppendNominalCentroidalPose(1.0, lowered), test.ShouldBeTrue)
	test.That(t, m.AppendNominalCentroidalPose(0.8, spatialmath.NewZeroPose()), test.ShouldBeFalse)
	test.That(t, m.IsFinished(1.0), test.ShouldBeFalse)
	test.That(t, m.IsFinished(1.01), test.ShouldBeTrue)

	test.That(t, m.NominalCentroidalPose(0).Point.Z, test.ShouldAlmostEqual, 1.0)
	test.That(t, m.NominalCentroidalPose(0.99).Point.Z, test.ShouldAlmostEqual, 1.0)
	test.That(t, m.NominalCentroidalPose(1.0).Point.Z, test.ShouldAlmostEqual, 0.9)

	// same time replaces
	test.That(t, m.AppendNominalCentroidalPose(1.0, spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.85})),
		test.ShouldBeTrue)
	test.That(t, m.NominalCentroidalPose(2.0).Point.Z, test.ShouldAlmostEqual, 0.85)

	test.That(t, func() { m.NominalCentroidalPose(-0.1) }, test.ShouldPanic)
}

func TestCalcRefData(t *testing.T) {
	t.Run("both feet", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		ref := f.manager.CalcRefData(0)
		test.That(t, spatialmath.PoseAlmostEqual(ref.CentroidalPose,
			spatialmath.NewPoseFromPoint(r3.Vector{Z: 1}), 1e-9), test.ShouldBeTrue)
	})

	t.Run("world frame", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.NominalCentroidalPoseBaseFrame = BaseFrameWorld
		cfg.NominalCentroidalPose.Translation = [3]float64{0.3, 0, 0.9}
		f := newFixture(t, cfg)
		ref := f.manager.CalcRefData(0)
		test.That(t, ref.CentroidalPose.Point, test.ShouldResemble, r3.Vector{X: 0.3, Z: 0.9})
	})

	t.Run("single support", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		step := swingStep("LeftFoot", 1.0, 2.0, footPose(0.2, 0.1))
		test.That(t, f.limbs.AppendStepCommand(step), test.ShouldBeTrue)

		ref := f.manager.CalcRefData(1.5)
		test.That(t, spatialmath.R3VectorAlmostEqual(ref.CentroidalPose.Point,
			r3.Vector{Y: -0.1, Z: 1}, 1e-9), test.ShouldBeTrue)

		// after landing both feet count again
		ref = f.manager.CalcRefData(2.5)
		test.That(t, spatialmath.R3VectorAlmostEqual(ref.CentroidalPose.Point,
			r3.Vector{X: 0.1, Z: 1}, 1e-9), test.ShouldBeTrue)
	})

	t.Run("closest contacts", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LimbWeightListForRefData = map[string]float64{"LeftFoot": 1}
		f := newFixture(t, cfg)
		step := swingStep("LeftFoot", 1.0, 2.0, footPose(0.2, 0.1))
		test.That(t, f.limbs.AppendStepCommand(step), test.ShouldBeTrue)

		avg := f.manager.CalcLimbAveragePoseForRefData(1.5, false)
		test.That(t, spatialmath.R3VectorAlmostEqual(avg.Point, r3.Vector{X: 0.1, Y: 0.1}, 1e-6),
			test.ShouldBeTrue)
		test.That(t, func() { f.manager.CalcLimbAveragePoseForRefData(1.5, true) }, test.ShouldPanic)
	})

	t.Run("no future contact", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LimbWeightListForRefData = map[string]float64{"LeftFoot": 1}
		f := newFixture(t, cfg)
		test.That(t, f.limbs.AppendStepCommand(&command.StepCommand{
			Limb:            contact.LimbFromName("LeftFoot"),
			SwingCommand:    &command.SwingCommand{Type: command.Remove, StartTime: 1.0, EndTime: 2.0},
			ContactCommands: []*command.ContactCommand{{Time: 1.0}},
		}), test.ShouldBeTrue)
		test.That(t, func() { f.manager.CalcRefData(1.5) }, test.ShouldPanic)
	})

	t.Run("z policy", func(t *testing.T) {
		for _, tc := range []struct {
			policy string
			z      float64
		}{
			{RefComZAverage, 1.05},
			{RefComZConstant, 1.0},
			{RefComZMin, 1.0},
			{RefComZMax, 1.1},
		} {
			cfg := DefaultConfig()
			cfg.RefComZPolicy = tc.policy
			f := newFixture(t, cfg)
			step := swingStep("LeftFoot", 1.0, 2.0, spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1, Z: 0.1}))
			test.That(t, f.limbs.AppendStepCommand(step), test.ShouldBeTrue)
			ref := f.manager.CalcRefData(2.5)
			test.That(t, ref.CentroidalPose.Point.Z, test.ShouldAlmostEqual, tc.z, 1e-9)
		}
	})
}

func TestAnchorFrame(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.robot.limbPoses["LeftFoot"] = footPose(0.1, 0.1)
	f.robot.limbPoses["RightFoot"] = footPose(0.1, -0.1)

	control := f.manager.AnchorFrame(AnchorControl)
	test.That(t, spatialmath.R3VectorAlmostEqual(control.Point, r3.Vector{}, 1e-9), test.ShouldBeTrue)
	actual := f.manager.AnchorFrame(AnchorReal)
	test.That(t, spatialmath.R3VectorAlmostEqual(actual.Point, r3.Vector{X: 0.1}, 1e-9), test.ShouldBeTrue)

	cfg := DefaultConfig()
	cfg.UseTargetPoseForControlRobotAnchorFrame = false
	f2 := newFixture(t, cfg)
	f2.robot.limbPoses["LeftFoot"] = footPose(0.1, 0.1)
	f2.robot.limbPoses["RightFoot"] = footPose(0.1, -0.1)
	control = f2.manager.AnchorFrame(AnchorControl)
	test.That(t, spatialmath.R3VectorAlmostEqual(control.Point, r3.Vector{X: 0.1}, 1e-9), test.ShouldBeTrue)

	cfg.LimbWeightListForAnchorFrame = map[string]float64{"LeftHand": 1}
	f3 := newFixture(t, cfg)
	test.That(t, f3.manager.AnchorFrame(AnchorReal), test.ShouldResemble, f3.robot.basePose)
}

func TestManagerUpdatePreviewControl(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	for i := 0; i < 20; i++ {
		f.step()
	}
	cd := f.manager.ControlData()
	weight := testMass * gravity

	test.That(t, cd.PlannedCentroidalWrench.Force.Z, test.ShouldAlmostEqual, weight, weight*1e-2)
	test.That(t, cd.ProjectedCentroidalWrench.Force.Z, test.ShouldAlmostEqual, weight, weight*1e-2)
	test.That(t, spatialmath.R3VectorAlmostEqual(cd.PlannedCentroidalPose.Point, r3.Vector{Z: 1}, 1e-3),
		test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(cd.ProjectedZMP, r3.Vector{}, 1e-2), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(cd.ContactRegionMin, r3.Vector{X: -0.1, Y: -0.15}, 1e-9),
		test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(cd.ContactRegionMax, r3.Vector{X: 0.1, Y: 0.15}, 1e-9),
		test.ShouldBeTrue)

	test.That(t, f.targets.calls, test.ShouldEqual, 20)
	test.That(t, f.targets.com.Z, test.ShouldAlmostEqual, 1.0, 1e-3)
	for _, lt := range f.tasks {
		test.That(t, lt.wrenchCalls, test.ShouldEqual, 20)
		test.That(t, lt.targetWrench.Force.Z, test.ShouldAlmostEqual, weight/2, weight*1e-2)
	}
	test.That(t, f.manager.ContactList(), test.ShouldHaveLength, 2)
	test.That(t, f.manager.Distribution().Ratios, test.ShouldHaveLength, 2)

	f.manager.Stop()
	for _, lt := range f.tasks {
		test.That(t, lt.targetWrench, test.ShouldResemble, spatialmath.ForceVec{})
	}
}

func TestManagerPreviewControlStep(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	step := swingStep("LeftFoot", 0.55, 1.35, footPose(0.1, 0.1))
	test.That(t, f.limbs.AppendStepCommand(step), test.ShouldBeTrue)

	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := 0; i < 460; i++ {
		f.step()
		cd := f.manager.ControlData()
		com := cd.PlannedCentroidalPose.Point
		minY, maxY = math.Min(minY, com.Y), math.Max(maxY, com.Y)
		test.That(t, com.Z, test.ShouldAlmostEqual, 1.0, 5e-3)
		test.That(t, spatialmath.LogRot(cd.PlannedCentroidalPose.Orientation).Norm(), test.ShouldBeLessThan, 0.1)
	}

	// the com shifts over the right foot during the swing and settles between the feet after landing
	test.That(t, minY, test.ShouldBeBetween, -0.12, -0.08)
	test.That(t, maxY, test.ShouldBeLessThan, 0.02)
	cd := f.manager.ControlData()
	test.That(t, spatialmath.R3VectorAlmostEqual(cd.PlannedCentroidalPose.Point, r3.Vector{X: 0.05, Z: 1}, 1e-2),
		test.ShouldBeTrue)
	weight := testMass * gravity
	test.That(t, cd.ProjectedCentroidalWrench.Force.Z, test.ShouldAlmostEqual, weight, weight*1e-2)
}

func TestManagerUpdateStrategies(t *testing.T) {
	for _, method := range []Method{MethodDDP, MethodSRB} {
		t.Run(string(method), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Method = method
			cfg.DDP.HorizonDuration = 0.5
			cfg.SRB.HorizonDuration = 0.5
			f := newFixture(t, cfg)
			test.That(t, f.manager.Strategy().Method(), test.ShouldEqual, method)
			for i := 0; i < 5; i++ {
				f.step()
			}
			cd := f.manager.ControlData()
			test.That(t, cd.PlannedCentroidalWrench.Force.Z, test.ShouldBeGreaterThan, 0)
			test.That(t, math.IsNaN(cd.PlannedCentroidalPose.Point.Z), test.ShouldBeFalse)
			for _, lt := range f.tasks {
				test.That(t, lt.wrenchCalls, test.ShouldEqual, 5)
			}
		})
	}
}

func TestManagerFeedback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CentroidalGainP = spatialmath.MotionVec{Linear: r3.Vector{X: 100, Y: 100, Z: 100}}
	f := newFixture(t, cfg)
	f.robot.actualPose = spatialmath.NewPoseFromPoint(r3.Vector{X: 0.01, Z: 1})
	f.step()

	cd := f.manager.ControlData()
	test.That(t, cd.ControlCentroidalWrench.Force.X-cd.PlannedCentroidalWrench.Force.X,
		test.ShouldAlmostEqual, -1.0, 1e-9)
	test.That(t, cd.ActualCentroidalPose.Point.X, test.ShouldAlmostEqual, 0.01)

	cfg.EnableCentroidalFeedback = false
	f = newFixture(t, cfg)
	f.robot.actualPose = spatialmath.NewPoseFromPoint(r3.Vector{X: 0.01, Z: 1})
	f.step()
	cd = f.manager.ControlData()
	test.That(t, cd.ControlCentroidalWrench, test.ShouldResemble, cd.PlannedCentroidalWrench)
}

func TestManagerActualState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseActualStateForMpc = true
	f := newFixture(t, cfg)
	f.robot.actualPose = spatialmath.NewPoseFromPoint(r3.Vector{X: 0.02, Z: 1})
	f.tasks["LeftFoot"].measured = spatialmath.ForceVec{Force: r3.Vector{Z: 200}}
	f.tasks["RightFoot"].measured = spatialmath.ForceVec{Force: r3.Vector{Z: 300}}
	f.step()

	cd := f.manager.ControlData()
	test.That(t, cd.MpcCentroidalPose.Point.X, test.ShouldAlmostEqual, 0.02)
	test.That(t, cd.ActualCentroidalWrench.Force.Z, test.ShouldAlmostEqual, 500)
	// (0.1 left - 0.1 right) lever arms: 200*0.1 - 300*0.1 about x
	test.That(t, cd.ActualCentroidalWrench.Moment.X, test.ShouldAlmostEqual, -10, 1e-9)
	test.That(t, cd.ActualZMP.Y, test.ShouldAlmostEqual, -0.02, 1e-9)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("centroidal"), test.ShouldBeNil)

	cfg.Method = "MPC"
	test.That(t, cfg.Validate("centroidal"), test.ShouldNotBeNil)

	cfg = DefaultConfig()
	cfg.RefComZPolicy = "Median"
	cfg.LimbWeightListForRefData["LeftHand"] = 0
	cfg.PC.HorizonDt = 0
	err := cfg.Validate("centroidal")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "refComZPolicy")
	test.That(t, err.Error(), test.ShouldContainSubstring, "LeftHand")
	test.That(t, err.Error(), test.ShouldContainSubstring, "horizon")
}
