package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/controller"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/utils"
)

// TimedPose is a nominal centroidal pose entry.
type TimedPose struct {
	Time float64                `json:"time"`
	Pose spatialmath.PoseConfig `json:"pose"`
}

// Scenario is a motion to run: initial contacts, nominal centroidal poses and step commands. Times
// are relative to the moment the scenario is applied.
type Scenario struct {
	// Duration is how long to run after applying the scenario [sec].
	Duration float64 `json:"duration"`
	// InitialContacts maps limb names to contact constraint documents. Missing limbs start free.
	InitialContacts map[string]utils.Document `json:"initialContacts"`
	NominalPoses    []TimedPose               `json:"nominalCentroidalPoseList"`
	StepCommands    []utils.Document          `json:"stepCommandList"`
}

// ReadScenario reads a scenario file after substituting environment variables.
func ReadScenario(filePath string) (*Scenario, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ScenarioFromReader(bytes.NewReader(buf))
}

// ScenarioFromReader reads a scenario from r.
func ScenarioFromReader(r io.Reader) (*Scenario, error) {
	doc, err := readDocument(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario")
	}
	var s Scenario
	if err := utils.DecodeDocument(doc, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode scenario")
	}
	if len(s.InitialContacts) == 0 {
		return nil, errors.New("scenario requires initialContacts")
	}
	if s.Duration < 0 {
		return nil, errors.Errorf("scenario duration must not be negative, got %v", s.Duration)
	}
	return &s, nil
}

// Apply resets c with the initial contacts, then queues the nominal poses and step commands
// relative to time zero.
func (s *Scenario) Apply(c *controller.Controller) error {
	if err := c.ResetFromDocuments(s.InitialContacts); err != nil {
		return err
	}
	for i, np := range s.NominalPoses {
		if !c.Centroidal().AppendNominalCentroidalPose(c.T()+np.Time, np.Pose.Pose()) {
			return errors.Errorf("nominal centroidal pose %d at %v rejected", i, np.Time)
		}
	}
	steps, err := c.Decoder().DecodeStepCommands(s.StepCommands)
	if err != nil {
		return err
	}
	for i, step := range steps {
		if !c.AppendStepCommand(step, true) {
			return errors.Errorf("step command %d for %s rejected", i, step.Limb)
		}
	}
	return nil
}

// EndTime returns Duration, or when it is zero, one second after the last swing ends.
func (s *Scenario) EndTime(c *controller.Controller) float64 {
	if s.Duration > 0 {
		return s.Duration
	}
	end := 0.0
	for _, m := range c.Limbs().Managers() {
		for _, sc := range m.SwingCommandQueue() {
			if sc.EndTime > end {
				end = sc.EndTime
			}
		}
	}
	return end + 1
}
