package command

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/utils"
)

type swingDoc struct {
	Type      string                  `json:"type"`
	StartTime *float64                `json:"startTime"`
	EndTime   *float64                `json:"endTime"`
	Pose      *spatialmath.PoseConfig `json:"pose"`
	Config    utils.Document          `json:"config"`
}

type contactDoc struct {
	Time       *float64       `json:"time"`
	Constraint utils.Document `json:"constraint"`
}

type gripperDoc struct {
	Time   *float64       `json:"time"`
	Name   string         `json:"name"`
	Config utils.Document `json:"config"`
}

type stepDoc struct {
	Limb               string         `json:"limb"`
	Pose               utils.Document `json:"pose"`
	SwingCommand       *swingDoc      `json:"swingCommand"`
	ContactCommandList []contactDoc   `json:"contactCommandList"`
	GripperCommandList []gripperDoc   `json:"gripperCommandList"`
}

var simpleKeys = map[string]bool{
	"limb": true, "type": true, "startTime": true, "endTime": true, "pose": true,
	"constraint": true, "swingConfig": true, "gripperCommandList": true,
}

// Decoder turns step command documents into StepCommands.
type Decoder struct {
	factory *contact.Factory
	logger  logging.Logger
}

// NewDecoder returns a decoder building contact constraints with factory.
func NewDecoder(factory *contact.Factory, logger logging.Logger) *Decoder {
	return &Decoder{factory: factory, logger: logger}
}

// DecodeStepCommand decodes either the full format (swingCommand, contactCommandList,
// gripperCommandList) or the simple format:
//
//	limb: LeftFoot
//	type: Add
//	startTime: 2.0
//	endTime: 3.0
//	pose:
//	  translation: [0.2, 0.1, 0]
//	constraint:
//	  type: Surface
//	swingConfig:
//	  approachOffset: [0, 0, 0.1]
//
// A simple command opens a no-contact entry at startTime and, for Add, a contact at endTime. Contact
// constraints default their name and vertex set to the limb name and their pose to the step pose.
func (d *Decoder) DecodeStepCommand(doc utils.Document) (*StepCommand, error) {
	doc, err := utils.AssertType[utils.Document](utils.NormalizeDocument(utils.CopyDocument(doc)))
	if err != nil {
		return nil, errors.Wrap(err, "normalizing step command")
	}
	_, hasSwing := doc["swingCommand"]
	_, hasContacts := doc["contactCommandList"]
	if !hasSwing && !hasContacts {
		if doc, err = d.expandSimple(doc); err != nil {
			return nil, err
		}
	}

	var sd stepDoc
	if err := utils.DecodeDocument(doc, &sd); err != nil {
		return nil, errors.Wrap(err, "decoding step command")
	}
	if sd.Limb == "" {
		return nil, errors.New("step command requires a limb")
	}
	step := &StepCommand{Limb: contact.LimbFromName(sd.Limb)}

	if sd.SwingCommand != nil {
		swing, err := d.decodeSwing(sd.SwingCommand, sd.Pose)
		if err != nil {
			return nil, err
		}
		step.SwingCommand = swing
	}

	for idx, cd := range sd.ContactCommandList {
		if cd.Time == nil {
			return nil, errors.Errorf("contactCommandList.%d requires a time", idx)
		}
		cc := &ContactCommand{Time: *cd.Time}
		if cd.Constraint != nil {
			constraintDoc := utils.CopyDocument(cd.Constraint)
			if _, ok := constraintDoc["name"]; !ok {
				constraintDoc["name"] = sd.Limb
			}
			if _, ok := constraintDoc["verticesName"]; !ok {
				constraintDoc["verticesName"] = sd.Limb
			}
			if _, ok := constraintDoc["pose"]; !ok && sd.Pose != nil {
				constraintDoc["pose"] = sd.Pose
			}
			constraint, err := d.factory.Decode(constraintDoc)
			if err != nil {
				return nil, errors.Wrapf(err, "contactCommandList.%d", idx)
			}
			cc.Constraint = constraint
		}
		step.ContactCommands = append(step.ContactCommands, cc)
	}
	sort.SliceStable(step.ContactCommands, func(i, j int) bool {
		return step.ContactCommands[i].Time < step.ContactCommands[j].Time
	})
	for i := 1; i < len(step.ContactCommands); i++ {
		if step.ContactCommands[i].Time == step.ContactCommands[i-1].Time {
			return nil, errors.Errorf("duplicate contact command time %v", step.ContactCommands[i].Time)
		}
	}

	for idx, gd := range sd.GripperCommandList {
		if gd.Time == nil || gd.Name == "" {
			return nil, errors.Errorf("gripperCommandList.%d requires a time and a name", idx)
		}
		step.GripperCommands = append(step.GripperCommands, &GripperCommand{Time: *gd.Time, Name: gd.Name, Config: gd.Config})
	}
	sort.SliceStable(step.GripperCommands, func(i, j int) bool {
		return step.GripperCommands[i].Time < step.GripperCommands[j].Time
	})

	return step, nil
}

func (d *Decoder) decodeSwing(sd *swingDoc, stepPose utils.Document) (*SwingCommand, error) {
	typ, err := ParseSwingType(sd.Type)
	if err != nil {
		return nil, err
	}
	if sd.StartTime == nil || sd.EndTime == nil {
		return nil, errors.New("swing command requires startTime and endTime")
	}
	pose := spatialmath.NewZeroPose()
	switch typ {
	case Add:
		switch {
		case sd.Pose != nil:
			pose = sd.Pose.Pose()
		case stepPose != nil:
			var pc spatialmath.PoseConfig
			if err := utils.DecodeDocument(stepPose, &pc); err != nil {
				return nil, errors.Wrap(err, "decoding step pose")
			}
			pose = pc.Pose()
		default:
			return nil, errors.New("add swing command requires a pose")
		}
	case Remove:
		if sd.Pose != nil {
			d.logger.Error("pose entry is not used in the remove type command")
		}
	}
	return NewSwingCommand(typ, *sd.StartTime, *sd.EndTime, pose, sd.Config)
}

func (d *Decoder) expandSimple(doc utils.Document) (utils.Document, error) {
	for key := range doc {
		if !simpleKeys[key] {
			return nil, errors.Errorf("unknown step command key %q", key)
		}
	}
	typStr, _ := doc["type"].(string)
	typ, err := ParseSwingType(typStr)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"limb", "startTime", "endTime"} {
		if _, ok := doc[key]; !ok {
			return nil, errors.Errorf("step command requires %s", key)
		}
	}

	full := utils.Document{"limb": doc["limb"]}
	if gl, ok := doc["gripperCommandList"]; ok {
		full["gripperCommandList"] = gl
	}
	if typ == Add {
		if _, ok := doc["pose"]; !ok {
			return nil, errors.New("add step command requires a pose")
		}
		if doc["constraint"] == nil {
			return nil, errors.New("add step command requires a constraint")
		}
		full["pose"] = doc["pose"]
	} else {
		if _, ok := doc["pose"]; ok {
			d.logger.Error("pose entry is not used in the remove type command")
		}
		if _, ok := doc["constraint"]; ok {
			d.logger.Error("constraint entry is not used in the remove type command")
		}
	}

	swing := utils.Document{"type": doc["type"], "startTime": doc["startTime"], "endTime": doc["endTime"]}
	if sc, ok := doc["swingConfig"]; ok {
		swing["config"] = sc
	}
	full["swingCommand"] = swing

	contacts := []interface{}{utils.Document{"time": doc["startTime"], "constraint": nil}}
	if typ == Add {
		contacts = append(contacts, utils.Document{"time": doc["endTime"], "constraint": doc["constraint"]})
	}
	full["contactCommandList"] = contacts
	return full, nil
}

// DecodeStepCommands decodes a list of step command documents, stopping at the first error.
func (d *Decoder) DecodeStepCommands(docs []utils.Document) ([]*StepCommand, error) {
	steps := make([]*StepCommand, 0, len(docs))
	for idx, doc := range docs {
		step, err := d.DecodeStepCommand(doc)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("step command %d", idx))
		}
		steps = append(steps, step)
	}
	return steps, nil
}
