package spatialmath

import "github.com/pkg/errors"

// WeightedPose pairs a pose with a strictly positive weight.
type WeightedPose struct {
	Weight float64
	Pose   Pose
}

// WeightedAveragePose incrementally blends the poses, each new pose pulling the running average by
// its share of the accumulated weight. It returns an error when the list is empty or a weight is not
// positive.
func WeightedAveragePose(list []WeightedPose) (Pose, error) {
	if len(list) == 0 {
		return Pose{}, errors.New("weighted average of an empty pose list")
	}
	var total float64
	var avg Pose
	for i, wp := range list {
		if wp.Weight <= 0 {
			return Pose{}, errors.Errorf("weight must be positive, got %v at index %d", wp.Weight, i)
		}
		total += wp.Weight
		if i == 0 {
			avg = wp.Pose
			continue
		}
		avg = Interpolate(avg, wp.Pose, wp.Weight/total)
	}
	return avg, nil
}
