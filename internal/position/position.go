// Package position turns a detected person's bounding box into a coarse
// left/right and near/far description.
package position

import (
	"SkiMonitor/internal/entity"
	"fmt"
)

const (
	DefaultCloseThreshold = 0.4

	PersonLabel = "person"
	Sentinel    = "Person detected: False, NA"
)

type Side string

const (
	// Right is reported for boxes centred in the left half of the frame.
	Right Side = "Right"
	Left  Side = "Left"
)

type Distance string

const (
	Close Distance = "Close"
	Far   Distance = "Far"
)

type Classification struct {
	Position Side
	Distance Distance
}

func (c Classification) String() string {
	return fmt.Sprintf("Person detected: %s, %s", c.Position, c.Distance)
}

// Classify assumes frameH > 0.
func Classify(box entity.BoundingBox, frameW, frameH int, closeThreshold float64) Classification {
	result := Classification{Position: Left, Distance: Far}

	if float64(box.CenterX()) < float64(frameW)/2 {
		result.Position = Right
	}

	if float64(box.Height())/float64(frameH) > closeThreshold {
		result.Distance = Close
	}

	return result
}

// Describe returns the person line for one frame: the classification of the
// last person box, or Sentinel when the frame holds no person.
func Describe(detections []entity.Detection, frameW, frameH int, closeThreshold float64) string {
	line := Sentinel

	for _, d := range detections {
		if d.Label != PersonLabel {
			continue
		}
		line = Classify(d.Box, frameW, frameH, closeThreshold).String()
	}

	return line
}
