// Package coco holds the class-name table of detectors trained on COCO.
package coco

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

var Names = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

type Table []string

func Default() Table {
	t := make(Table, len(Names))
	copy(t, Names)
	return t
}

// Load reads one class name per line. Blank lines are skipped.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open names file: %w", err)
	}
	defer f.Close()

	var t Table
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		t = append(t, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read names file: %w", err)
	}

	if len(t) == 0 {
		return nil, fmt.Errorf("names file %s is empty", path)
	}

	return t, nil
}

// Label maps a class index to its name, or "class_<id>" when out of range.
func (t Table) Label(classID int) string {
	if classID < 0 || classID >= len(t) {
		return fmt.Sprintf("class_%d", classID)
	}
	return t[classID]
}
