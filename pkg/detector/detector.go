package detector

import (
	"SkiMonitor/internal/entity"
	"SkiMonitor/pkg/coco"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	inputSize = 640
	ratio     = 1.0 / 255.0
	// box fields ahead of the per-class scores in each output row
	boxFields = 4
)

var ErrEmptyFrame = errors.New("detector received an empty frame")

type Config struct {
	ModelPath      string
	NamesPath      string
	ScoreThreshold float32
	NMSThreshold   float32
}

type IDetector interface {
	Detect(ctx context.Context, frame *entity.Frame) ([]entity.Detection, error)
	Close() error
}

type yolo struct {
	net         gocv.Net
	params      gocv.ImageToBlobParams
	outputNames []string
	names       coco.Table
	cfg         Config
	mu          sync.Mutex
	log         *logrus.Logger
}

// New loads an ONNX export of a YOLOv8/YOLO11 detector on the CPU backend.
func New(cfg Config, logger *logrus.Logger) (IDetector, error) {
	names := coco.Default()
	if cfg.NamesPath != "" {
		loaded, err := coco.Load(cfg.NamesPath)
		if err != nil {
			return nil, err
		}
		names = loaded
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendOpenCV); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	outputNames := getOutputNames(&net)
	if len(outputNames) == 0 {
		net.Close()
		return nil, fmt.Errorf("model %s has no output layers", cfg.ModelPath)
	}

	params := gocv.NewImageToBlobParams(
		ratio,
		image.Pt(inputSize, inputSize),
		gocv.NewScalar(0, 0, 0, 0),
		false, // frames are already RGB
		gocv.MatTypeCV32F,
		gocv.DataLayoutNCHW,
		gocv.PaddingModeLetterbox,
		gocv.NewScalar(114, 114, 114, 0),
	)

	logger.WithFields(logrus.Fields{
		"model":   cfg.ModelPath,
		"classes": len(names),
		"outputs": outputNames,
	}).Info("Detector loaded")

	return &yolo{
		net:         net,
		params:      params,
		outputNames: outputNames,
		names:       names,
		cfg:         cfg,
		log:         logger,
	}, nil
}

func (y *yolo) Detect(ctx context.Context, frame *entity.Frame) ([]entity.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	img, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pixels)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}
	defer img.Close()

	y.mu.Lock()
	defer y.mu.Unlock()

	blob := gocv.BlobFromImageWithParams(img, y.params)
	defer blob.Close()

	y.net.SetInput(blob, "")

	outs := y.net.ForwardLayers(y.outputNames)
	defer func() {
		for _, out := range outs {
			out.Close()
		}
	}()

	boxes, confidences, classIDs := y.decode(outs)
	if len(boxes) == 0 {
		return nil, nil
	}

	imageBoxes := y.params.BlobRectsToImageRects(boxes, image.Pt(frame.Width, frame.Height))
	indices := gocv.NMSBoxes(imageBoxes, confidences, y.cfg.ScoreThreshold, y.cfg.NMSThreshold)

	bounds := image.Rect(0, 0, frame.Width, frame.Height)
	detections := make([]entity.Detection, 0, len(indices))
	for _, idx := range indices {
		r := imageBoxes[idx].Intersect(bounds)
		detections = append(detections, entity.Detection{
			ClassID:    classIDs[idx],
			Label:      y.names.Label(classIDs[idx]),
			Confidence: confidences[idx],
			Box: entity.BoundingBox{
				X1: r.Min.X,
				Y1: r.Min.Y,
				X2: r.Max.X,
				Y2: r.Max.Y,
			},
		})
	}

	return detections, nil
}

// decode reads [1, 4+classes, anchors] outputs into blob-space boxes.
func (y *yolo) decode(outs []gocv.Mat) ([]image.Rectangle, []float32, []int) {
	var (
		boxes       []image.Rectangle
		confidences []float32
		classIDs    []int
	)

	for _, out := range outs {
		transposed := gocv.NewMat()
		gocv.TransposeND(out, []int{0, 2, 1}, &transposed)

		sizes := transposed.Size()
		if len(sizes) < 3 {
			transposed.Close()
			continue
		}
		rows := transposed.Reshape(1, sizes[1])

		cols := rows.Cols()
		for i := 0; i < rows.Rows(); i++ {
			scores := rows.Region(image.Rect(boxFields, i, cols, i+1))
			_, confidence, _, classPoint := gocv.MinMaxLoc(scores)
			scores.Close()

			if confidence < y.cfg.ScoreThreshold {
				continue
			}

			cx := rows.GetFloatAt(i, 0)
			cy := rows.GetFloatAt(i, 1)
			w := rows.GetFloatAt(i, 2)
			h := rows.GetFloatAt(i, 3)

			boxes = append(boxes, image.Rect(
				int(cx-w/2),
				int(cy-h/2),
				int(cx+w/2),
				int(cy+h/2),
			))
			confidences = append(confidences, confidence)
			classIDs = append(classIDs, classPoint.X)
		}

		rows.Close()
		transposed.Close()
	}

	return boxes, confidences, classIDs
}

func (y *yolo) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}

func getOutputNames(net *gocv.Net) []string {
	var outputLayers []string
	for _, i := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(i)
		layerName := layer.GetName()
		if layerName != "_input" {
			outputLayers = append(outputLayers, layerName)
		}
	}

	return outputLayers
}
