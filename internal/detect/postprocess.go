package detect

import (
	"fmt"
	"slices"

	"github.com/bryanchriswhite/FocusTracker/internal/tracker"
)

// Candidate is a decoded box in network input pixels, corner form.
type Candidate struct {
	X1, Y1, X2, Y2 float64
	Score          float64
	Class          int
}

func (c Candidate) area() float64 {
	return max(0, c.X2-c.X1) * max(0, c.Y2-c.Y1)
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b Candidate) float64 {
	ix := min(a.X2, b.X2) - max(a.X1, b.X1)
	iy := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// DecodeYOLOv5 parses a raw YOLOv5 output tensor of rows x (5 + classes)
// values laid out as cx, cy, w, h, objectness, class scores. Rows whose
// best objectness*class score is below conf are dropped.
func DecodeYOLOv5(raw []float32, rows, cols int, conf float64, classes []int) ([]Candidate, error) {
	if cols < 6 {
		return nil, fmt.Errorf("yolo output needs at least 6 columns, got %d", cols)
	}
	if len(raw) < rows*cols {
		return nil, fmt.Errorf("yolo output holds %d values, want %d", len(raw), rows*cols)
	}

	var out []Candidate
	for r := 0; r < rows; r++ {
		row := raw[r*cols : (r+1)*cols]
		obj := float64(row[4])
		if obj < conf {
			continue
		}

		best, bestScore := -1, 0.0
		for c := 5; c < cols; c++ {
			if s := float64(row[c]) * obj; s > bestScore {
				best, bestScore = c-5, s
			}
		}
		if best < 0 || bestScore < conf {
			continue
		}
		if len(classes) > 0 && !slices.Contains(classes, best) {
			continue
		}

		cx, cy := float64(row[0]), float64(row[1])
		hw, hh := float64(row[2])/2, float64(row[3])/2
		out = append(out, Candidate{
			X1: cx - hw, Y1: cy - hh,
			X2: cx + hw, Y2: cy + hh,
			Score: bestScore,
			Class: best,
		})
	}
	return out, nil
}

// NonMaxSuppression keeps the highest scoring boxes, dropping any box that
// overlaps an already kept box of the same class by more than iou. At most
// maxDet boxes are returned (0 means unlimited), highest score first.
func NonMaxSuppression(cands []Candidate, iou float64, maxDet int) []Candidate {
	sorted := slices.Clone(cands)
	slices.SortStableFunc(sorted, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	var kept []Candidate
	for _, c := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Class == c.Class && IoU(k, c) > iou {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		kept = append(kept, c)
		if maxDet > 0 && len(kept) >= maxDet {
			break
		}
	}
	return kept
}

// Normalize converts corner boxes in inputSize x inputSize pixels into
// centre boxes normalized to [0,1], clamped to the frame.
func Normalize(cands []Candidate, inputSize int) []tracker.DetectionBox {
	s := float64(inputSize)
	out := make([]tracker.DetectionBox, 0, len(cands))
	for _, c := range cands {
		x1, y1 := clamp01(c.X1/s), clamp01(c.Y1/s)
		x2, y2 := clamp01(c.X2/s), clamp01(c.Y2/s)
		out = append(out, tracker.DetectionBox{
			CenterX:    (x1 + x2) / 2,
			CenterY:    (y1 + y2) / 2,
			Width:      x2 - x1,
			Height:     y2 - y1,
			Confidence: c.Score,
		})
	}
	return out
}

// Postprocess runs decode, suppression and normalization in one step.
func Postprocess(raw []float32, rows, cols, inputSize int, cfg Config) ([]tracker.DetectionBox, error) {
	cands, err := DecodeYOLOv5(raw, rows, cols, cfg.Confidence, cfg.Classes)
	if err != nil {
		return nil, err
	}
	return Normalize(NonMaxSuppression(cands, cfg.IoU, cfg.MaxDetections), inputSize), nil
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
