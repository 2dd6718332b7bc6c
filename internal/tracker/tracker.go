// Package tracker turns per-frame detections into a single aim point and a
// motion vector, preferring the target picked on the previous frame.
package tracker

import (
	"math"
	"slices"
)

const (
	// HeadshotOffset is the fraction of box height the aim point is raised by
	// when headshot bias is enabled.
	HeadshotOffset = 0.38
	// BodyOffset is the fraction used otherwise.
	BodyOffset = 0.2
)

// DetectionBox is one detector hit. Spatial fields are normalized to the
// capture region, so (0.5, 0.5) is the centre of the frame.
type DetectionBox struct {
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Point is a position in capture-region pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is a relative motion in pixels.
type Vector struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Ints truncates toward zero, matching how fractional motion is dropped
// before it reaches an input sink.
func (v Vector) Ints() (int, int) {
	return int(v.DX), int(v.DY)
}

// Options configures target selection.
type Options struct {
	FrameWidth  int
	FrameHeight int

	// Sensitivity scales the motion vector.
	Sensitivity float64
	// HeadshotBias raises the aim point to HeadshotOffset instead of
	// BodyOffset of the box height.
	HeadshotBias bool
	// PreferCenter ranks detections by distance to the frame centre when
	// there is no previous target.
	PreferCenter bool
	// MinConfidence drops weaker detections before ranking. Zero keeps all.
	MinConfidence float64
}

// Result is the outcome of one Update.
type Result struct {
	// Target is the chosen detection, nil when nothing was selected.
	Target *DetectionBox `json:"target,omitempty"`
	// Index is the chosen detection's position in the input slice, or -1.
	Index int `json:"index"`
	// Center is the chosen box centre in pixels.
	Center Point `json:"center"`
	// Aim is Center raised by the head offset.
	Aim Point `json:"aim"`
	// Motion is (Aim - frame centre) * Sensitivity.
	Motion Vector `json:"motion"`
	// State is the track state to pass into the next Update. Nil whenever
	// no target was selected.
	State *Point `json:"state,omitempty"`
	// Candidates is how many detections survived filtering.
	Candidates int `json:"candidates"`
}

// HasTarget reports whether a target was selected.
func (r Result) HasTarget() bool { return r.Target != nil }

// Tracker selects one target per frame. It holds configuration only; the
// track state is passed in and returned explicitly.
type Tracker struct {
	opts   Options
	center Point
}

// New creates a tracker for frames of the configured size.
func New(opts Options) *Tracker {
	if opts.Sensitivity == 0 {
		opts.Sensitivity = 1
	}
	return &Tracker{
		opts: opts,
		center: Point{
			X: float64(opts.FrameWidth) / 2,
			Y: float64(opts.FrameHeight) / 2,
		},
	}
}

type candidate struct {
	index  int
	box    DetectionBox
	center Point
	height float64
	key    float64
}

// Update selects a target from dets given the previous frame's state.
func (t *Tracker) Update(dets []DetectionBox, prev *Point) Result {
	cands := make([]candidate, 0, len(dets))
	for i, d := range dets {
		if t.opts.MinConfidence > 0 && d.Confidence < t.opts.MinConfidence {
			continue
		}
		cands = append(cands, candidate{
			index: i,
			box:   d,
			center: Point{
				X: d.CenterX * float64(t.opts.FrameWidth),
				Y: d.CenterY * float64(t.opts.FrameHeight),
			},
			height: d.Height * float64(t.opts.FrameHeight),
		})
	}

	if len(cands) == 0 {
		return Result{Index: -1}
	}

	if t.opts.PreferCenter {
		rank(cands, t.center)
	}
	// Continuity wins over centre preference; the stable sort keeps the
	// centre ordering among equally distant candidates.
	if prev != nil {
		rank(cands, *prev)
	}

	chosen := cands[0]
	box := chosen.box

	offset := chosen.height * BodyOffset
	if t.opts.HeadshotBias {
		offset = chosen.height * HeadshotOffset
	}
	aim := Point{X: chosen.center.X, Y: chosen.center.Y - offset}
	state := chosen.center

	return Result{
		Target: &box,
		Index:  chosen.index,
		Center: chosen.center,
		Aim:    aim,
		Motion: Vector{
			DX: (aim.X - t.center.X) * t.opts.Sensitivity,
			DY: (aim.Y - t.center.Y) * t.opts.Sensitivity,
		},
		State:      &state,
		Candidates: len(cands),
	}
}

// rank stable-sorts candidates ascending by Euclidean distance to p.
func rank(cands []candidate, p Point) {
	for i := range cands {
		cands[i].key = distance(cands[i].center, p)
	}
	slices.SortStableFunc(cands, func(a, b candidate) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		default:
			return 0
		}
	})
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
