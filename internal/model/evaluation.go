package model

import (
	"math"
	"strings"
)

// Dimension is one leadership competency axis scored independently.
type Dimension struct {
	Key         string   `json:"key" yaml:"key"`
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description" yaml:"description"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
}

// FrameworkScore is the score of one dimension.
type FrameworkScore struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Score      int     `json:"score"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
	Level      int     `json:"level"`
	// Source is "delegated" or "fallback".
	Source string `json:"source,omitempty"`
}

// Overall is the session-level verdict.
type Overall struct {
	Persona string `json:"persona"`
	Summary string `json:"summary"`
}

// EvaluationResult is produced once per completed session. Frameworks are
// in dimension catalog order.
type EvaluationResult struct {
	Frameworks   []FrameworkScore `json:"frameworks"`
	Overall      Overall          `json:"overall"`
	AverageScore float64          `json:"average_score"`
	Strengths    []string         `json:"strengths,omitempty"`
	GrowthAreas  []string         `json:"growth_areas,omitempty"`
	// Mode is the scoring path that produced the frameworks.
	Mode string `json:"mode,omitempty"`
}

// Defaults applied to missing fields of a delegated score.
const (
	DefaultScore      = 60
	DefaultConfidence = 0.7
	DefaultLevel      = 3
)

// RawScore is a delegated score as decoded at the service boundary.
// Nil fields were absent or not numeric.
type RawScore struct {
	Score      *float64
	Summary    string
	Confidence *float64
	Level      *float64
}

// Resolve clamps out-of-range fields and defaults missing ones so the
// result always satisfies the FrameworkScore invariants.
func (r RawScore) Resolve(dim Dimension) FrameworkScore {
	fs := FrameworkScore{
		Key:        dim.Key,
		Label:      dim.Label,
		Score:      DefaultScore,
		Confidence: DefaultConfidence,
		Level:      DefaultLevel,
		Summary:    strings.TrimSpace(r.Summary),
	}
	if v, ok := finite(r.Score); ok {
		fs.Score = ClampInt(int(math.Round(v)), 0, 100)
	}
	if v, ok := finite(r.Confidence); ok {
		fs.Confidence = ClampFloat(v, 0, 1)
	}
	if v, ok := finite(r.Level); ok {
		fs.Level = ClampInt(int(math.Round(v)), 1, 5)
	}
	if fs.Summary == "" {
		fs.Summary = dim.Label + " was assessed from the conversation."
	}
	return fs
}

func finite(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

// LevelForScore maps a 0–100 score onto a 1–5 level.
func LevelForScore(score int) int {
	switch {
	case score >= 85:
		return 5
	case score >= 70:
		return 4
	case score >= 55:
		return 3
	case score >= 40:
		return 2
	default:
		return 1
	}
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// ClampFloat bounds v to [lo, hi].
func ClampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
