// Package evaluator scores finished sessions with an external service,
// either one HTTP call for every dimension or one Claude call per
// dimension. Replies are validated into model.RawScore at the boundary.
package evaluator

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/scoring"
)

// DimensionRef names a dimension the service should score.
type DimensionRef struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Request is the evaluation contract.
type Request struct {
	Responses           []string       `json:"responses"`
	ConversationContext string         `json:"conversationContext"`
	Dimensions          []DimensionRef `json:"dimensions,omitempty"`
}

// NewRequest builds a request for dims.
func NewRequest(dims []model.Dimension, in scoring.Input) Request {
	req := Request{
		Responses:           in.Responses,
		ConversationContext: in.Transcript,
	}
	if req.Responses == nil {
		req.Responses = []string{}
	}
	for _, d := range dims {
		req.Dimensions = append(req.Dimensions, DimensionRef{Key: d.Key, Label: d.Label})
	}
	return req
}

// RawFramework is one framework object as sent by the service. Numeric
// fields may arrive as numbers or numeric strings.
type RawFramework struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Score      any    `json:"score"`
	Summary    any    `json:"summary"`
	Confidence any    `json:"confidence"`
	Level      any    `json:"level"`
}

// RawScore converts the loose fields. Unparseable values become nil so
// Resolve applies the defaults.
func (f RawFramework) RawScore() model.RawScore {
	summary, _ := f.Summary.(string)
	return model.RawScore{
		Score:      toFloat64(f.Score),
		Summary:    summary,
		Confidence: toFloat64(f.Confidence),
		Level:      toFloat64(f.Level),
	}
}

// Response is the evaluation reply.
type Response struct {
	Frameworks []RawFramework `json:"frameworks"`
	Overall    model.Overall  `json:"overall"`
}

// Match keys each returned framework to a dimension by key, then by label.
// Frameworks that match nothing are dropped.
func (r Response) Match(dims []model.Dimension) map[string]model.RawScore {
	out := make(map[string]model.RawScore, len(dims))
	for _, f := range r.Frameworks {
		if d, ok := lookup(dims, f); ok {
			if _, dup := out[d.Key]; !dup {
				out[d.Key] = f.RawScore()
			}
		}
	}
	return out
}

func lookup(dims []model.Dimension, f RawFramework) (model.Dimension, bool) {
	key := strings.TrimSpace(f.Key)
	label := strings.TrimSpace(f.Label)
	for _, d := range dims {
		if key != "" && strings.EqualFold(d.Key, key) {
			return d, true
		}
	}
	for _, d := range dims {
		if label != "" && strings.EqualFold(d.Label, label) {
			return d, true
		}
	}
	return model.Dimension{}, false
}

func toFloat64(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case json.Number:
		p, err := n.Float64()
		if err != nil {
			return nil
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	return &f
}
