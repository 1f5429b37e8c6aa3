package evaluator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/scoring"
)

var testDims = []model.Dimension{
	{Key: "communication", Label: "Communication"},
	{Key: "resilience", Label: "Resilience"},
	{Key: "integrity", Label: "Integrity"},
	{Key: "innovation", Label: "Innovation"},
}

func TestToFloat64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{name: "float", in: 72.5, want: ptr(72.5)},
		{name: "int", in: 4, want: ptr(4)},
		{name: "numeric string", in: " 81 ", want: ptr(81)},
		{name: "json number", in: json.Number("0.9"), want: ptr(0.9)},
		{name: "word", in: "high", want: nil},
		{name: "nil", in: nil, want: nil},
		{name: "bool", in: true, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, toFloat64(tt.in))
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestResponseMatch(t *testing.T) {
	t.Parallel()

	body := `{
		"frameworks": [
			{"key": "Communication", "score": 82, "summary": "Clear.", "confidence": 0.9, "level": 4},
			{"label": "resilience", "score": "140", "confidence": "sure", "level": 9},
			{"key": "communication", "score": 10},
			{"key": "vision", "score": 70}
		],
		"overall": {"persona": "Steady Builder", "summary": "Solid."}
	}`
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	got := resp.Match(testDims)
	require.Len(t, got, 2)

	comm := got["communication"].Resolve(testDims[0])
	assert.Equal(t, 82, comm.Score)
	assert.Equal(t, 4, comm.Level)
	assert.Equal(t, "Clear.", comm.Summary)

	res := got["resilience"].Resolve(testDims[1])
	assert.Equal(t, 100, res.Score)
	assert.InDelta(t, model.DefaultConfidence, res.Confidence, 1e-9)
	assert.Equal(t, 5, res.Level)
	assert.NotEmpty(t, res.Summary)

	assert.Equal(t, "Steady Builder", resp.Overall.Persona)
}

func TestNewRequest(t *testing.T) {
	t.Parallel()

	req := NewRequest(testDims[:2], scoring.Input{Transcript: "Q: a\nA: b"})
	assert.Equal(t, []string{}, req.Responses)
	assert.Equal(t, "Q: a\nA: b", req.ConversationContext)
	assert.Equal(t, []DimensionRef{{Key: "communication", Label: "Communication"}, {Key: "resilience", Label: "Resilience"}}, req.Dimensions)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"conversationContext"`)
	assert.Contains(t, string(data), `"responses":[]`)
}
