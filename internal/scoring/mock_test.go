package scoring

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/assessment/internal/model"
)

type mockDimensionEvaluator struct {
	mock.Mock
}

func (m *mockDimensionEvaluator) EvaluateDimension(ctx context.Context, dim model.Dimension, in Input) (model.RawScore, error) {
	args := m.Called(ctx, dim, in)
	return args.Get(0).(model.RawScore), args.Error(1)
}

type mockPersonaEvaluator struct {
	mock.Mock
}

func (m *mockPersonaEvaluator) EvaluatePersona(ctx context.Context, in Input, scores []model.FrameworkScore) (model.Overall, error) {
	args := m.Called(ctx, in, scores)
	return args.Get(0).(model.Overall), args.Error(1)
}

type mockBulkEvaluator struct {
	mock.Mock
}

func (m *mockBulkEvaluator) Evaluate(ctx context.Context, dims []model.Dimension, in Input) (BulkResult, error) {
	args := m.Called(ctx, dims, in)
	return args.Get(0).(BulkResult), args.Error(1)
}

func dimKey(key string) any {
	return mock.MatchedBy(func(d model.Dimension) bool { return d.Key == key })
}

func f(v float64) *float64 { return &v }
