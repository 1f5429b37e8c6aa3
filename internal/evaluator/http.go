package evaluator

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/assessment/internal/apiclient"
	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/scoring"
)

// HTTPClient calls an evaluation service at POST {base}/evaluations.
type HTTPClient struct {
	api *apiclient.Client
}

// NewHTTPClient creates an HTTP bulk evaluator.
func NewHTTPClient(baseURL, key string, opts ...apiclient.Option) *HTTPClient {
	return &HTTPClient{api: apiclient.New("evaluator", baseURL, key, opts...)}
}

// Evaluate scores every dimension in one call.
func (c *HTTPClient) Evaluate(ctx context.Context, dims []model.Dimension, in scoring.Input) (scoring.BulkResult, error) {
	var resp Response
	if err := c.api.PostJSON(ctx, "/evaluations", NewRequest(dims, in), &resp); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return scoring.BulkResult{}, eris.Wrapf(model.ErrEvaluationTimeout, "evaluator: %v", err)
		}
		return scoring.BulkResult{}, eris.Wrapf(model.ErrEvaluationService, "evaluator: %v", err)
	}
	if len(resp.Frameworks) == 0 {
		return scoring.BulkResult{}, eris.Wrap(model.ErrEvaluationService, "evaluator: no frameworks in reply")
	}
	return scoring.BulkResult{
		Scores:  resp.Match(dims),
		Overall: resp.Overall,
	}, nil
}
