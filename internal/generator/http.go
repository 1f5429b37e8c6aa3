package generator

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/assessment/internal/apiclient"
	"github.com/sells-group/assessment/internal/model"
)

// HTTPClient calls a question generation service at POST {base}/questions.
type HTTPClient struct {
	api *apiclient.Client
}

// NewHTTPClient creates an HTTP generator.
func NewHTTPClient(baseURL, key string, opts ...apiclient.Option) *HTTPClient {
	return &HTTPClient{api: apiclient.New("generator", baseURL, key, opts...)}
}

// Generate posts the request and validates the reply.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (model.Question, error) {
	var resp Response
	if err := c.api.PostJSON(ctx, "/questions", req, &resp); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.Question{}, eris.Wrapf(model.ErrGenerationTimeout, "generator: %v", err)
		}
		return model.Question{}, eris.Wrapf(model.ErrGenerationMalformed, "generator: %v", err)
	}
	return resp.ToQuestion()
}
