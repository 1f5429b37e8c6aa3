package generator

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/pkg/anthropic"
)

const claudeSystemPrompt = `You are an executive coach running an adaptive leadership assessment.
Given the leader's profile and the conversation so far, write the single next question.
Build on what the leader has said, do not repeat earlier questions, and vary the question type.
Later questions should move from concrete situations toward reflection on growth.
Respond with one JSON object only:
{"question": "<text>", "type": "open-ended|multiple-choice|scale|most-least-choice",
 "options": ["..."], "most_least_options": ["..."],
 "scale_info": {"min": 1, "max": 10, "min_label": "...", "max_label": "..."},
 "reasoning": "<one sentence>"}
Use "options" for multiple-choice (3-5 options), "most_least_options" for most-least-choice (4 options)
and "scale_info" for scale. Omit fields that do not apply.`

const defaultMaxTokens = 1024

// Claude generates questions with an Anthropic model.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaude creates a Claude-backed generator.
func NewClaude(client anthropic.Client, model string, maxTokens int) *Claude {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Claude{client: client, model: model, maxTokens: int64(maxTokens)}
}

// Generate asks the model for the next question.
func (c *Claude) Generate(ctx context.Context, req Request) (model.Question, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return model.Question{}, eris.Wrap(err, "generator: marshal request")
	}

	resp, err := c.client.Complete(ctx, anthropic.Ask(c.model, c.maxTokens, claudeSystemPrompt, string(payload)))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.Question{}, eris.Wrapf(model.ErrGenerationTimeout, "generator: %v", err)
		}
		return model.Question{}, eris.Wrapf(model.ErrGenerationMalformed, "generator: create message: %v", err)
	}
	resp.Usage.Log(c.model, "question")

	var out Response
	if err := anthropic.DecodeJSON(resp, &out); err != nil {
		return model.Question{}, eris.Wrapf(model.ErrGenerationMalformed, "generator: %v", err)
	}
	return out.ToQuestion()
}
