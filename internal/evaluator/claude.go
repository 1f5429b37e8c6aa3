package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/scoring"
	"github.com/sells-group/assessment/pkg/anthropic"
)

const dimensionSystemPrompt = `You assess leadership competencies from assessment conversations.
Score only the competency you are given, using only evidence in the leader's answers.
Respond with one JSON object only:
{"score": <integer 0-100>, "summary": "<two sentences>", "confidence": <0.0-1.0>, "level": <integer 1-5>}`

const dimensionUserPrompt = `Competency: %s
Definition: %s

Conversation:
%s`

const personaSystemPrompt = `You summarize leadership assessments.
Given per-competency scores and the conversation, name the leader's overall persona in two to four words
and write a three-sentence summary that names their strengths and growth areas.
Respond with one JSON object only: {"persona": "<label>", "summary": "<text>"}`

const defaultMaxTokens = 1024

// Claude scores dimensions and writes personas with an Anthropic model.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaude creates a Claude-backed evaluator.
func NewClaude(client anthropic.Client, model string, maxTokens int) *Claude {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Claude{client: client, model: model, maxTokens: int64(maxTokens)}
}

// EvaluateDimension scores one dimension.
func (c *Claude) EvaluateDimension(ctx context.Context, dim model.Dimension, in scoring.Input) (model.RawScore, error) {
	prompt := fmt.Sprintf(dimensionUserPrompt, dim.Label, dim.Description, transcript(in))
	var out RawFramework
	if err := c.complete(ctx, dimensionSystemPrompt, prompt, "dimension:"+dim.Key, &out); err != nil {
		return model.RawScore{}, err
	}
	return out.RawScore(), nil
}

// EvaluatePersona writes the overall verdict.
func (c *Claude) EvaluatePersona(ctx context.Context, in scoring.Input, scores []model.FrameworkScore) (model.Overall, error) {
	var b strings.Builder
	b.WriteString("Scores:\n")
	for _, s := range scores {
		fmt.Fprintf(&b, "- %s: %d\n", s.Label, s.Score)
	}
	b.WriteString("\nConversation:\n")
	b.WriteString(transcript(in))

	var out model.Overall
	if err := c.complete(ctx, personaSystemPrompt, b.String(), "persona", &out); err != nil {
		return model.Overall{}, err
	}
	out.Persona = strings.TrimSpace(out.Persona)
	out.Summary = strings.TrimSpace(out.Summary)
	if out.Persona == "" || out.Summary == "" {
		return model.Overall{}, eris.Wrap(model.ErrEvaluationService, "evaluator: persona reply incomplete")
	}
	return out, nil
}

func (c *Claude) complete(ctx context.Context, system, prompt, purpose string, v any) error {
	resp, err := c.client.Complete(ctx, anthropic.Ask(c.model, c.maxTokens, system, prompt))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return eris.Wrapf(model.ErrEvaluationTimeout, "evaluator: %s: %v", purpose, err)
		}
		return eris.Wrapf(model.ErrEvaluationService, "evaluator: %s: %v", purpose, err)
	}
	resp.Usage.Log(c.model, purpose)

	if err := anthropic.DecodeJSON(resp, v); err != nil {
		return eris.Wrapf(model.ErrEvaluationService, "evaluator: %s: %v", purpose, err)
	}
	return nil
}

func transcript(in scoring.Input) string {
	if in.Transcript != "" {
		return in.Transcript
	}
	return strings.Join(in.Responses, "\n\n")
}
