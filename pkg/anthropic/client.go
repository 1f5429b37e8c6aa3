// Package anthropic is the model transport used for question generation
// and evaluation. anthropic-sdk-go stays behind a one-method Client so the
// callers can be tested with a mock.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client completes prompts against the Messages API.
type Client interface {
	Complete(ctx context.Context, p Prompt) (*Reply, error)
}

// Role names the speaker of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CacheTTL is the lifetime of the system prompt cache breakpoint. The zero
// value sends no breakpoint.
type CacheTTL string

const (
	CacheFiveMinutes CacheTTL = "5m"
	CacheHour        CacheTTL = "1h"
)

// Prompt is one call: a system prompt followed by the conversation turns.
type Prompt struct {
	Model       string
	MaxTokens   int64
	System      string
	CacheTTL    CacheTTL
	Turns       []Turn
	Temperature *float64
}

// Turn is a single message in a Prompt.
type Turn struct {
	Role Role
	Text string
}

// Ask builds a single-turn prompt. Every call in a session repeats the same
// system prompt, so it carries an hour-long cache breakpoint.
func Ask(model string, maxTokens int64, system, user string) Prompt {
	return Prompt{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		CacheTTL:  CacheHour,
		Turns:     []Turn{{Role: RoleUser, Text: user}},
	}
}

func (p Prompt) params() sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.Model),
		MaxTokens: p.MaxTokens,
		Messages:  make([]sdk.MessageParam, 0, len(p.Turns)),
	}
	for _, t := range p.Turns {
		block := sdk.NewTextBlock(t.Text)
		if t.Role == RoleAssistant {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
			continue
		}
		params.Messages = append(params.Messages, sdk.NewUserMessage(block))
	}
	if p.System != "" {
		system := sdk.TextBlockParam{Text: p.System}
		if p.CacheTTL != "" {
			cc := sdk.NewCacheControlEphemeralParam()
			cc.TTL = sdk.CacheControlEphemeralTTL(p.CacheTTL)
			system.CacheControl = cc
		}
		params.System = []sdk.TextBlockParam{system}
	}
	if p.Temperature != nil {
		params.Temperature = sdk.Float(*p.Temperature)
	}
	return params
}

// Reply holds the text blocks of a completion.
type Reply struct {
	ID         string
	Model      string
	StopReason string
	Texts      []string
	Usage      Usage
}

// Text joins the non-empty text blocks with newlines. A nil reply is empty.
func (r *Reply) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Texts))
	for _, t := range r.Texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Truncated reports whether the model stopped at the token limit.
func (r *Reply) Truncated() bool {
	return r != nil && r.StopReason == "max_tokens"
}

func replyFrom(msg *sdk.Message) *Reply {
	r := &Reply{
		ID:         msg.ID,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			Input:      msg.Usage.InputTokens,
			Output:     msg.Usage.OutputTokens,
			CacheWrite: msg.Usage.CacheCreationInputTokens,
			CacheRead:  msg.Usage.CacheReadInputTokens,
		},
	}
	for _, b := range msg.Content {
		if b.Type == "text" {
			r.Texts = append(r.Texts, b.Text)
		}
	}
	return r
}

// Usage counts the tokens billed for one completion.
type Usage struct {
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// Log writes the usage of one call at debug level. purpose is "question",
// a framework key or "persona".
func (u Usage) Log(model, purpose string) {
	zap.L().Debug("anthropic: token usage",
		zap.String("model", model),
		zap.String("purpose", purpose),
		zap.Int64("input_tokens", u.Input),
		zap.Int64("output_tokens", u.Output),
		zap.Int64("cache_write_tokens", u.CacheWrite),
		zap.Int64("cache_read_tokens", u.CacheRead),
	)
}

type sdkClient struct {
	messages sdk.MessageService
}

// NewClient returns a Client backed by anthropic-sdk-go. opts reach the SDK
// unchanged, so tests can point it at a local server.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	c := sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &sdkClient{messages: c.Messages}
}

func (c *sdkClient) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	msg, err := c.messages.New(ctx, p.params())
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: complete %s", p.Model)
	}
	return replyFrom(msg), nil
}
