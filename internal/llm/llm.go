// Package llm renders audit reports through Claude. It is an optional
// collaborator: every failure leaves the caller on the deterministic path.
package llm

import (
	"context"
	"strings"
	"unicode/utf8"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
)

// Errors returned by Render.
var (
	ErrEmptyResponse = eris.New("llm: empty response")
	ErrMissingHeader = eris.New("llm: response is missing a report section")
)

// Renderer turns policy instructions and extracted report text into a
// five-section report.
type Renderer interface {
	Render(ctx context.Context, instructions, text string) (string, error)
}

// Claude implements Renderer with the Anthropic Messages API at temperature 0.
type Claude struct {
	client        sdk.Client
	model         string
	maxTokens     int64
	maxInputChars int
}

// New creates a Claude renderer. It returns nil when the renderer is disabled
// or has no API key, so callers can treat nil as "deterministic only".
func New(cfg config.LLMConfig, opts ...option.RequestOption) *Claude {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &Claude{
		client:        sdk.NewClient(opts...),
		model:         cfg.Model,
		maxTokens:     int64(cfg.MaxTokens),
		maxInputChars: cfg.MaxInputChars,
	}
}

// NewRenderer is New as a Renderer: a disabled renderer is a nil interface.
func NewRenderer(cfg config.LLMConfig, opts ...option.RequestOption) Renderer {
	if c := New(cfg, opts...); c != nil {
		return c
	}
	return nil
}

// Render sends instructions as the system prompt and text, capped at the
// configured character count, as the only user message. The response must
// carry every section header.
func (c *Claude) Render(ctx context.Context, instructions, text string) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   c.maxTokens,
		System:      []sdk.TextBlockParam{{Text: instructions}},
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(Truncate(text, c.maxInputChars)))},
		Temperature: sdk.Float(0),
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "llm: create message")
	}

	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	if err := CheckSections(out); err != nil {
		return "", err
	}

	zap.L().Debug("llm render complete",
		zap.String("model", string(msg.Model)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return out, nil
}

// CheckSections verifies that out carries every section header in order.
func CheckSections(out string) error {
	pos := 0
	for _, h := range audit.SectionHeaders {
		i := strings.Index(out[pos:], h)
		if i < 0 {
			return eris.Wrapf(ErrMissingHeader, "%q", h)
		}
		pos += i + len(h)
	}
	return nil
}

// Truncate caps s at limit runes. A non-positive limit leaves s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
