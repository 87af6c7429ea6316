// Package report asks an OpenAI-compatible completion API for a quarterly
// summary. Every failure degrades to a fixed user-visible message.
package report

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fintrack/internal/log"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "deepseek/deepseek-r1-0528"

	Prompt = "Please provide a quarterly financial report summary for a personal finance tracker. Highlight income, expenses, spending trends, and saving advice."

	MsgNotConfigured = "API key not set."
	MsgFailed        = "Failed to generate report."
	MsgEmpty         = "No response generated."
)

// Status classifies how a report request ended.
type Status int

const (
	StatusOK Status = iota
	StatusNotConfigured
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotConfigured:
		return "not_configured"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the text shown to the user plus how it was obtained.
type Result struct {
	Summary string
	Status  Status
}

// Config selects the provider. An empty APIKey disables the gateway.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *log.Logger
}

type Gateway struct {
	client *openai.Client
	model  string
	logger *log.Logger
}

func NewGateway(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default(log.ComponentReport)
	}
	g := &Gateway{model: cfg.Model, logger: logger.WithComponent(log.ComponentReport)}
	if g.model == "" {
		g.model = DefaultModel
	}
	if cfg.APIKey == "" {
		return g
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	if oc.BaseURL == "" {
		oc.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	g.client = openai.NewClientWithConfig(oc)
	return g
}

// Configured reports whether a credential was supplied.
func (g *Gateway) Configured() bool {
	return g.client != nil
}

// Generate sends the fixed prompt once. It never returns an error; the
// caller's context cancels the request.
func (g *Gateway) Generate(ctx context.Context) Result {
	if g.client == nil {
		g.logger.WarnContext(ctx, "Report requested but no API key configured", log.FieldOperation, log.OpReport)
		return Result{Summary: MsgNotConfigured, Status: StatusNotConfigured}
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Prompt},
		},
	})
	if err != nil {
		attrs := []any{log.FieldOperation, log.OpReport, "model", g.model, log.FieldError, err}
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		switch {
		case errors.As(err, &apiErr):
			attrs = append(attrs, log.FieldStatusCode, apiErr.HTTPStatusCode)
		case errors.As(err, &reqErr):
			attrs = append(attrs, log.FieldStatusCode, reqErr.HTTPStatusCode)
		}
		g.logger.ErrorContext(ctx, "Report generation failed", attrs...)
		return Result{Summary: MsgFailed, Status: StatusFailed}
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Result{Summary: MsgEmpty, Status: StatusOK}
	}
	return Result{Summary: resp.Choices[0].Message.Content, Status: StatusOK}
}
