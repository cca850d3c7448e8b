package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/local/examparser/internal/config"
	"github.com/local/examparser/internal/errs"
)

type stubModel struct {
	text string
	err  error
	got  string
}

func (m *stubModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, p := range msgs[0].Parts {
		if tp, ok := p.(llms.TextContent); ok {
			m.got = tp.Text
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.text}}}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

func TestInvokeReturnsText(t *testing.T) {
	m := &stubModel{text: `{"ok":true}`}
	c := Wrap("openai", "gpt-test", 0, m)
	out, err := c.Invoke(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"ok":true}` || m.got != "hello" {
		t.Errorf("out=%q prompt=%q", out, m.got)
	}
	if c.Name() != "openai/gpt-test" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestInvokeClassifiesFailures(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		text      string
		kind      errs.Kind
		rateLimit bool
	}{
		{"rate limit", fmt.Errorf("googleapi: Error 429: Resource has been exhausted"), "", errs.Transport, true},
		{"server", fmt.Errorf("API returned unexpected status code: 503"), "", errs.Transport, false},
		{"empty", nil, "   ", errs.Transport, false},
		{"deadline", context.DeadlineExceeded, "", errs.Transport, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Wrap("googleai", "m", 0, &stubModel{text: tc.text, err: tc.err})
			_, err := c.Invoke(context.Background(), "p")
			if got := errs.KindOf(err); got != tc.kind {
				t.Fatalf("kind = %v, want %v (err=%v)", got, tc.kind, err)
			}
			if IsRateLimited(err) != tc.rateLimit {
				t.Errorf("IsRateLimited = %v", IsRateLimited(err))
			}
		})
	}
}

func TestInvokeCancelledIsNotTransport(t *testing.T) {
	c := Wrap("googleai", "m", 0, &stubModel{err: context.Canceled})
	_, err := c.Invoke(context.Background(), "p")
	if !errors.Is(err, context.Canceled) || errs.KindOf(err) == errs.Transport {
		t.Errorf("err = %v kind = %v", err, errs.KindOf(err))
	}
}

func TestResult(t *testing.T) {
	cases := map[string]error{
		"success":      nil,
		"rate_limited": errors.Join(ErrRateLimited, errors.New("x")),
		"timeout":      errors.New("request timeout"),
		"transient":    errors.New("connection reset by peer"),
		"error":        errors.New("invalid api key"),
	}
	for want, err := range cases {
		if got := Result(err); got != want {
			t.Errorf("Result(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestNewRequiresKey(t *testing.T) {
	for _, p := range []string{"googleai", "openai", "anthropic", "nope"} {
		if _, err := New(context.Background(), config.LLMConfig{Provider: p, Model: "m"}); err == nil {
			t.Errorf("New(%s) without key should fail", p)
		}
	}
}
