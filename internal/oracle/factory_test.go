package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marcus/taskpilot/internal/config"
)

func TestNewByProvider(t *testing.T) {
	tests := []struct {
		provider string
		check    func(Oracle) bool
	}{
		{config.ProviderAnthropic, func(o Oracle) bool { _, ok := o.(*AnthropicClient); return ok }},
		{config.ProviderClaudeCLI, func(o Oracle) bool { c, ok := o.(*CLIClient); return ok && c.Name() == "claude" }},
		{config.ProviderCodexCLI, func(o Oracle) bool { c, ok := o.(*CLIClient); return ok && c.Name() == "codex" }},
		{config.ProviderNone, func(o Oracle) bool { _, ok := o.(Disabled); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			o, err := New(context.Background(), config.OracleConfig{Provider: tt.provider, APIKey: "k", Timeout: time.Second})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if !tt.check(o) {
				t.Errorf("New(%q) returned %T", tt.provider, o)
			}
		})
	}

	if _, err := New(context.Background(), config.OracleConfig{Provider: "bedrock"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestDisabled(t *testing.T) {
	if _, err := (Disabled{}).Complete(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestConfigured(t *testing.T) {
	if Configured(config.OracleConfig{Provider: config.ProviderAnthropic}) {
		t.Error("anthropic without key reported configured")
	}
	if !Configured(config.OracleConfig{Provider: config.ProviderGemini, APIKey: "k"}) {
		t.Error("gemini with key reported unconfigured")
	}
	if Configured(config.OracleConfig{Provider: config.ProviderNone}) {
		t.Error("none reported configured")
	}
}

func TestCallNormalizesErrors(t *testing.T) {
	plain := Func(func(context.Context, string) (string, error) { return "", errors.New("socket closed") })
	if _, err := Call(context.Background(), plain, "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("plain error = %v, want ErrUnavailable", err)
	}

	contract := Func(func(context.Context, string) (string, error) { return "", ErrContractViolation })
	_, err := Call(context.Background(), contract, "x")
	if !errors.Is(err, ErrContractViolation) || errors.Is(err, ErrUnavailable) {
		t.Errorf("contract error = %v, want only ErrContractViolation", err)
	}

	if _, err := Call(context.Background(), nil, "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("nil oracle error = %v, want ErrUnavailable", err)
	}

	ok := Func(func(_ context.Context, p string) (string, error) { return "echo " + p, nil })
	if out, err := Call(context.Background(), ok, "hi"); err != nil || out != "echo hi" {
		t.Errorf("Call() = %q, %v", out, err)
	}
}
