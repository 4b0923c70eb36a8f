package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"
)

type fakeGenerator struct {
	text      string
	err       error
	gotModel  string
	gotConfig *genai.GenerateContentConfig
	gotPrompt string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotConfig = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.gotPrompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGeminiComplete(t *testing.T) {
	gen := &fakeGenerator{text: " {\"a\":1} "}
	c := newGeminiClient(gen, "gemini-test", 500, time.Second)

	out, err := c.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if out != `{"a":1}` {
		t.Errorf("Complete() = %q", out)
	}
	if gen.gotModel != "gemini-test" || gen.gotPrompt != "hello" {
		t.Errorf("model = %q, prompt = %q", gen.gotModel, gen.gotPrompt)
	}
	if gen.gotConfig == nil || gen.gotConfig.MaxOutputTokens != 500 {
		t.Errorf("config = %+v, want MaxOutputTokens 500", gen.gotConfig)
	}

	limited := WithMaxTokens(c, 100)
	if _, err := limited.Complete(context.Background(), "q"); err != nil {
		t.Fatalf("limited Complete() error: %v", err)
	}
	if gen.gotConfig.MaxOutputTokens != 100 {
		t.Errorf("limited MaxOutputTokens = %d, want 100", gen.gotConfig.MaxOutputTokens)
	}
}

func TestGeminiError(t *testing.T) {
	c := newGeminiClient(&fakeGenerator{err: errors.New("quota")}, "", 0, 0)
	if _, err := c.Complete(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(context.Background(), "", "", 0, 0); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}
