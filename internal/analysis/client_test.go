package analysis

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"jobboard-backend/internal/extract"
	"jobboard-backend/internal/llm"
	"jobboard-backend/internal/usage"
)

type fakeLLM struct {
	calls int
	last  llm.Request
	resp  llm.Response
	err   error
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.calls++
	f.last = req
	return f.resp, f.err
}

type failingLedger struct{}

func (failingLedger) Record(context.Context, usage.Entry) (usage.Ledger, error) {
	return usage.Ledger{}, errors.New("db down")
}

func TestAnalyzeChargesLedgerPerCall(t *testing.T) {
	provider := &fakeLLM{resp: llm.Response{
		Text:     pureReply,
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Usage:    llm.Usage{PromptTokens: 1000, CompletionTokens: 200, TotalTokens: 1200},
	}}
	ledger := usage.NewService()
	client := NewClient(provider, ledger, usage.Pricing{InputPerMTok: 1, OutputPerMTok: 2})

	for i := 0; i < 2; i++ {
		out, err := client.Analyze(context.Background(), "u1", "r1", "Jane Doe, Go engineer")
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if out.Result.Score != 82 {
			t.Fatalf("unexpected score %d", out.Result.Score)
		}
		if math.Abs(out.Usage.Cost-0.0014) > 1e-12 {
			t.Fatalf("unexpected cost %v", out.Usage.Cost)
		}
	}
	if provider.calls != 2 {
		t.Fatalf("expected one provider call per Analyze, got %d", provider.calls)
	}
	if !strings.Contains(provider.last.Prompt, "Jane Doe, Go engineer") || provider.last.Schema == nil {
		t.Fatalf("expected prompt with resume text and schema")
	}

	stats, err := ledger.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.AnalysisCount != 2 || stats.TotalTokens != 2400 {
		t.Fatalf("unexpected ledger %+v", stats.Ledger)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		llm     *fakeLLM
		wantErr error
	}{
		{name: "service failure", llm: &fakeLLM{err: context.DeadlineExceeded}, wantErr: ErrExternalService},
		{name: "not configured", llm: &fakeLLM{err: llm.ErrNotConfigured}, wantErr: ErrExternalService},
		{name: "unparseable", llm: &fakeLLM{resp: llm.Response{Text: "no json here"}}, wantErr: ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := usage.NewService()
			client := NewClient(tt.llm, ledger, usage.Pricing{})
			_, err := client.Analyze(context.Background(), "u1", "r1", "resume")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.llm.calls != 1 {
				t.Fatalf("expected exactly one call, got %d", tt.llm.calls)
			}
			stats, _ := ledger.Stats(context.Background(), "u1")
			if stats.AnalysisCount != 0 {
				t.Fatalf("failed analysis must not be charged")
			}
		})
	}
}

func TestAnalyzeBlankTextIsEmptyContent(t *testing.T) {
	provider := &fakeLLM{resp: llm.Response{Text: pureReply}}
	ledger := usage.NewService()
	client := NewClient(provider, ledger, usage.Pricing{})
	_, err := client.Analyze(context.Background(), "u1", "r1", " \n\t ")
	if !errors.Is(err, extract.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if errors.Is(err, ErrParse) {
		t.Fatalf("blank input is not a reply parse failure: %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("blank text must not reach the service, got %d calls", provider.calls)
	}
	stats, _ := ledger.Stats(context.Background(), "u1")
	if stats.AnalysisCount != 0 {
		t.Fatalf("blank text must not be charged")
	}
}

func TestAnalyzeSurvivesLedgerFailure(t *testing.T) {
	provider := &fakeLLM{resp: llm.Response{Text: pureReply}}
	client := NewClient(provider, failingLedger{}, usage.Pricing{})
	if _, err := client.Analyze(context.Background(), "u1", "r1", "resume"); err != nil {
		t.Fatalf("expected success despite ledger failure, got %v", err)
	}
}
