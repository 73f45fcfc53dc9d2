package costengine

import (
	"testing"
	"time"

	"github.com/costwatch/costwatch/internal/models"
)

func TestNormalize_NoFactorLeavesCountsAlone(t *testing.T) {
	n := NewNormalizer()
	record := &models.UsageRecord{
		Provider:         "openai",
		PromptTokens:     100,
		CompletionTokens: 40,
		TotalTokens:      140,
		Timestamp:        time.Now().UTC(),
	}

	out := n.Normalize(record)
	if out == record {
		t.Fatal("Normalize must return a copy")
	}
	if out.PromptTokens != 100 || out.CompletionTokens != 40 || out.TotalTokens != 140 {
		t.Errorf("counts changed without a factor: %+v", out)
	}
}

func TestEstimateTokens(t *testing.T) {
	n := NewNormalizer()
	cases := []struct {
		text string
		want int64
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"hello world, this is a test", 7},
	}
	for _, tc := range cases {
		if got := n.EstimateTokens(tc.text, "openai"); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, expected %d", tc.text, got, tc.want)
		}
	}
}

func TestValidateConsistency(t *testing.T) {
	n := NewNormalizer()
	cases := []struct {
		prompt, completion, total int64
		want                      bool
	}{
		{100, 40, 140, true},
		{100, 40, 141, true}, // within one-token tolerance
		{100, 40, 139, true},
		{100, 40, 142, false},
		{100, 40, 0, false},
	}
	for _, tc := range cases {
		record := &models.UsageRecord{
			PromptTokens:     tc.prompt,
			CompletionTokens: tc.completion,
			TotalTokens:      tc.total,
		}
		if got := n.ValidateConsistency(record); got != tc.want {
			t.Errorf("ValidateConsistency(%d+%d vs %d) = %v, expected %v",
				tc.prompt, tc.completion, tc.total, got, tc.want)
		}
	}
}
