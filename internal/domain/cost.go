package domain

import (
	"fmt"
	"strings"
	"time"
)

// CostEntry records one metered external call. Entries are append-only.
type CostEntry struct {
	ID               int64     `json:"id"`
	SessionID        *int64    `json:"session_id"`
	StepName         *string   `json:"step_name"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"tokens_prompt"`
	CompletionTokens int       `json:"tokens_completion"`
	TotalTokens      int       `json:"tokens_total"`
	CostUSD          float64   `json:"cost_usd"`
	DurationMs       int       `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// CostReport is the callback form of a cost entry.
type CostReport struct {
	SessionID        *int64
	StepName         *string
	Provider         string
	Model            string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	CostUSD          *float64
	DurationMs       *int
}

// Entry validates the report and fills defaults. TotalTokens falls back to
// prompt + completion when absent.
func (r CostReport) Entry() (CostEntry, error) {
	provider := strings.TrimSpace(r.Provider)
	model := strings.TrimSpace(r.Model)
	if provider == "" || model == "" {
		return CostEntry{}, fmt.Errorf("%w: provider and model are required", ErrValidation)
	}
	entry := CostEntry{
		SessionID:        r.SessionID,
		StepName:         r.StepName,
		Provider:         provider,
		Model:            model,
		PromptTokens:     intOr(r.PromptTokens, 0),
		CompletionTokens: intOr(r.CompletionTokens, 0),
		DurationMs:       intOr(r.DurationMs, 0),
	}
	entry.TotalTokens = intOr(r.TotalTokens, entry.PromptTokens+entry.CompletionTokens)
	if r.CostUSD != nil {
		entry.CostUSD = *r.CostUSD
	}
	return entry, nil
}

// CostSummary aggregates a session's cost entries.
type CostSummary struct {
	Entries      int     `json:"entries"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// SummarizeCosts totals a list of entries.
func SummarizeCosts(entries []CostEntry) CostSummary {
	summary := CostSummary{Entries: len(entries)}
	for _, e := range entries {
		summary.TotalTokens += int64(e.TotalTokens)
		summary.TotalCostUSD += e.CostUSD
	}
	return summary
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
