package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"ai-concierge/internal/storage"
)

// Trace steps the report counts.
const (
	stepRequestReceived   = "request_received"
	stepValidationFailed  = "input_validation_failed"
	stepCompletionFailed  = "openai_api_failure"
	stepTokenUsage        = "token_usage_recorded"
	stepPolicyApplied     = "response_policy_applied"
	stepNewSessionCreated = "new_session_created"
)

// DailyStats aggregates trace events for one UTC day.
type DailyStats struct {
	Date               string               `json:"date"`
	Requests           int                  `json:"requests"`
	UniqueUsers        int                  `json:"unique_users"`
	NewSessions        int                  `json:"new_sessions"`
	SuccessfulTurns    int                  `json:"successful_turns"`
	CompletionFailures int                  `json:"completion_failures"`
	ValidationFailures int                  `json:"validation_failures"`
	PromptTokens       int                  `json:"prompt_tokens"`
	CompletionTokens   int                  `json:"completion_tokens"`
	TotalTokens        int                  `json:"total_tokens"`
	PolicyTags         map[string]int       `json:"policy_tags"`
	UserStats          map[string]UserStats `json:"user_stats"`
}

// UserStats holds per-user counters.
type UserStats struct {
	UserID      string `json:"user_id"`
	Turns       int    `json:"turns"`
	Failures    int    `json:"failures"`
	TotalTokens int    `json:"total_tokens"`
}

// AnalyzeDailyEvents aggregates the events that fall on targetDate.
func AnalyzeDailyEvents(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:       startOfDay.Format("2006-01-02"),
		PolicyTags: make(map[string]int),
		UserStats:  make(map[string]UserStats),
	}
	uniqueUsers := make(map[string]bool)

	for _, ev := range events {
		if ev.Timestamp.Before(startOfDay) || !ev.Timestamp.Before(endOfDay) {
			continue
		}

		switch ev.Step {
		case stepRequestReceived:
			stats.Requests++
			if ev.UserID != "" {
				uniqueUsers[ev.UserID] = true
			}
		case stepValidationFailed:
			stats.ValidationFailures++
		case stepNewSessionCreated:
			stats.NewSessions++
		case stepCompletionFailed:
			stats.CompletionFailures++
			us := stats.user(ev.UserID)
			us.Failures++
			stats.UserStats[ev.UserID] = us
		case stepTokenUsage:
			stats.SuccessfulTurns++
			prompt := intMeta(ev.Metadata, "prompt_tokens")
			completion := intMeta(ev.Metadata, "completion_tokens")
			total := intMeta(ev.Metadata, "total_tokens")
			stats.PromptTokens += prompt
			stats.CompletionTokens += completion
			stats.TotalTokens += total
			us := stats.user(ev.UserID)
			us.Turns++
			us.TotalTokens += total
			stats.UserStats[ev.UserID] = us
		case stepPolicyApplied:
			if tag, ok := ev.Metadata["policy"].(string); ok {
				stats.PolicyTags[tag]++
			}
		}
	}

	stats.UniqueUsers = len(uniqueUsers)
	return stats
}

func (ds *DailyStats) user(id string) UserStats {
	us, ok := ds.UserStats[id]
	if !ok {
		us = UserStats{UserID: id}
	}
	return us
}

// intMeta reads a numeric metadata value; JSON decoding yields float64.
func intMeta(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// GenerateReportSummary renders a plain text report.
func (ds *DailyStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation report for %s:\n\n", ds.Date)
	fmt.Fprintf(&b, "Activity:\n- Requests: %d\n- Unique users: %d\n- New sessions: %d\n", ds.Requests, ds.UniqueUsers, ds.NewSessions)
	fmt.Fprintf(&b, "- Successful turns: %d\n- Completion failures: %d\n- Validation failures: %d\n\n", ds.SuccessfulTurns, ds.CompletionFailures, ds.ValidationFailures)
	fmt.Fprintf(&b, "Tokens:\n- Prompt: %d\n- Completion: %d\n- Total: %d\n", ds.PromptTokens, ds.CompletionTokens, ds.TotalTokens)

	if len(ds.PolicyTags) > 0 {
		b.WriteString("\nResponse policy:\n")
		for _, tag := range sortedKeys(ds.PolicyTags) {
			fmt.Fprintf(&b, "- %s: %d\n", tag, ds.PolicyTags[tag])
		}
	}

	if len(ds.UserStats) > 0 {
		fmt.Fprintf(&b, "\nUsers (%d):\n", len(ds.UserStats))
		ids := make([]string, 0, len(ds.UserStats))
		for id := range ds.UserStats {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			us := ds.UserStats[id]
			fmt.Fprintf(&b, "- %s: %d turns, %d tokens", id, us.Turns, us.TotalTokens)
			if us.Failures > 0 {
				fmt.Fprintf(&b, ", %d failures", us.Failures)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ToJSON serializes the stats for detailed analysis.
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
