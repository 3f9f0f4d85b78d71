package store

import "time"

// WeeklyDigest represents a generated weekly summary of conversation activity.
type WeeklyDigest struct {
	ID                string
	WeekStart         time.Time
	WeekEnd           time.Time
	ConversationCount int
	TopTopics         []string
	Content           string
	CreatedAt         time.Time
}

// InsightAlert represents a proactive alert surfaced to the user, such as a
// detected contradiction between a new message and an older conversation.
type InsightAlert struct {
	ID                     string
	AlertType              string // "contradiction", "pattern"
	Title                  string
	Content                string
	RelatedConversationIDs []string
	Severity               string // "low", "medium", "high"
	Dismissed              bool
	CreatedAt              time.Time
}

// Alert severity levels.
const (
	AlertSeverityLow    = "low"
	AlertSeverityMedium = "medium"
	AlertSeverityHigh   = "high"
)

// Alert types.
const (
	AlertTypeContradiction = "contradiction"
	AlertTypePattern       = "pattern"
)
