package models

import (
	"encoding/json"
	"time"
)

const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleUser    = "user"
)

const (
	StatusNew           = "new"
	StatusProcessing    = "processing"
	StatusResolved      = "resolved"
	StatusFalsePositive = "false_positive"
	StatusIgnored       = "ignored"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ValidStatus reports whether s is one of the five defined event states.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusProcessing, StatusResolved, StatusFalsePositive, StatusIgnored:
		return true
	}
	return false
}

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Source struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	URL           string     `json:"url,omitempty"`
	IsActive      bool       `json:"isActive"`
	SyncFrequency int        `json:"syncFrequency"`
	LastSyncDate  *time.Time `json:"lastSyncDate,omitempty"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// EventMetadata is deliberately not a free-form map: the comment thread is an
// explicit append-only list and the analysis snapshot an explicit field, so
// the lifecycle invariants stay checkable.
type EventMetadata struct {
	Analysis json.RawMessage `json:"analysis,omitempty"`
	Comments []EventComment  `json:"comments,omitempty"`
}

type EventComment struct {
	Text      string    `json:"text"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type Event struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Content     string        `json:"content,omitempty"`
	Type        string        `json:"type"`
	Category    string        `json:"category,omitempty"`
	Severity    string        `json:"severity"`
	Confidence  float64       `json:"confidence"`
	SourceURL   string        `json:"sourceUrl,omitempty"`
	Metadata    EventMetadata `json:"metadata"`
	Status      string        `json:"status"`
	ProcessedAt *time.Time    `json:"processedAt,omitempty"`
	ResolvedAt  *time.Time    `json:"resolvedAt,omitempty"`
	ResolvedBy  string        `json:"resolvedBy,omitempty"`
	SourceID    string        `json:"sourceId"`
	CreatedBy   string        `json:"createdBy,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// EventSummary is the trimmed shape returned by status-transition responses.
type EventSummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy  string     `json:"resolvedBy,omitempty"`
}

func (e *Event) Summary() EventSummary {
	return EventSummary{
		ID:          e.ID,
		Title:       e.Title,
		Status:      e.Status,
		ProcessedAt: e.ProcessedAt,
		ResolvedAt:  e.ResolvedAt,
		ResolvedBy:  e.ResolvedBy,
	}
}

type EventStats struct {
	TotalCount int            `json:"totalCount"`
	ByStatus   map[string]int `json:"byStatus"`
	BySeverity map[string]int `json:"bySeverity"`
	ByCategory map[string]int `json:"byCategory"`
}
