package model

import (
	"fmt"
	"strings"
	"time"
)

type Scope string

const (
	ScopeProject Scope = "project"
	ScopeUser    Scope = "user"
	ScopeBoth    Scope = "both"
)

// Scopes lists the concrete scopes in query order. Project always comes first.
var Scopes = []Scope{ScopeProject, ScopeUser}

func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeBoth:
		return ScopeBoth, nil
	case ScopeProject:
		return ScopeProject, nil
	case ScopeUser:
		return ScopeUser, nil
	}
	return "", fmt.Errorf("invalid scope: %s", s)
}

// Expand returns the concrete scopes a (possibly "both") scope covers.
func (s Scope) Expand() []Scope {
	switch s {
	case ScopeProject:
		return []Scope{ScopeProject}
	case ScopeUser:
		return []Scope{ScopeUser}
	}
	return Scopes
}

func (s Scope) Valid() bool {
	return s == ScopeProject || s == ScopeUser
}

type JournalEntry struct {
	ID        string   `json:"id"`
	Scope     Scope    `json:"scope"`
	Text      string   `json:"text"`
	Sections  []string `json:"sections"`
	Timestamp int64    `json:"timestamp"`
	Path      string   `json:"path"`
}

type EntryMetadata struct {
	Text      string   `json:"text"`
	Sections  []string `json:"sections"`
	Timestamp int64    `json:"timestamp"`
	Path      string   `json:"path"`
	Type      Scope    `json:"type"`
}

func (e *JournalEntry) Metadata() EntryMetadata {
	return EntryMetadata{
		Text:      e.Text,
		Sections:  e.Sections,
		Timestamp: e.Timestamp,
		Path:      e.Path,
		Type:      e.Scope,
	}
}

type SearchResult struct {
	EntryMetadata
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type RecentEntry struct {
	EntryMetadata
	ID string `json:"id"`
}

type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// LastDays returns a range starting the given number of days before now.
func LastDays(now time.Time, days int) *DateRange {
	if days <= 0 {
		return nil
	}
	start := now.AddDate(0, 0, -days)
	return &DateRange{Start: &start}
}
