package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Source        string          `json:"source" db:"source"`
	StartedAt     time.Time       `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at" db:"finished_at"`
	Status        RunStatus       `json:"status" db:"status"`
	ListingsFound int             `json:"listings_found" db:"listings_found"`
	WithPhone     int             `json:"with_phone" db:"with_phone"`
	ErrorsCount   int             `json:"errors_count" db:"errors_count"`
	Categories    []CategoryStats `json:"categories" db:"-"`
}

func NewScrapeRun(source string) *ScrapeRun {
	return &ScrapeRun{
		ID:        uuid.New(),
		Source:    source,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
	}
}

// Finish stamps the run and derives its status from the category stats: any
// failed category or missing data makes the run partial, no records at all
// makes it failed.
func (r *ScrapeRun) Finish(found, withPhone int, stats []CategoryStats) {
	now := time.Now()
	r.FinishedAt = &now
	r.ListingsFound = found
	r.WithPhone = withPhone
	r.Categories = stats

	r.Status = RunStatusCompleted
	r.ErrorsCount = 0
	for _, s := range stats {
		r.ErrorsCount += s.Errors()
		if s.Failed || !s.Complete() {
			r.Status = RunStatusPartial
		}
	}
	if found == 0 {
		r.Status = RunStatusFailed
	}
}

func (r *ScrapeRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *ScrapeRun) CategoriesJSON() json.RawMessage {
	data, err := json.Marshal(r.Categories)
	if err != nil {
		return json.RawMessage("[]")
	}
	return data
}
