package models

import (
	"time"

	"gorm.io/gorm"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusPartial: at least one step failed and was rolled back; the
	// other steps' commits are preserved. The run is safely re-runnable.
	RunStatusPartial RunStatus = "partial"
	RunStatusAborted RunStatus = "aborted"
)

// ClassificationRun is the explicit run context replacing the old global
// "current run" state: it carries the id-set boundary and the per-step counts,
// so a batch-scoped run and a whole-table run cannot interfere, and the
// operator can always tell "nothing left to do" from "something is stuck".
type ClassificationRun struct {
	ID            int        `gorm:"primary_key" json:"id"`
	BusinessId    string     `gorm:"size:64;index;not null" json:"business_id"`
	CorrelationId string     `gorm:"size:64;index;not null" json:"correlation_id"`
	Actor         string     `gorm:"size:100;default:''" json:"actor"`
	// Scope describes the id-set boundary: "all", "titles:<n>" or "batch:<id>".
	Scope          string                  `gorm:"size:100;default:'all'" json:"scope"`
	SnapshotSize   int                     `gorm:"default:0" json:"snapshot_size"`
	Status         RunStatus               `gorm:"size:20;index;default:'running'" json:"status"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     *time.Time              `gorm:"default:null" json:"finished_at"`
	Steps          []ClassificationRunStep `gorm:"foreignKey:RunId" json:"steps"`
	CreatedAt      time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

// ClassificationRunStep records one waterfall step's outcome. Counts:
// attempted = evidence rows (or snapshot titles) examined, classified = titles
// labeled, skipped = already classified this run or ambiguous, errored = rows
// whose processing failed without failing the step.
type ClassificationRunStep struct {
	ID          int        `gorm:"primary_key" json:"id"`
	RunId       int        `gorm:"index;not null" json:"run_id"`
	StepNumber  int        `gorm:"not null" json:"step_number"`
	Label       string     `gorm:"size:40;not null" json:"label"`
	Attempted   int        `gorm:"default:0" json:"attempted"`
	Classified  int        `gorm:"default:0" json:"classified"`
	Skipped     int        `gorm:"default:0" json:"skipped"`
	Errored     int        `gorm:"default:0" json:"errored"`
	FailedError *string    `gorm:"type:text;default:null" json:"failed_error"`
	CommittedAt *time.Time `gorm:"default:null" json:"committed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (r *ClassificationRun) TotalClassified() int {
	total := 0
	for _, s := range r.Steps {
		total += s.Classified
	}
	return total
}

// Finish stamps the run row. Steps are persisted one by one as they commit;
// this must never save associations or the step rows get inserted again.
func (r *ClassificationRun) Finish(db *gorm.DB, status RunStatus) error {
	now := time.Now().UTC()
	r.Status = status
	r.FinishedAt = &now
	return db.Model(r).Updates(map[string]interface{}{
		"status":      status,
		"finished_at": now,
	}).Error
}
