package model

import "time"

type RunStatus string

const (
	RunStatusQueued   RunStatus = "QUEUED"
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusImported RunStatus = "IMPORTED"
	RunStatusFailed   RunStatus = "FAILED"
)

type ImportRun struct {
	ID           string     `json:"id" db:"id"`
	Source       string     `json:"source" db:"source"`
	Status       RunStatus  `json:"status" db:"status"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	Report       *RunReport `json:"report,omitempty" db:"report"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// EntityCounts tallies the upserts of one entity kind.
type EntityCounts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

type RunReport struct {
	DryRun          bool                    `json:"dry_run"`
	Students        int                     `json:"students"`
	SuspendedFrom   int                     `json:"suspended_from_row,omitempty"`
	SkippedRows     int                     `json:"skipped_rows"`
	SkippedCells    int                     `json:"skipped_cells"`
	StatisticsFound bool                    `json:"statistics_found"`
	Entities        map[string]EntityCounts `json:"entities"`
	Notices         []string                `json:"notices,omitempty"`
}
