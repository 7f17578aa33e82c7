package model

import "time"

type ImportJob struct {
	RunID      string `json:"run_id"`
	StorageKey string `json:"storage_key"`
	Attempts   int    `json:"attempts,omitempty"`
}

type ImportAccepted struct {
	RunID      string    `json:"run_id"`
	StorageKey string    `json:"storage_key"`
	Status     RunStatus `json:"status"`
	QueuedAt   time.Time `json:"queued_at"`
}

type Summary struct {
	Sessions       int                       `json:"sessions"`
	Courses        int                       `json:"courses"`
	Students       int                       `json:"students"`
	ActiveStudents int                       `json:"active_students"`
	Enrollments    int                       `json:"enrollments"`
	Assessments    int                       `json:"assessments"`
	Certificates   map[CertificateStatus]int `json:"certificates"`
	GeneratedAt    time.Time                 `json:"generated_at"`
}
