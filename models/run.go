package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID            string     `json:"id" db:"id"`
	Handler       string     `json:"handler" db:"handler"`
	Region        string     `json:"region" db:"region"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	ListingsKept  int        `json:"listings_kept" db:"listings_kept"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
	ErrorMessage  string     `json:"error_message" db:"error_message"`
}

type HandlerStats struct {
	Handler       string     `json:"handler" db:"handler"`
	LastRunAt     *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns     int        `json:"total_runs" db:"total_runs"`
	SuccessRate   float64    `json:"success_rate" db:"success_rate"`
}
