package models

import "time"

// ServiceMetrics is the JSON summary of the service counters.
type ServiceMetrics struct {
	RequestsTotal       uint64    `json:"requests_total"`
	CacheHits           uint64    `json:"cache_hits"`
	CacheMisses         uint64    `json:"cache_misses"`
	CacheHitRatio       float64   `json:"cache_hit_ratio"`
	SeatingRuns         uint64    `json:"seating_runs"`
	AverageSeatingRunMs float64   `json:"average_seating_run_ms"`
	StudentsSeated      uint64    `json:"students_seated"`
	StudentsUnseated    uint64    `json:"students_unseated"`
	ExportJobsFinished  uint64    `json:"export_jobs_finished"`
	ExportJobsFailed    uint64    `json:"export_jobs_failed"`
	Goroutines          int       `json:"goroutines"`
	GeneratedAt         time.Time `json:"generated_at"`
}
