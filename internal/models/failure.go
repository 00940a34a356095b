package models

import "time"

// Failure is an append-only record of one categorized processing
// failure. It is soft-resolved (ResolvedAt set) when the owning video
// is retried successfully, never hard-deleted by the pipelines.
type Failure struct {
	ID         string     `json:"id"`
	VideoID    int64      `json:"video_id"`
	Stage      string     `json:"stage"`
	Category   string     `json:"category"`
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	Context    string     `json:"context,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Failure categories.
const (
	CategoryFileAccess         = "file_access"
	CategoryMetadataExtraction = "metadata_extraction"
	CategoryValidation         = "validation"
	CategoryTimeout            = "timeout"
	CategoryProcessFailure     = "process_failure"
	CategoryStorageContention  = "storage_contention"
	CategoryUnknown            = "unknown"
)

// Pipeline stage names.
const (
	StageAnalysis  = "analysis"
	StageCRFSearch = "crf_search"
	StageEncoding  = "encoding"
)

// FailureStats aggregates failure counts for the reporting surface.
type FailureStats struct {
	Total      int64            `json:"total"`
	Unresolved int64            `json:"unresolved"`
	ByStage    map[string]int64 `json:"by_stage"`
	ByCategory map[string]int64 `json:"by_category"`
}

// FailurePattern is one (category, code) pair and how often it occurs.
type FailurePattern struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Count    int64  `json:"count"`
}
