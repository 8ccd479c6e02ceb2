package scan

import (
	"time"

	"github.com/scamdunk/scamguard/pkg/detect"
	"github.com/scamdunk/scamguard/pkg/textproc"
)

// ModelSummary is the per-detector line carried in an Analysis.
type ModelSummary struct {
	Model      string  `json:"model"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Degraded   bool    `json:"degraded,omitempty"`
}

// Analysis is the full result of scanning one message.
type Analysis struct {
	Fingerprint string          `json:"fingerprint"`
	RiskScore   float64         `json:"risk_score"`
	RiskTier    detect.RiskTier `json:"risk_tier"`
	Confidence  float64         `json:"confidence"`

	ModelPredictions []ModelSummary      `json:"model_predictions"`
	Entities         textproc.Entities   `json:"entities"`
	Statistics       textproc.Statistics `json:"statistics"`

	ExplanationLines []string            `json:"explanation_lines"`
	Explanation      *detect.Explanation `json:"explanation,omitempty"`

	Degraded []string `json:"degraded,omitempty"`

	Cached       bool      `json:"cached"`
	ProcessingMS int64     `json:"processing_ms"`
	Timestamp    time.Time `json:"timestamp"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}

// Job statuses stored alongside queued work.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Queue names. Priority drains first and polls fastest.
const (
	QueuePriority = "scan_queue:priority"
	QueueNormal   = "scan_queue:normal"
	QueueBatch    = "scan_queue:batch"
)

// Job priorities. High-priority jobs land on the priority queue.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// ScanJob is one queued message scan.
type ScanJob struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Priority    string    `json:"priority"`
	CallbackURL string    `json:"callback_url,omitempty"`
	RetryCount  int       `json:"retry_count"`
	LastError   string    `json:"last_error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// BatchJob is a queued multi-message scan with an optional completion
// callback.
type BatchJob struct {
	ID          string    `json:"id"`
	Texts       []string  `json:"texts"`
	CallbackURL string    `json:"callback_url,omitempty"`
	RetryCount  int       `json:"retry_count"`
	LastError   string    `json:"last_error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ScanResult is the stored outcome of a queued scan.
type ScanResult struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Analysis   *Analysis `json:"analysis,omitempty"`
	Error      string    `json:"error,omitempty"`
	RetryCount int       `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// BatchItemResult is one element of a batch outcome.
type BatchItemResult struct {
	Index    int       `json:"index"`
	Status   string    `json:"status"`
	Analysis *Analysis `json:"analysis,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// BatchAggregates summarize a finished batch.
type BatchAggregates struct {
	AvgRiskScore    float64 `json:"avg_risk_score"`
	HighRiskCount   int     `json:"high_risk_count"`
	SuspiciousRatio float64 `json:"suspicious_ratio"`
}

// BatchStatus is the stored state of a batch job, updated as it progresses.
type BatchStatus struct {
	BatchID        string            `json:"batch_id"`
	Status         string            `json:"status"`
	TotalItems     int               `json:"total_items"`
	ProcessedItems int               `json:"processed_items"`
	FailedItems    int               `json:"failed_items"`
	Results        []BatchItemResult `json:"results,omitempty"`
	Aggregates     *BatchAggregates  `json:"aggregates,omitempty"`
	Error          string            `json:"error,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    time.Time         `json:"completed_at,omitempty"`
}

// ConversationMetrics summarize per-message risk across a conversation.
type ConversationMetrics struct {
	AvgRiskScore      float64 `json:"avg_risk_score"`
	MaxRiskScore      float64 `json:"max_risk_score"`
	MinRiskScore      float64 `json:"min_risk_score"`
	AvgConfidence     float64 `json:"avg_confidence"`
	RiskTrend         string  `json:"risk_trend"`
	HighRiskMessages  int     `json:"high_risk_messages"`
	SuspiciousRatio   float64 `json:"suspicious_message_ratio"`
}

// ConversationAnalysis is the result of scanning a message sequence.
type ConversationAnalysis struct {
	OverallRisk        *Analysis            `json:"overall_risk"`
	IndividualMessages []*Analysis          `json:"individual_messages"`
	Metrics            *ConversationMetrics `json:"metrics,omitempty"`
	MessageCount       int                  `json:"message_count"`
	ProcessingMS       int64                `json:"processing_ms"`
}

// Metrics is the service counter snapshot.
type Metrics struct {
	TotalRequests    int64   `json:"total_requests"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	ErrorCount       int64   `json:"error_count"`
	DegradedCount    int64   `json:"degraded_count"`
	CacheHitRatePct  float64 `json:"cache_hit_rate_percent"`
	ErrorRatePct     float64 `json:"error_rate_percent"`
	AvgResponseMS    float64 `json:"avg_response_ms"`
}
