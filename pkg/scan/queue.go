package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/scamdunk/scamguard/pkg/config"
	"github.com/scamdunk/scamguard/pkg/httputil"
	"github.com/scamdunk/scamguard/pkg/logging"
)

// Retry policy. Batches get fewer attempts but longer backoff since they
// represent more work per item.
const (
	maxScanRetries  = 3
	maxBatchRetries = 2
)

// Per-queue polling cadence. The priority loop spins fastest.
var pollConfigs = map[string]struct {
	timeout   time.Duration
	idleSleep time.Duration
	errSleep  time.Duration
}{
	QueuePriority: {1 * time.Second, 500 * time.Millisecond, 1 * time.Second},
	QueueNormal:   {2 * time.Second, 1 * time.Second, 2 * time.Second},
	QueueBatch:    {5 * time.Second, 2 * time.Second, 3 * time.Second},
}

// ProcessorStats is a snapshot of queue processor state.
type ProcessorStats struct {
	Running        bool                    `json:"running"`
	ProcessedCount int64                   `json:"processed_count"`
	ErrorCount     int64                   `json:"error_count"`
	RetryCount     int64                   `json:"retry_count"`
	QueueDepths    map[string]int64        `json:"queue_depths"`
	Callbacks      httputil.SemaphoreStats `json:"callbacks"`
}

// Processor drains the scan and batch queues in the background, retrying
// failed jobs with a growing delay and storing terminal failures so a
// status poll never hangs.
type Processor struct {
	service   *Service
	store     Store
	cfg       config.QueueConfig
	log       *logging.Logger
	client    *http.Client
	callbacks *httputil.Semaphore

	scanRetryDelay  time.Duration
	batchRetryDelay time.Duration

	processed atomic.Int64
	errors    atomic.Int64
	retries   atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	timers  map[*time.Timer]struct{}
	wg      sync.WaitGroup
}

// NewProcessor builds an idle processor. Call Start to begin draining.
func NewProcessor(service *Service, store Store, cfg config.QueueConfig, log *logging.Logger) *Processor {
	return &Processor{
		service:         service,
		store:           store,
		cfg:             cfg,
		log:             log.WithComponent("queue_processor"),
		client:          httputil.NewClient(cfg.CallbackTimeout),
		callbacks:       httputil.NewSemaphore(16),
		scanRetryDelay:  time.Minute,
		batchRetryDelay: 5 * time.Minute,
		timers:          map[*time.Timer]struct{}{},
	}
}

// SubmitScan queues a single text for background analysis and returns the
// job id to poll results with.
func (p *Processor) SubmitScan(ctx context.Context, text, priority, callbackURL string) (string, error) {
	if err := p.service.ValidateText(text); err != nil {
		return "", err
	}
	job := &ScanJob{
		ID:          uuid.NewString(),
		Text:        text,
		Priority:    priority,
		CallbackURL: callbackURL,
		SubmittedAt: time.Now().UTC(),
	}
	queue := QueueNormal
	if priority == PriorityHigh {
		queue = QueuePriority
	}
	if err := p.store.SetScanResult(ctx, &ScanResult{ID: job.ID, Status: StatusQueued}, p.cfg.ResultTTL); err != nil {
		return "", err
	}
	if err := p.store.Enqueue(ctx, queue, job); err != nil {
		return "", err
	}
	p.log.Info().Str("job_id", job.ID).Str("queue", queue).Msg("scan queued")
	return job.ID, nil
}

// SubmitBatch queues a multi-text scan and returns the batch id.
func (p *Processor) SubmitBatch(ctx context.Context, texts []string, callbackURL string) (string, error) {
	if len(texts) == 0 {
		return "", &ValidationError{Field: "texts", Reason: "must not be empty"}
	}
	job := &BatchJob{
		ID:          uuid.NewString(),
		Texts:       texts,
		CallbackURL: callbackURL,
		SubmittedAt: time.Now().UTC(),
	}
	status := &BatchStatus{
		BatchID:    job.ID,
		Status:     StatusQueued,
		TotalItems: len(texts),
		StartedAt:  time.Now().UTC(),
	}
	if err := p.store.SetBatchStatus(ctx, status, p.cfg.ResultTTL); err != nil {
		return "", err
	}
	if err := p.store.Enqueue(ctx, QueueBatch, job); err != nil {
		return "", err
	}
	p.log.Info().Str("batch_id", job.ID).Int("items", len(texts)).Msg("batch queued")
	return job.ID, nil
}

// Start launches the poll loops and the cleanup ticker. It returns
// immediately; Stop shuts everything down.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("processor already running")
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for _, queue := range []string{QueuePriority, QueueNormal, QueueBatch} {
		p.wg.Add(1)
		go p.pollLoop(ctx, queue)
	}
	p.wg.Add(1)
	go p.cleanupLoop(ctx)

	p.log.Info().Msg("queue processor started")
	return nil
}

// Stop cancels the loops, drops pending retry timers and waits for
// in-flight jobs to finish.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	for t := range p.timers {
		t.Stop()
	}
	p.timers = map[*time.Timer]struct{}{}
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info().Msg("queue processor stopped")
}

// Stats reports counters and current queue depths.
func (p *Processor) Stats(ctx context.Context) ProcessorStats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	depths := map[string]int64{}
	for _, queue := range []string{QueuePriority, QueueNormal, QueueBatch} {
		n, err := p.store.QueueDepth(ctx, queue)
		if err != nil {
			p.log.Warn().Err(err).Str("queue", queue).Msg("queue depth unavailable")
			continue
		}
		depths[queue] = n
	}
	return ProcessorStats{
		Running:        running,
		ProcessedCount: p.processed.Load(),
		ErrorCount:     p.errors.Load(),
		RetryCount:     p.retries.Load(),
		QueueDepths:    depths,
		Callbacks:      p.callbacks.Stats(),
	}
}

func (p *Processor) pollLoop(ctx context.Context, queue string) {
	defer p.wg.Done()
	pc := pollConfigs[queue]
	log := p.log.With().Str("queue", queue).Logger()
	log.Info().Msg("poll loop started")

	for {
		if ctx.Err() != nil {
			return
		}
		_, payload, err := p.store.Dequeue(ctx, pc.timeout, queue)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrNotFound) {
				sleep(ctx, pc.idleSleep)
				continue
			}
			log.Error().Err(err).Msg("queue poll failed")
			sleep(ctx, pc.errSleep)
			continue
		}
		if queue == QueueBatch {
			p.handleBatchPayload(ctx, payload)
		} else {
			p.handleScanPayload(ctx, payload)
		}
	}
}

func (p *Processor) handleScanPayload(ctx context.Context, payload []byte) {
	var job ScanJob
	if err := json.Unmarshal(payload, &job); err != nil {
		p.errors.Add(1)
		p.log.Error().Err(err).Msg("dropping undecodable scan job")
		return
	}
	p.processScan(ctx, &job)
}

func (p *Processor) handleBatchPayload(ctx context.Context, payload []byte) {
	var job BatchJob
	if err := json.Unmarshal(payload, &job); err != nil {
		p.errors.Add(1)
		p.log.Error().Err(err).Msg("dropping undecodable batch job")
		return
	}
	p.processBatch(ctx, &job)
}

func (p *Processor) processScan(ctx context.Context, job *ScanJob) {
	log := p.log.With().Str("job_id", job.ID).Logger()
	log.Info().Str("priority", job.Priority).Msg("processing scan job")

	if err := p.store.SetScanResult(ctx, &ScanResult{
		ID:         job.ID,
		Status:     StatusProcessing,
		RetryCount: job.RetryCount,
	}, p.cfg.ResultTTL); err != nil {
		log.Warn().Err(err).Msg("failed to mark scan processing")
	}

	analysis, err := p.service.Analyze(ctx, job.Text, DefaultOptions())
	if err != nil {
		p.errors.Add(1)
		log.Error().Err(err).Msg("scan job failed")
		p.retryScan(ctx, job, err)
		return
	}

	result := &ScanResult{
		ID:         job.ID,
		Status:     StatusCompleted,
		Analysis:   analysis,
		RetryCount: job.RetryCount,
		FinishedAt: time.Now().UTC(),
	}
	if err := p.store.SetScanResult(ctx, result, p.cfg.ResultTTL); err != nil {
		log.Warn().Err(err).Msg("failed to store scan result")
	}
	if job.CallbackURL != "" {
		p.deliverCallback(job.CallbackURL, result)
	}
	p.processed.Add(1)
	log.Info().Msg("scan job completed")
}

// retryScan re-queues a failed scan with a growing delay, or stores the
// terminal failure once attempts run out. Validation failures are the
// caller's fault and terminalize immediately.
func (p *Processor) retryScan(ctx context.Context, job *ScanJob, cause error) {
	var vErr *ValidationError
	if job.RetryCount >= maxScanRetries || errors.As(cause, &vErr) {
		terminal := &QueueProcessingError{JobID: job.ID, Retries: job.RetryCount, Err: cause}
		result := &ScanResult{
			ID:         job.ID,
			Status:     StatusFailed,
			Error:      cause.Error(),
			RetryCount: job.RetryCount,
			FailedAt:   time.Now().UTC(),
		}
		if err := p.store.SetScanResult(ctx, result, p.cfg.ResultTTL); err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to store failed scan result")
		}
		p.log.Error().Err(terminal).Msg("scan job exhausted retries")
		return
	}

	retried := *job
	retried.RetryCount++
	retried.LastError = cause.Error()
	queue := QueueNormal
	if retried.Priority == PriorityHigh {
		queue = QueuePriority
	}
	delay := time.Duration(retried.RetryCount) * p.scanRetryDelay
	p.scheduleRequeue(delay, queue, &retried)
	p.retries.Add(1)
	p.log.Info().
		Str("job_id", job.ID).
		Int("attempt", retried.RetryCount).
		Dur("delay", delay).
		Msg("scan job retry scheduled")
}

func (p *Processor) processBatch(ctx context.Context, job *BatchJob) {
	log := p.log.With().Str("batch_id", job.ID).Logger()
	log.Info().Int("items", len(job.Texts)).Msg("processing batch job")

	status := &BatchStatus{
		BatchID:    job.ID,
		Status:     StatusProcessing,
		TotalItems: len(job.Texts),
		StartedAt:  time.Now().UTC(),
	}
	if err := p.store.SetBatchStatus(ctx, status, p.cfg.ResultTTL); err != nil {
		p.errors.Add(1)
		log.Error().Err(err).Msg("batch job failed")
		p.retryBatch(ctx, job, err)
		return
	}

	opts := Options{IncludeExplanation: false, IncludeEvidence: false, UseCache: true}
	for i, text := range job.Texts {
		item := BatchItemResult{Index: i}
		analysis, err := p.service.Analyze(ctx, text, opts)
		if err != nil {
			item.Status = StatusFailed
			item.Error = err.Error()
			status.FailedItems++
		} else {
			item.Status = StatusCompleted
			item.Analysis = analysis
		}
		status.Results = append(status.Results, item)
		status.ProcessedItems++

		// Checkpoint progress so status polls see movement on big batches.
		if status.ProcessedItems%10 == 0 {
			if err := p.store.SetBatchStatus(ctx, status, p.cfg.ResultTTL); err != nil {
				log.Warn().Err(err).Msg("failed to checkpoint batch status")
			}
		}
	}

	status.Status = StatusCompleted
	status.CompletedAt = time.Now().UTC()
	status.Aggregates = batchAggregates(status.Results)
	if err := p.store.SetBatchStatus(ctx, status, p.cfg.ResultTTL); err != nil {
		log.Warn().Err(err).Msg("failed to store final batch status")
	}
	if job.CallbackURL != "" {
		p.deliverCallback(job.CallbackURL, status)
	}
	p.processed.Add(int64(len(job.Texts)))
	log.Info().Int("failed", status.FailedItems).Msg("batch job completed")
}

func (p *Processor) retryBatch(ctx context.Context, job *BatchJob, cause error) {
	if job.RetryCount >= maxBatchRetries {
		status := &BatchStatus{
			BatchID:     job.ID,
			Status:      StatusFailed,
			TotalItems:  len(job.Texts),
			Error:       cause.Error(),
			StartedAt:   job.SubmittedAt,
			CompletedAt: time.Now().UTC(),
		}
		if err := p.store.SetBatchStatus(ctx, status, p.cfg.ResultTTL); err != nil {
			p.log.Error().Err(err).Str("batch_id", job.ID).Msg("failed to store failed batch status")
		}
		terminal := &QueueProcessingError{JobID: job.ID, Retries: job.RetryCount, Err: cause}
		p.log.Error().Err(terminal).Msg("batch job exhausted retries")
		return
	}

	retried := *job
	retried.RetryCount++
	retried.LastError = cause.Error()
	delay := time.Duration(retried.RetryCount) * p.batchRetryDelay
	p.scheduleRequeue(delay, QueueBatch, &retried)
	p.retries.Add(1)
	p.log.Info().
		Str("batch_id", job.ID).
		Int("attempt", retried.RetryCount).
		Dur("delay", delay).
		Msg("batch job retry scheduled")
}

// scheduleRequeue re-enqueues a job after the delay. Timers are dropped on
// Stop; a lost retry just surfaces as a stale queued status.
func (p *Processor) scheduleRequeue(delay time.Duration, queue string, job any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.timers, t)
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.store.Enqueue(ctx, queue, job); err != nil {
			p.log.Error().Err(err).Str("queue", queue).Msg("failed to re-enqueue retry")
		}
	})
	p.timers[t] = struct{}{}
}

// deliverCallback posts the payload from its own goroutine so a slow
// receiver never stalls the poll loop. Deliveries beyond the semaphore
// capacity are dropped.
func (p *Processor) deliverCallback(url string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error().Err(err).Str("url", url).Msg("failed to encode callback payload")
		return
	}
	if !p.callbacks.TryAcquire() {
		p.log.Warn().Str("url", url).Msg("callback dropped, delivery at capacity")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.callbacks.Release()

		ctx, cancel := context.WithTimeout(context.Background(), p.client.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			p.log.Error().Err(err).Str("url", url).Msg("failed to build callback request")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			p.log.Error().Err(err).Str("url", url).Msg("callback delivery failed")
			return
		}
		defer httputil.DrainAndClose(resp.Body)
		if resp.StatusCode != http.StatusOK {
			p.log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("callback rejected")
			return
		}
		p.log.Info().Str("url", url).Msg("callback delivered")
	}()
}

// cleanupLoop periodically reports queue depths. Result and status keys
// expire via their TTLs so there is nothing to reap by hand.
func (p *Processor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()
	interval := p.cfg.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := p.Stats(ctx)
			p.log.Info().
				Int64("processed", stats.ProcessedCount).
				Int64("errors", stats.ErrorCount).
				Interface("queue_depths", stats.QueueDepths).
				Msg("periodic cleanup")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func batchAggregates(results []BatchItemResult) *BatchAggregates {
	agg := &BatchAggregates{}
	var scored int
	var sum float64
	var suspicious int
	for _, r := range results {
		if r.Analysis == nil {
			continue
		}
		scored++
		sum += r.Analysis.RiskScore
		if r.Analysis.RiskScore > 0.7 {
			agg.HighRiskCount++
		}
		if r.Analysis.RiskScore > 0.5 {
			suspicious++
		}
	}
	if scored > 0 {
		agg.AvgRiskScore = sum / float64(scored)
		agg.SuspiciousRatio = float64(suspicious) / float64(scored)
	}
	return agg
}
