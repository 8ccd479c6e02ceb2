package scan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scamdunk/scamguard/pkg/config"
	"github.com/scamdunk/scamguard/pkg/detect"
	"github.com/scamdunk/scamguard/pkg/logging"
	"github.com/scamdunk/scamguard/pkg/textproc"
)

// Message is one conversation turn submitted for analysis.
type Message struct {
	Text      string    `json:"text"`
	Sender    string    `json:"sender,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Options tune a single analysis request.
type Options struct {
	IncludeExplanation bool
	IncludeEvidence    bool
	UseCache           bool
}

// DefaultOptions enable everything.
func DefaultOptions() Options {
	return Options{IncludeExplanation: true, IncludeEvidence: true, UseCache: true}
}

// Service is the orchestrator: it validates input, consults the cache, fans
// out to the detectors in parallel, combines their predictions and records
// metrics. Safe for concurrent use.
type Service struct {
	detectors []detect.Detector
	ensemble  *detect.Ensemble
	explainer *detect.Explainer
	store     Store
	cfg       config.DetectionConfig
	log       *logging.Logger

	totalRequests atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	errorCount    atomic.Int64
	degradedCount atomic.Int64

	avgMu         sync.Mutex
	avgResponseMS float64
}

// NewService wires the orchestrator. The detectors slice is used as given;
// order only affects the order of per-model summaries.
func NewService(
	detectors []detect.Detector,
	ensemble *detect.Ensemble,
	explainer *detect.Explainer,
	store Store,
	cfg config.DetectionConfig,
	log *logging.Logger,
) *Service {
	return &Service{
		detectors: detectors,
		ensemble:  ensemble,
		explainer: explainer,
		store:     store,
		cfg:       cfg,
		log:       log.WithComponent("scan_service"),
	}
}

// Ensemble exposes the underlying ensemble for admin operations.
func (s *Service) Ensemble() *detect.Ensemble { return s.ensemble }

// ValidateText enforces the request length bounds.
func (s *Service) ValidateText(text string) error {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < s.cfg.MinTextLength {
		return &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("must be at least %d characters", s.cfg.MinTextLength),
		}
	}
	if len(text) > s.cfg.MaxTextLength {
		return &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("must be at most %d characters", s.cfg.MaxTextLength),
		}
	}
	return nil
}

// Analyze scans one message. Cache hits are returned with a fresh
// RetrievedAt; misses run the full pipeline and cache the outcome. A store
// failure never fails the scan, only the caching of it.
func (s *Service) Analyze(ctx context.Context, text string, opts Options) (*Analysis, error) {
	start := time.Now()
	s.totalRequests.Add(1)

	if err := s.ValidateText(text); err != nil {
		s.errorCount.Add(1)
		return nil, err
	}

	fingerprint := textproc.Fingerprint(text)

	if opts.UseCache {
		cached, err := s.store.GetCachedAnalysis(ctx, fingerprint)
		switch {
		case err == nil:
			s.cacheHits.Add(1)
			cached.Cached = true
			cached.RetrievedAt = time.Now().UTC()
			s.recordLatency(start)
			return cached, nil
		case err != ErrNotFound:
			// A broken cache degrades to a full scan.
			oerr := &OrchestrationError{Stage: "cache_lookup", Err: err}
			s.log.Warn().Err(oerr).Str("fingerprint", fingerprint).Msg("cache lookup failed")
		}
		s.cacheMisses.Add(1)
	}

	analysis := s.runPipeline(ctx, text, fingerprint, opts)

	if opts.UseCache {
		if err := s.store.CacheAnalysis(ctx, fingerprint, analysis, s.cfg.ModelRefreshInterval); err != nil {
			oerr := &OrchestrationError{Stage: "cache_write", Err: err}
			s.log.Warn().Err(oerr).Str("fingerprint", fingerprint).Msg("failed to cache analysis")
		}
	}

	s.recordLatency(start)
	analysis.ProcessingMS = time.Since(start).Milliseconds()
	return analysis, nil
}

// runPipeline fans the text out to every detector in parallel. A detector
// error or panic is replaced with a zero-confidence placeholder so the
// ensemble's confidence weighting mutes it instead of sinking the scan.
func (s *Service) runPipeline(ctx context.Context, text, fingerprint string, opts Options) *Analysis {
	type outcome struct {
		idx  int
		pred detect.Prediction
		err  error
	}

	results := make([]outcome, len(s.detectors))
	var wg sync.WaitGroup
	for i, d := range s.detectors {
		wg.Add(1)
		go func(i int, d detect.Detector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = outcome{
						idx: i,
						err: &DetectorError{Detector: d.Name(), Err: fmt.Errorf("panic: %v", r)},
					}
				}
			}()
			pred, err := d.Analyze(ctx, text)
			if err != nil {
				err = &DetectorError{Detector: d.Name(), Err: err}
			}
			results[i] = outcome{idx: i, pred: pred, err: err}
		}(i, d)
	}
	wg.Wait()

	predictions := make([]detect.Prediction, 0, len(s.detectors))
	summaries := make([]ModelSummary, 0, len(s.detectors))
	var degraded []string
	for i, res := range results {
		if res.err != nil {
			name := s.detectors[i].Name()
			s.log.Error().Err(res.err).Str("detector", name).Msg("detector failed, degrading")
			degraded = append(degraded, name)
			res.pred = detect.Prediction{Model: name, Score: 0, Confidence: 0}
		}
		predictions = append(predictions, res.pred)
		summaries = append(summaries, ModelSummary{
			Model:      res.pred.Model,
			Score:      res.pred.Score,
			Confidence: res.pred.Confidence,
			Degraded:   res.err != nil,
		})
	}
	if len(degraded) > 0 {
		s.degradedCount.Add(1)
	}

	assessment := s.ensemble.Combine(predictions)

	now := time.Now().UTC()
	analysis := &Analysis{
		Fingerprint:      fingerprint,
		RiskScore:        assessment.Score,
		RiskTier:         assessment.Tier,
		Confidence:       assessment.Confidence,
		ModelPredictions: summaries,
		Entities:         textproc.ExtractEntities(text),
		Statistics:       textproc.Stats(text),
		ExplanationLines: assessment.Explanation,
		Degraded:         degraded,
		Timestamp:        now,
		RetrievedAt:      now,
	}
	for _, name := range degraded {
		analysis.ExplanationLines = append(analysis.ExplanationLines,
			fmt.Sprintf("Detector %s unavailable - result may be less reliable", name))
	}

	if opts.IncludeExplanation {
		ex := s.explainer.Explain(text, assessment)
		if !opts.IncludeEvidence {
			ex.Evidence = []string{}
		}
		analysis.Explanation = &ex
	}
	return analysis
}

// AnalyzeConversation scans the combined text plus each message on its own,
// then derives conversation-level metrics and the risk trend.
func (s *Service) AnalyzeConversation(ctx context.Context, messages []Message, opts Options) (*ConversationAnalysis, error) {
	start := time.Now()
	if len(messages) == 0 {
		return nil, &ValidationError{Field: "messages", Reason: "must not be empty"}
	}

	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Text)
	}
	combined := strings.Join(parts, " ")

	overall, err := s.Analyze(ctx, combined, opts)
	if err != nil {
		return nil, err
	}

	perMessage := make([]*Analysis, 0, len(messages))
	msgOpts := Options{UseCache: opts.UseCache}
	for _, m := range messages {
		if len(strings.TrimSpace(m.Text)) < s.cfg.MinTextLength {
			continue
		}
		a, err := s.Analyze(ctx, m.Text, msgOpts)
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping message in conversation analysis")
			continue
		}
		perMessage = append(perMessage, a)
	}

	return &ConversationAnalysis{
		OverallRisk:        overall,
		IndividualMessages: perMessage,
		Metrics:            conversationMetrics(perMessage),
		MessageCount:       len(messages),
		ProcessingMS:       time.Since(start).Milliseconds(),
	}, nil
}

func conversationMetrics(results []*Analysis) *ConversationMetrics {
	if len(results) == 0 {
		return nil
	}

	scores := make([]float64, 0, len(results))
	m := &ConversationMetrics{MinRiskScore: 1}
	var confSum float64
	for _, r := range results {
		scores = append(scores, r.RiskScore)
		m.AvgRiskScore += r.RiskScore
		confSum += r.Confidence
		if r.RiskScore > m.MaxRiskScore {
			m.MaxRiskScore = r.RiskScore
		}
		if r.RiskScore < m.MinRiskScore {
			m.MinRiskScore = r.RiskScore
		}
		if r.RiskScore > 0.7 {
			m.HighRiskMessages++
		}
		if r.RiskScore > 0.5 {
			m.SuspiciousRatio++
		}
	}
	n := float64(len(results))
	m.AvgRiskScore /= n
	m.AvgConfidence = confSum / n
	m.SuspiciousRatio /= n
	m.RiskTrend = riskTrend(scores)
	return m
}

// riskTrend compares the first and last thirds of the score sequence.
func riskTrend(scores []float64) string {
	if len(scores) < 3 {
		return "insufficient_data"
	}
	third := len(scores) / 3
	first := mean(scores[:third])
	last := mean(scores[len(scores)-third:])
	switch {
	case last > first+0.2:
		return "escalating"
	case last < first-0.2:
		return "de-escalating"
	default:
		return "stable"
	}
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func (s *Service) recordLatency(start time.Time) {
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	s.avgMu.Lock()
	n := float64(s.totalRequests.Load())
	if n > 0 {
		s.avgResponseMS += (elapsed - s.avgResponseMS) / n
	}
	s.avgMu.Unlock()
}

// Metrics returns a consistent snapshot of the service counters.
func (s *Service) Metrics() Metrics {
	total := s.totalRequests.Load()
	hits := s.cacheHits.Load()
	misses := s.cacheMisses.Load()
	errs := s.errorCount.Load()

	m := Metrics{
		TotalRequests: total,
		CacheHits:     hits,
		CacheMisses:   misses,
		ErrorCount:    errs,
		DegradedCount: s.degradedCount.Load(),
	}
	if hits+misses > 0 {
		m.CacheHitRatePct = float64(hits) / float64(hits+misses) * 100
	}
	if total > 0 {
		m.ErrorRatePct = float64(errs) / float64(total) * 100
	}
	s.avgMu.Lock()
	m.AvgResponseMS = s.avgResponseMS
	s.avgMu.Unlock()
	return m
}
