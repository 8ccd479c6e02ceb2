package scan

import (
	"context"
	"sync"
	"time"

	"github.com/scamdunk/scamguard/pkg/config"
	"github.com/scamdunk/scamguard/pkg/logging"
)

const (
	maxDriftSamples = 1000
	maxDriftAlerts  = 50
)

// DriftAlert records an observed accuracy drop between the older and newer
// half of the evaluation window. Alerts are advisory; scoring is unaffected.
type DriftAlert struct {
	DetectedAt         time.Time `json:"detected_at"`
	FirstHalfAccuracy  float64   `json:"first_half_accuracy"`
	SecondHalfAccuracy float64   `json:"second_half_accuracy"`
	Drop               float64   `json:"drop"`
	SampleCount        int       `json:"sample_count"`
}

type driftSample struct {
	correct bool
	at      time.Time
}

// DriftMonitor tracks labeled prediction outcomes and periodically compares
// recent accuracy against the preceding stretch. A prediction counts as
// correct when score >= 0.5 agrees with a label of 1.
type DriftMonitor struct {
	cfg config.DriftConfig
	log *logging.Logger

	mu      sync.Mutex
	samples []driftSample
	alerts  []DriftAlert

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDriftMonitor(cfg config.DriftConfig, log *logging.Logger) *DriftMonitor {
	return &DriftMonitor{
		cfg: cfg,
		log: log.WithComponent("drift_monitor"),
	}
}

// Record adds one labeled outcome. Label is 1 for a confirmed scam, 0 for a
// confirmed legitimate message.
func (m *DriftMonitor) Record(score float64, label int) {
	correct := (score >= 0.5) == (label == 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, driftSample{correct: correct, at: time.Now().UTC()})
	if len(m.samples) > maxDriftSamples {
		m.samples = m.samples[len(m.samples)-maxDriftSamples:]
	}
}

// Check evaluates the current window and returns an alert when accuracy
// dropped by more than the configured threshold. Nil means no drift or not
// enough samples yet.
func (m *DriftMonitor) Check() *DriftAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := m.cfg.WindowSize
	if window < 2 || len(m.samples) < window {
		return nil
	}

	recent := m.samples[len(m.samples)-window:]
	half := window / 2
	firstAcc := accuracy(recent[:half])
	secondAcc := accuracy(recent[half:])
	drop := firstAcc - secondAcc
	if drop <= m.cfg.Threshold {
		return nil
	}

	alert := DriftAlert{
		DetectedAt:         time.Now().UTC(),
		FirstHalfAccuracy:  firstAcc,
		SecondHalfAccuracy: secondAcc,
		Drop:               drop,
		SampleCount:        window,
	}
	m.alerts = append(m.alerts, alert)
	if len(m.alerts) > maxDriftAlerts {
		m.alerts = m.alerts[len(m.alerts)-maxDriftAlerts:]
	}
	m.log.Warn().
		Float64("first_half_accuracy", firstAcc).
		Float64("second_half_accuracy", secondAcc).
		Float64("drop", drop).
		Msg("model drift detected")
	return &alert
}

// Alerts returns a copy of the retained alerts, oldest first.
func (m *DriftMonitor) Alerts() []DriftAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DriftAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// SampleCount reports how many labeled outcomes are retained.
func (m *DriftMonitor) SampleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

// Start runs Check on the configured interval until Stop or context cancel.
func (m *DriftMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		interval := m.cfg.CheckInterval
		if interval <= 0 {
			interval = 30 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check()
			}
		}
	}()
}

func (m *DriftMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func accuracy(samples []driftSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var correct int
	for _, s := range samples {
		if s.correct {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}
