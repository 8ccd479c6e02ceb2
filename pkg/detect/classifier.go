package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/scamdunk/scamguard/pkg/logging"
)

// Detector is one scoring model in the ensemble.
type Detector interface {
	Name() string
	Analyze(ctx context.Context, text string) (Prediction, error)
}

// HugotClassifier adapts an ONNX text-classification model into a Detector.
// When no model is available on disk, callers should fall back to the
// Simulator instead of constructing this.
type HugotClassifier struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
	modelID  string
	log      *logging.Logger
}

// NewHugotClassifier loads the classification model at modelPath.
func NewHugotClassifier(modelPath, modelID string, log *logging.Logger) (*HugotClassifier, error) {
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create inference session: %w", err)
	}

	cfg := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      modelID,
	}
	pipeline, err := hugot.NewPipeline(session, cfg)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("load classification model %s: %w", modelPath, err)
	}

	return &HugotClassifier{
		session:  session,
		pipeline: pipeline,
		modelID:  modelID,
		log:      log.WithComponent("hugot_classifier"),
	}, nil
}

// Name implements Detector.
func (c *HugotClassifier) Name() string { return ModelBERT }

// Analyze implements Detector. The model's positive-class probability is the
// risk score; confidence grows with distance from the decision boundary.
func (c *HugotClassifier) Analyze(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, fmt.Errorf("classifier: %w", err)
	}

	start := time.Now()
	out, err := c.pipeline.RunPipeline([]string{text})
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier inference: %w", err)
	}

	var score float64
	if len(out.ClassificationOutputs) > 0 && len(out.ClassificationOutputs[0]) > 0 {
		best := out.ClassificationOutputs[0][0]
		score = float64(best.Score)
		// Binary models label the benign class too; invert so score is
		// always scam probability.
		if best.Label == "LABEL_0" || best.Label == "not_scam" {
			score = 1 - score
		}
	}

	confidence := 0.5 + abs(score-0.5)
	if confidence > 0.95 {
		confidence = 0.95
	}

	return Prediction{
		Model:      ModelBERT,
		Score:      clip01(score),
		Confidence: confidence,
		ModelInfo: &ModelMeta{
			ModelID:   c.modelID,
			Version:   "onnx",
			Simulated: false,
			LatencyMS: time.Since(start).Milliseconds(),
		},
	}, nil
}

// Close releases the inference session.
func (c *HugotClassifier) Close() error {
	return c.session.Destroy()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
