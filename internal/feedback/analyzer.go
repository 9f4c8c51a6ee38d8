package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// maxClassifierResponseBytes limits model output size before JSON parsing.
const maxClassifierResponseBytes = 4 * 1024

// maxKeyPhrases bounds how many phrases a single record keeps.
const maxKeyPhrases = 10

const classifierInstruction = `You classify user feedback about a mental-health assistant's response. Reply with a single JSON object and nothing else:
{"label": "positive" | "negative" | "neutral", "confidence": <number 0..1>, "key_phrases": [<up to 5 short phrases from the feedback>]}`

// neutralFallback is what Analyze returns whenever classification cannot be
// trusted: model failure, empty feedback, or malformed output.
func neutralFallback() Sentiment {
	return Sentiment{Label: LabelNeutral, Confidence: 0.5, KeyPhrases: []string{}}
}

// AnalyzerConfig configures an Analyzer.
type AnalyzerConfig struct {
	Genkit    *genkit.Genkit
	ModelName string
	Timeout   time.Duration
	Logger    *slog.Logger
}

func (c *AnalyzerConfig) validate() error {
	if c.Genkit == nil {
		return fmt.Errorf("analyzer: genkit instance is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("analyzer: model name is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("analyzer: timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Analyzer classifies feedback sentiment via the model.
type Analyzer struct {
	g         *genkit.Genkit
	modelName string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

// Analyze classifies text and never fails: any classifier problem degrades to
// the neutral fallback, logged but not surfaced, so flaky classification can
// never block feedback storage.
func (a *Analyzer) Analyze(ctx context.Context, text string) Sentiment {
	if strings.TrimSpace(text) == "" {
		return neutralFallback()
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.modelName),
		ai.WithSystem(classifierInstruction),
		ai.WithPrompt("Feedback: "+text),
	)
	if err != nil {
		a.logger.Warn("sentiment classification failed, degrading to neutral", "error", err)
		return neutralFallback()
	}

	return a.parse(resp.Text())
}

// parse validates the model's JSON verdict, degrading to neutral on anything
// malformed rather than propagating untyped model output.
func (a *Analyzer) parse(raw string) Sentiment {
	text := stripCodeFences(raw)
	if text == "" || len(text) > maxClassifierResponseBytes {
		a.logger.Warn("sentiment classifier output unusable, degrading to neutral", "bytes", len(text))
		return neutralFallback()
	}

	var s Sentiment
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		a.logger.Warn("sentiment classifier output unparseable, degrading to neutral", "error", err)
		return neutralFallback()
	}

	switch s.Label {
	case LabelPositive, LabelNegative, LabelNeutral:
	default:
		a.logger.Warn("sentiment classifier returned unknown label, degrading to neutral", "label", s.Label)
		return neutralFallback()
	}

	s.Confidence = clamp01(s.Confidence)
	if s.KeyPhrases == nil {
		s.KeyPhrases = []string{}
	}
	if len(s.KeyPhrases) > maxKeyPhrases {
		s.KeyPhrases = s.KeyPhrases[:maxKeyPhrases]
	}
	return s
}

// Score maps a sentiment to a signed scalar in [-1, 1]. The sign always
// matches the label; neutral is exactly zero regardless of confidence.
func Score(label string, confidence float64) float64 {
	switch label {
	case LabelPositive:
		return clamp01(confidence)
	case LabelNegative:
		return -clamp01(confidence)
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stripCodeFences removes ```json ... ``` wrapping from model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
