// Package pipeline wires the triage stages together: preprocess the raw
// batch, ask the classifier which rows are incidents, score and rank the
// incidents, and build the report. One invocation handles one batch; the
// pipeline keeps no per-batch state and may be shared across requests.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Ashfaaq98/incident-triage/internal/classify"
	"github.com/Ashfaaq98/incident-triage/internal/metrics"
	"github.com/Ashfaaq98/incident-triage/internal/preprocess"
	"github.com/Ashfaaq98/incident-triage/internal/report"
	"github.com/Ashfaaq98/incident-triage/internal/reputation"
	"github.com/Ashfaaq98/incident-triage/internal/scoring"
	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

// Options configures a Pipeline.
type Options struct {
	// Classifier labels normalized rows. Required.
	Classifier classify.Classifier
	// Lookup resolves IP reputation; nil disables oracle enrichment.
	Lookup *reputation.Lookup
	// OracleConfigured is surfaced in report metadata as api_used.
	OracleConfigured bool
	// Logger for stage progress (optional).
	Logger *log.Logger
}

// Pipeline runs raw telemetry batches end to end into reports.
type Pipeline struct {
	pre        *preprocess.Preprocessor
	classifier classify.Classifier
	engine     *scoring.Engine
	apiUsed    bool
	logger     *log.Logger
}

// New assembles a pipeline from its collaborators.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[pipeline] ", log.LstdFlags)
	}
	return &Pipeline{
		pre:        preprocess.New(logger),
		classifier: opts.Classifier,
		engine:     scoring.NewEngine(opts.Lookup, logger),
		apiUsed:    opts.OracleConfigured,
		logger:     logger,
	}
}

// Run processes one raw batch into a report. Classifier failures abort the
// batch; everything downstream degrades per-field or per-IP instead of
// failing.
func (p *Pipeline) Run(ctx context.Context, raw []telemetry.Row) (*report.Report, error) {
	normalized := p.pre.Normalize(raw)

	labels, err := p.classifier.Predict(ctx, normalized)
	if err != nil {
		metrics.BatchesProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classify batch: %w", err)
	}
	if len(labels) != len(normalized) {
		metrics.BatchesProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classify batch: got %d labels for %d rows", len(labels), len(normalized))
	}

	incidents := make([]telemetry.Row, 0, len(normalized))
	for i, isIncident := range labels {
		if isIncident {
			incidents = append(incidents, normalized[i])
		}
	}
	p.logger.Printf("batch: %d rows, %d incidents", len(raw), len(incidents))

	// Empty incident sets skip scoring entirely; the report is still
	// structurally complete.
	if len(incidents) == 0 {
		metrics.BatchesProcessed.WithLabelValues("ok").Inc()
		return report.Build(nil, p.apiUsed), nil
	}

	scored := p.engine.Score(ctx, incidents)
	ranked := scoring.Categorize(scored)
	metrics.BatchesProcessed.WithLabelValues("ok").Inc()
	return report.Build(ranked, p.apiUsed), nil
}
