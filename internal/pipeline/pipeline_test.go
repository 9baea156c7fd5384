package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/incident-triage/internal/classify"
	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

// stubClassifier returns fixed labels or a fixed error.
type stubClassifier struct {
	labels []bool
	err    error
}

func (s *stubClassifier) Predict(_ context.Context, rows []telemetry.Row) ([]bool, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.labels != nil {
		return s.labels, nil
	}
	out := make([]bool, len(rows))
	return out, nil
}

func rawBatch() []telemetry.Row {
	return []telemetry.Row{
		{
			"ioc_type":     telemetry.String("md5"),
			"ioc_value":    telemetry.String("d41d8cd98f00b204e9800998ecf8427e"),
			"description":  telemetry.String("ransomware detected"),
			"feed_name":    telemetry.String("SANS"),
			"hostname":     telemetry.String("ws-042"),
			"labelisation": telemetry.Bool(true),
			"incident":     telemetry.Bool(true),
		},
		{
			"ioc_type":     telemetry.String("url"),
			"ioc_value":    telemetry.String("http://example.test/landing"),
			"description":  telemetry.String("routine crawl"),
			"feed_name":    telemetry.String("VirusTotal"),
			"hostname":     telemetry.String("ws-043"),
			"labelisation": telemetry.Bool(true),
			"incident":     telemetry.Bool(false),
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	pipe := New(Options{Classifier: classify.Passthrough{}})

	rep, err := pipe.Run(context.Background(), rawBatch())
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.Equal(t, "success", rep.Status)
	assert.Equal(t, 2, rep.Summary.TotalIncidents)
	require.Len(t, rep.Incidents, 2)

	// The md5/ransomware row outranks the url/routine one.
	first := rep.Incidents[0]
	assert.Equal(t, "INC_000001", first.ID)
	assert.Equal(t, "md5", first.Details.IOCType)
	assert.Equal(t, "ws-042", first.Details.Hostname)
	assert.Equal(t, "url", rep.Incidents[1].Details.IOCType)
	assert.Greater(t, first.CompositeScore, rep.Incidents[1].CompositeScore)

	assert.Equal(t, 2, rep.Metadata.TotalProcessed)
	assert.False(t, rep.Metadata.APIUsed)
}

func TestRunFiltersByClassifier(t *testing.T) {
	pipe := New(Options{Classifier: &stubClassifier{labels: []bool{false, true}}})

	rep, err := pipe.Run(context.Background(), rawBatch())
	require.NoError(t, err)

	require.Len(t, rep.Incidents, 1)
	assert.Equal(t, "url", rep.Incidents[0].Details.IOCType)
	assert.Equal(t, 1, rep.Summary.TotalIncidents)
}

func TestRunAllRowsRejected(t *testing.T) {
	pipe := New(Options{Classifier: &stubClassifier{labels: []bool{false, false}}})

	rep, err := pipe.Run(context.Background(), rawBatch())
	require.NoError(t, err)

	assert.Zero(t, rep.Summary.TotalIncidents)
	assert.Empty(t, rep.Incidents)
	assert.Equal(t, "success", rep.Status)
}

func TestRunEmptyBatch(t *testing.T) {
	pipe := New(Options{Classifier: classify.Passthrough{}})

	rep, err := pipe.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, rep.Summary.TotalIncidents)
	assert.Zero(t, rep.Metadata.TotalProcessed)
}

func TestRunClassifierFailure(t *testing.T) {
	pipe := New(Options{Classifier: &stubClassifier{err: classify.ErrModelUnavailable}})

	_, err := pipe.Run(context.Background(), rawBatch())
	assert.ErrorIs(t, err, classify.ErrModelUnavailable)
}

func TestRunLabelCountMismatch(t *testing.T) {
	pipe := New(Options{Classifier: &stubClassifier{labels: []bool{true}}})

	_, err := pipe.Run(context.Background(), rawBatch())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, classify.ErrModelUnavailable)
}

func TestRunNormalizesBeforeClassifying(t *testing.T) {
	capture := &capturingClassifier{}
	pipe := New(Options{Classifier: capture})

	_, err := pipe.Run(context.Background(), rawBatch())
	require.NoError(t, err)
	seen := capture.rows
	require.Len(t, seen, 2)

	// The label columns are folded into the derived target before
	// classification.
	assert.False(t, seen[0].Has("labelisation"))
	assert.False(t, seen[0].Has("incident"))
	v, ok := seen[0].GetBool("target")
	require.True(t, ok)
	assert.True(t, v)
	v, ok = seen[1].GetBool("target")
	require.True(t, ok)
	assert.False(t, v)
}

func TestRunSurfacesOracleUsage(t *testing.T) {
	pipe := New(Options{Classifier: classify.Passthrough{}, OracleConfigured: true})

	rep, err := pipe.Run(context.Background(), rawBatch())
	require.NoError(t, err)
	assert.True(t, rep.Metadata.APIUsed)
}

type capturingClassifier struct {
	rows []telemetry.Row
}

func (c *capturingClassifier) Predict(_ context.Context, rows []telemetry.Row) ([]bool, error) {
	if c.rows == nil {
		c.rows = rows
	}
	out := make([]bool, len(rows))
	for i := range out {
		out[i] = true
	}
	return out, nil
}

var _ classify.Classifier = (*stubClassifier)(nil)
