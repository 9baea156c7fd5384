package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

// modelFile is the on-disk shape of an exported model: a logistic
// regression over numeric telemetry columns.
type modelFile struct {
	Bias      float64            `json:"bias"`
	Threshold float64            `json:"threshold"`
	Weights   map[string]float64 `json:"weights"`
}

// LinearModel is a logistic classifier over numeric row features, exported
// by the offline training procedure. Training itself is out of scope here;
// this side only evaluates.
type LinearModel struct {
	bias      float64
	threshold float64
	weights   map[string]float64
}

// LoadModel reads an exported model from path. A missing or malformed file
// yields ErrModelUnavailable so the boundary can report the classifier as
// not loaded.
func LoadModel(path string) (*LinearModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrModelUnavailable, path, err)
	}
	var mf modelFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrModelUnavailable, path, err)
	}
	if len(mf.Weights) == 0 {
		return nil, fmt.Errorf("%w: %s has no weights", ErrModelUnavailable, path)
	}
	if mf.Threshold == 0 {
		mf.Threshold = 0.5
	}
	return &LinearModel{bias: mf.Bias, threshold: mf.Threshold, weights: mf.Weights}, nil
}

// Predict scores each row with the logistic model. Absent or non-numeric
// feature columns contribute zero.
func (m *LinearModel) Predict(_ context.Context, rows []telemetry.Row) ([]bool, error) {
	if m == nil {
		return nil, ErrModelUnavailable
	}
	out := make([]bool, len(rows))
	for i, row := range rows {
		z := m.bias
		for col, w := range m.weights {
			if v, ok := row.GetFloat(col); ok {
				z += w * v
			}
		}
		p := 1 / (1 + math.Exp(-z))
		out[i] = p >= m.threshold
	}
	return out, nil
}
