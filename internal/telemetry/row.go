// Package telemetry defines the loosely typed row model shared by the
// preprocessing, scoring and reporting stages, plus readers for the
// tabular formats endpoint exporters produce.
package telemetry

// Row is one telemetry record: a column-name to cell mapping. Exporters
// disagree on schemas, so rows stay schema-tolerant until the preprocessor
// projects them onto the expected column set.
type Row map[string]Value

// Has reports whether the column exists and is non-null.
func (r Row) Has(col string) bool {
	v, ok := r[col]
	return ok && !v.IsNull()
}

// GetString returns the column rendered as a string, if present and non-null.
func (r Row) GetString(col string) (string, bool) {
	v, ok := r[col]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetFloat returns the column as a float, if present and numeric.
func (r Row) GetFloat(col string) (float64, bool) {
	v, ok := r[col]
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

// GetInt returns the column as an integer, if present and numeric.
func (r Row) GetInt(col string) (int64, bool) {
	v, ok := r[col]
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// GetBool returns the column as a boolean, if present and boolean-shaped.
func (r Row) GetBool(col string) (bool, bool) {
	v, ok := r[col]
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
