// Package preprocess normalizes raw endpoint telemetry batches into the
// canonical column set the scoring engine expects. Every cleaning step is
// independently fault tolerant: a cell that cannot be converted is logged
// and left as-is (or nulled where the step defines that), never aborting
// the batch.
package preprocess

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

// BlobColumn is the semi-structured attribute column some feeds attach to a
// row: a JSON object encoded as a string, occasionally wrapped in a Python
// byte-string artifact (b'...').
const BlobColumn = "ioc_attr"

// BlobPrefix prefixes flattened blob keys when they are promoted to
// top-level columns.
const BlobPrefix = "ioc_attr_"

// TargetColumn is the derived label column: the logical AND of the two
// legacy label columns, when both are present.
const TargetColumn = "target"

var legacyLabelColumns = [2]string{"labelisation", "incident"}

// numericConversionColumns are coerced to nullable integers; unparseable
// cells become null rather than an error.
var numericConversionColumns = []string{
	"ioc_attr_local_ip",
	"ioc_attr_local_port",
	"ioc_attr_remote_port",
	"ioc_attr_port",
	"ioc_attr_remote_ip",
}

// ipColumns carry IPv4 addresses encoded as 32-bit unsigned integers.
var ipColumns = []string{"ioc_attr_local_ip", "ioc_attr_remote_ip"}

// stringifyColumns are forced to their string rendering.
var stringifyColumns = []string{"watchlist_name"}

// dropColumns is the legacy deny-list removed when present.
var dropColumns = []string{
	"total_hosts", "alert_severity", "alert_type", "comms_ip",
	"feed_id", "feed_rating", "group", "ioc_confidence",
	"link", "sha256", "report_ignored", "report_score",
	"sensor_criticality", "sensor_id", "status", "unique_id",
	"watchlist_id", "Unnamed: 0", "labelisation", "incident",
}

// expectedColumns is the canonical output schema; anything outside it is
// silently discarded.
var expectedColumns = []string{
	"childproc_count", "created_time", "crossproc_count", "description",
	"feed_name", "filemod_count", "hostname", "interface_ip", "ioc_type",
	"ioc_value", "md5", "modload_count", "netconn_count", "os_type",
	"process_id", "process_name", "process_path", "process_unique_id",
	"regmod_count", "segment_id", "watchlist_name", "ioc_attr_direction",
	"ioc_attr_dns_name", "ioc_attr_local_ip", "ioc_attr_local_port",
	"ioc_attr_port", "ioc_attr_protocol", "ioc_attr_remote_ip", "ioc_attr_remote_port",
}

// Preprocessor normalizes telemetry batches. It carries no per-batch state,
// so a single instance may be reused across requests.
type Preprocessor struct {
	logger *log.Logger
}

// New creates a Preprocessor. A nil logger falls back to stderr.
func New(logger *log.Logger) *Preprocessor {
	if logger == nil {
		logger = log.New(os.Stderr, "[preprocess] ", log.LstdFlags)
	}
	return &Preprocessor{logger: logger}
}

// Normalize runs the full cleaning sequence over a batch and returns the
// normalized rows. Input rows are not mutated.
func (p *Preprocessor) Normalize(batch []telemetry.Row) []telemetry.Row {
	out := make([]telemetry.Row, 0, len(batch))
	targetDerived := false

	for i, raw := range batch {
		row := raw.Clone()

		p.flattenBlob(row, i)
		if p.deriveTarget(row, i) {
			targetDerived = true
		}
		p.coerceNumerics(row)
		p.convertIPs(row)
		p.stringify(row)
		for _, col := range dropColumns {
			delete(row, col)
		}
		out = append(out, project(row, targetDerived))
	}
	return out
}

// flattenBlob parses the JSON attribute blob and promotes its keys to
// prefixed top-level columns. The blob column itself is always removed;
// a parse failure just leaves the row without the flattened fields.
func (p *Preprocessor) flattenBlob(row telemetry.Row, idx int) {
	v, ok := row[BlobColumn]
	if !ok {
		return
	}
	defer delete(row, BlobColumn)
	if v.IsNull() {
		return
	}

	s, _ := v.AsString()
	// Strip the byte-string quoting artifact some exporters leave behind.
	if strings.HasPrefix(s, "b'") && strings.HasSuffix(s, "'") {
		s = s[2 : len(s)-1]
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		p.logger.Printf("row %d: cannot parse %s blob: %v", idx, BlobColumn, err)
		return
	}
	for key, val := range parsed {
		row[BlobPrefix+key] = telemetry.FromAny(val)
	}
}

// deriveTarget sets target = labelisation AND incident when both legacy
// label columns exist on the row.
func (p *Preprocessor) deriveTarget(row telemetry.Row, idx int) bool {
	a, okA := row[legacyLabelColumns[0]]
	b, okB := row[legacyLabelColumns[1]]
	if !okA || !okB {
		return false
	}
	ab, okA := a.AsBool()
	bb, okB := b.AsBool()
	if !okA || !okB {
		p.logger.Printf("row %d: legacy label columns are not boolean, skipping %s", idx, TargetColumn)
		return false
	}
	row[TargetColumn] = telemetry.Bool(ab && bb)
	return true
}

func (p *Preprocessor) coerceNumerics(row telemetry.Row) {
	for _, col := range numericConversionColumns {
		v, ok := row[col]
		if !ok || v.IsNull() {
			continue
		}
		if f, ok := v.AsFloat(); ok {
			row[col] = telemetry.Number(float64(int64(f)))
		} else {
			row[col] = telemetry.Null
		}
	}
}

func (p *Preprocessor) convertIPs(row telemetry.Row) {
	for _, col := range ipColumns {
		v, ok := row[col]
		if !ok {
			continue
		}
		row[col] = telemetry.String(IntToIP(v))
	}
}

func (p *Preprocessor) stringify(row telemetry.Row) {
	for _, col := range stringifyColumns {
		v, ok := row[col]
		if !ok || v.IsNull() {
			continue
		}
		s, _ := v.AsString()
		row[col] = telemetry.String(s)
	}
}

// IntToIP renders a 32-bit unsigned integer as a dotted-quad address.
// Null, negative, non-numeric or overflowing values fall back to "0.0.0.0".
func IntToIP(v telemetry.Value) string {
	n, ok := v.AsInt()
	if !ok || n < 0 || n > 0xFFFFFFFF {
		return "0.0.0.0"
	}
	u := uint32(n)
	return fmt.Sprintf("%d.%d.%d.%d", byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

func project(row telemetry.Row, withTarget bool) telemetry.Row {
	out := make(telemetry.Row, len(expectedColumns))
	for _, col := range expectedColumns {
		if v, ok := row[col]; ok {
			out[col] = v
		}
	}
	if withTarget {
		if v, ok := row[TargetColumn]; ok {
			out[TargetColumn] = v
		}
	}
	return out
}
