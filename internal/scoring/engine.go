// Package scoring computes multi-factor criticality scores for incident
// rows and ranks them. The technical score captures what the artifact is
// (IOC type, endpoint activity volume); the contextual score captures the
// threat signal around it (description keywords, feed reputation, IP
// reputation, environmental factors). Sub-scores are normalized per batch
// and blended into a composite that drives the criticality level.
package scoring

import (
	"context"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/Ashfaaq98/incident-triage/internal/metrics"
	"github.com/Ashfaaq98/incident-triage/internal/reputation"
	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

// ScoredIncident is one incident row with its computed scores. The row is
// carried unchanged so the report builder can read detail fields.
type ScoredIncident struct {
	Row telemetry.Row

	TechnicalScore    float64
	ContextualScore   float64
	IPReputationScore float64

	// Filled by Categorize.
	CompositeScore float64
	FinalScore     float64
	Level          Level
}

// rule is one (pattern, weight) entry of a substring table. Tables are
// ordered lists rather than maps: every matching pattern adds its weight,
// deliberately without deduplication (a value like "ipv4" matches both
// "ipv4" and "ip" and collects both weights).
type rule struct {
	pattern string
	weight  float64
}

var iocSeverityRules = []rule{
	{"md5", 15}, {"sha1", 15}, {"sha256", 15},
	{"domain", 12},
	{"ipv4", 10}, {"ip", 10},
	{"dns", 8},
	{"registry", 7},
	{"process", 6},
	{"file", 5},
	{"network", 4},
	{"url", 3}, {"query", 3},
}

// unknownIOCWeight applies when no severity pattern matches the IOC type.
const unknownIOCWeight = 2

var activityWeights = []struct {
	column string
	weight float64
}{
	{"netconn_count", 1.8},
	{"filemod_count", 2.2},
	{"regmod_count", 2.0},
	{"childproc_count", 1.7},
	{"crossproc_count", 1.6},
	{"modload_count", 1.3},
}

var keywordRules = []rule{
	{"ransomware", 12},
	{"apt", 10}, {"c2", 10}, {"command and control", 10},
	{"trojan", 9}, {"backdoor", 9},
	{"malware", 8},
	{"exploit", 7},
	{"phishing", 6},
	{"unusual", 5},
	{"suspicious", 4},
}

var feedWeights = map[string]float64{
	"SANS": 10, "Abuse.ch": 10,
	"AlienVault": 9, "FireEye": 9,
	"MalwareDomainList": 8, "CrowdStrike": 8, "ThreatConnect": 8,
	"VirusTotal": 7,
}

// defaultFeedWeight applies to unknown or absent feed names; it is always
// added so every incident carries a baseline feed signal.
const defaultFeedWeight = 5

// ipColumnPriority lists IP-bearing columns in lookup order. Only the
// first column present on a row is consulted, even when several exist.
var ipColumnPriority = []string{"ioc_attr_remote_ip", "remote_ip", "src_ip", "dst_ip"}

var suspiciousPorts = map[int64]struct{}{
	22: {}, 23: {}, 135: {}, 139: {}, 445: {},
	1433: {}, 3389: {}, 5985: {}, 5986: {},
}

var portColumns = []string{"ioc_attr_local_port", "ioc_attr_remote_port", "ioc_attr_port"}

const (
	outboundBonus       = 4.0
	inboundBonus        = 2.0
	suspiciousPortBonus = 3.0
	windowsMultiplier   = 1.3
	nightMultiplier     = 1.2
)

// Engine computes per-row criticality sub-scores. A nil reputation lookup
// disables oracle enrichment; every other factor still applies.
type Engine struct {
	lookup *reputation.Lookup
	logger *log.Logger
}

// NewEngine creates a scoring engine.
func NewEngine(lookup *reputation.Lookup, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[scoring] ", log.LstdFlags)
	}
	return &Engine{lookup: lookup, logger: logger}
}

// Score computes sub-scores for every row. Rows must already be confirmed
// incidents; the engine never filters. Absent columns contribute nothing,
// and there is no early termination.
func (e *Engine) Score(ctx context.Context, rows []telemetry.Row) []ScoredIncident {
	rowIPs := make([]string, len(rows))
	for i, row := range rows {
		rowIPs[i] = reputationIP(row)
	}

	var scores map[string]float64
	if e.lookup != nil {
		scores = e.lookup.Resolve(ctx, rowIPs)
	}

	out := make([]ScoredIncident, 0, len(rows))
	for i, row := range rows {
		inc := ScoredIncident{Row: row}
		inc.TechnicalScore = iocSeverityScore(row) + activityVolumeScore(row)
		inc.ContextualScore = keywordScore(row) + feedScore(row)

		if ip := rowIPs[i]; ip != "" && scores != nil {
			inc.IPReputationScore = scores[ip]
			inc.ContextualScore += inc.IPReputationScore
		}

		inc.ContextualScore += directionBonus(row)
		inc.ContextualScore += portBonus(row)
		// Order matters: the OS multiplier applies before the night one.
		if targetsWindows(row) {
			inc.ContextualScore *= windowsMultiplier
		}
		if createdAtNight(row) {
			inc.ContextualScore *= nightMultiplier
		}

		out = append(out, inc)
	}
	metrics.IncidentsScored.Add(float64(len(out)))
	return out
}

func iocSeverityScore(row telemetry.Row) float64 {
	v, ok := row["ioc_type"]
	if !ok {
		return 0
	}
	// A present-but-empty cell is an unknown IOC type, not a missing column.
	if v.IsNull() {
		return unknownIOCWeight
	}
	iocType, _ := v.AsString()
	lower := strings.ToLower(iocType)
	score := 0.0
	matched := false
	for _, r := range iocSeverityRules {
		if strings.Contains(lower, r.pattern) {
			score += r.weight
			matched = true
		}
	}
	if !matched {
		score += unknownIOCWeight
	}
	return score
}

func activityVolumeScore(row telemetry.Row) float64 {
	score := 0.0
	for _, aw := range activityWeights {
		count, ok := row.GetFloat(aw.column)
		if !ok || count < 0 {
			continue
		}
		score += math.Log1p(count) * aw.weight
	}
	return score
}

func keywordScore(row telemetry.Row) float64 {
	desc, ok := row.GetString("description")
	if !ok {
		return 0
	}
	lower := strings.ToLower(desc)
	score := 0.0
	for _, r := range keywordRules {
		if strings.Contains(lower, r.pattern) {
			score += r.weight
		}
	}
	return score
}

func feedScore(row telemetry.Row) float64 {
	name, ok := row.GetString("feed_name")
	if !ok {
		return defaultFeedWeight
	}
	if w, known := feedWeights[name]; known {
		return w
	}
	return defaultFeedWeight
}

// reputationIP picks the row's lookup address: the first present column of
// the priority list, when its value is non-null.
func reputationIP(row telemetry.Row) string {
	for _, col := range ipColumnPriority {
		v, ok := row[col]
		if !ok {
			continue
		}
		if v.IsNull() {
			return ""
		}
		ip, _ := v.AsString()
		return ip
	}
	return ""
}

func directionBonus(row telemetry.Row) float64 {
	dir, ok := row.GetString("ioc_attr_direction")
	if !ok {
		return 0
	}
	lower := strings.ToLower(dir)
	bonus := 0.0
	if strings.Contains(lower, "out") {
		bonus += outboundBonus
	}
	if strings.Contains(lower, "in") {
		bonus += inboundBonus
	}
	return bonus
}

func portBonus(row telemetry.Row) float64 {
	bonus := 0.0
	for _, col := range portColumns {
		port, ok := row.GetInt(col)
		if !ok {
			continue
		}
		if _, suspicious := suspiciousPorts[port]; suspicious {
			bonus += suspiciousPortBonus
		}
	}
	return bonus
}

func targetsWindows(row telemetry.Row) bool {
	osType, ok := row.GetString("os_type")
	return ok && strings.Contains(strings.ToLower(osType), "windows")
}

// createdAtNight reports whether the creation timestamp falls in the
// 22:00-06:00 window (inclusive on both ends, matching the scoring model).
func createdAtNight(row telemetry.Row) bool {
	t, ok := createdTime(row)
	if !ok {
		return false
	}
	hour := t.Hour()
	return hour >= 22 || hour <= 6
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func createdTime(row telemetry.Row) (time.Time, bool) {
	v, ok := row["created_time"]
	if !ok || v.IsNull() {
		return time.Time{}, false
	}
	if v.Kind() == telemetry.KindNumber {
		n, _ := v.AsInt()
		if n > 1e12 { // epoch milliseconds
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	}
	s, _ := v.AsString()
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
