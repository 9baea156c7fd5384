package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Ashfaaq98/incident-triage/internal/scoring"
	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

const (
	defaultUnknown     = "Unknown"
	defaultDescription = "No description"
	topN               = 5
)

// now is swapped by tests for deterministic timestamps.
var now = time.Now

// Build assembles the report from scored, already-ranked incidents. The
// input is not mutated. An empty input yields a structurally complete
// report with zero counts and empty collections.
func Build(scored []scoring.ScoredIncident, apiUsed bool) *Report {
	ts := now().UTC().Format(time.RFC3339)
	rep := &Report{
		Status:    "success",
		Timestamp: ts,
		Incidents: make([]Incident, 0, len(scored)),
		Analytics: Analytics{
			TopIOCTypes:             map[string]int{},
			TopHosts:                map[string]int{},
			TopFeeds:                map[string]int{},
			CriticalityDistribution: map[string]int{},
		},
		Metadata: Metadata{TotalProcessed: len(scored), APIUsed: apiUsed},
	}
	if len(scored) == 0 {
		return rep
	}

	iocTypes := newFrequency()
	hosts := newFrequency()
	feeds := newFrequency()

	rep.Summary.TotalIncidents = len(scored)
	for i, inc := range scored {
		switch inc.Level {
		case scoring.LevelCritical:
			rep.Summary.CriticalCount++
		case scoring.LevelHigh:
			rep.Summary.HighCount++
		case scoring.LevelMedium:
			rep.Summary.MediumCount++
		default:
			// LOW and INFO share the low bucket.
			rep.Summary.LowCount++
		}

		iocType := displayString(inc.Row, "ioc_type", defaultUnknown)
		hostname := displayString(inc.Row, "hostname", defaultUnknown)
		feedName := displayString(inc.Row, "feed_name", defaultUnknown)
		iocTypes.add(iocType)
		hosts.add(hostname)
		feeds.add(feedName)
		rep.Analytics.CriticalityDistribution[inc.Level.String()]++

		entry := Incident{
			ID:               fmt.Sprintf("INC_%06d", i+1),
			CriticalityLevel: inc.Level.String(),
			CompositeScore:   round(inc.CompositeScore, 3),
			Timestamp:        ts,
			Details: Details{
				CreatedTime: displayString(inc.Row, "created_time", defaultUnknown),
				Hostname:    hostname,
				InternalIP:  displayString(inc.Row, "interface_ip", defaultUnknown),
				IOCType:     iocType,
				IOCValue:    displayString(inc.Row, "ioc_value", defaultUnknown),
				Description: displayString(inc.Row, "description", defaultDescription),
				FeedName:    feedName,
				OSType:      displayString(inc.Row, "os_type", defaultUnknown),
				Network:     networkDetails(inc.Row),
			},
			Scores: Scores{
				CriticalityScore:  round(inc.FinalScore, 2),
				ContextualScore:   round(inc.ContextualScore, 2),
				IPReputationScore: round(inc.IPReputationScore, 2),
			},
		}
		rep.Incidents = append(rep.Incidents, entry)
	}

	rep.Analytics.TopIOCTypes = iocTypes.top(topN)
	rep.Analytics.TopHosts = hosts.top(topN)
	rep.Analytics.TopFeeds = feeds.top(topN)
	return rep
}

// networkDetails returns the network sub-object when the row carries at
// least one of the directional trio, nil otherwise.
func networkDetails(row telemetry.Row) *Network {
	var n Network
	found := false
	if v, ok := row.GetString("ioc_attr_remote_ip"); ok {
		n.RemoteIP = v
		found = true
	}
	if v, ok := row.GetString("ioc_attr_direction"); ok {
		n.Direction = v
		found = true
	}
	if v, ok := row.GetString("ioc_attr_remote_port"); ok {
		n.RemotePort = v
		found = true
	}
	if !found {
		return nil
	}
	return &n
}

func displayString(row telemetry.Row, col, fallback string) string {
	if v, ok := row.GetString(col); ok && v != "" {
		return v
	}
	return fallback
}

func round(v float64, digits int) float64 {
	scale := math.Pow10(digits)
	return math.Round(v*scale) / scale
}

// frequency counts string values while remembering first-appearance order,
// which breaks ties in the top-N selection deterministically.
type frequency struct {
	counts map[string]int
	order  []string
}

func newFrequency() *frequency {
	return &frequency{counts: map[string]int{}}
}

func (f *frequency) add(key string) {
	if _, seen := f.counts[key]; !seen {
		f.order = append(f.order, key)
	}
	f.counts[key]++
}

func (f *frequency) top(n int) map[string]int {
	keys := append([]string(nil), f.order...)
	firstSeen := make(map[string]int, len(keys))
	for i, k := range f.order {
		firstSeen[k] = i
	}
	sort.SliceStable(keys, func(a, b int) bool {
		if f.counts[keys[a]] != f.counts[keys[b]] {
			return f.counts[keys[a]] > f.counts[keys[b]]
		}
		return firstSeen[keys[a]] < firstSeen[keys[b]]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = f.counts[k]
	}
	return out
}
