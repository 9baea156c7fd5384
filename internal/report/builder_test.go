package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/incident-triage/internal/scoring"
	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

func fixedClock(t *testing.T) {
	t.Helper()
	orig := now
	now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = orig })
}

func TestBuildEmptyBatch(t *testing.T) {
	fixedClock(t)
	rep := Build(nil, false)

	assert.Equal(t, "success", rep.Status)
	assert.Equal(t, "2024-03-15T12:00:00Z", rep.Timestamp)
	assert.Zero(t, rep.Summary.TotalIncidents)
	assert.NotNil(t, rep.Incidents)
	assert.Empty(t, rep.Incidents)
	assert.NotNil(t, rep.Analytics.TopIOCTypes)
	assert.NotNil(t, rep.Analytics.CriticalityDistribution)
	assert.Zero(t, rep.Metadata.TotalProcessed)
	assert.False(t, rep.Metadata.APIUsed)
}

func TestBuildSummaryAndIDs(t *testing.T) {
	fixedClock(t)
	scored := []scoring.ScoredIncident{
		{Row: telemetry.Row{}, Level: scoring.LevelCritical},
		{Row: telemetry.Row{}, Level: scoring.LevelHigh},
		{Row: telemetry.Row{}, Level: scoring.LevelMedium},
		{Row: telemetry.Row{}, Level: scoring.LevelLow},
		{Row: telemetry.Row{}, Level: scoring.LevelInfo},
	}

	rep := Build(scored, true)
	assert.Equal(t, 5, rep.Summary.TotalIncidents)
	assert.Equal(t, 1, rep.Summary.CriticalCount)
	assert.Equal(t, 1, rep.Summary.HighCount)
	assert.Equal(t, 1, rep.Summary.MediumCount)
	// LOW and INFO merge into the low bucket.
	assert.Equal(t, 2, rep.Summary.LowCount)

	require.Len(t, rep.Incidents, 5)
	assert.Equal(t, "INC_000001", rep.Incidents[0].ID)
	assert.Equal(t, "INC_000005", rep.Incidents[4].ID)
	assert.True(t, rep.Metadata.APIUsed)
	assert.Equal(t, 5, rep.Metadata.TotalProcessed)
}

func TestBuildDetailsAndDefaults(t *testing.T) {
	fixedClock(t)
	scored := []scoring.ScoredIncident{{
		Row: telemetry.Row{
			"hostname":     telemetry.String("ws-042"),
			"ioc_type":     telemetry.String("md5"),
			"ioc_value":    telemetry.String("d41d8cd98f00b204e9800998ecf8427e"),
			"feed_name":    telemetry.String("SANS"),
			"interface_ip": telemetry.String("10.0.0.5"),
		},
		Level:             scoring.LevelHigh,
		CompositeScore:    0.66666,
		FinalScore:        37.008,
		ContextualScore:   22.004,
		IPReputationScore: 7.5,
	}}

	rep := Build(scored, false)
	require.Len(t, rep.Incidents, 1)
	inc := rep.Incidents[0]

	assert.Equal(t, "HIGH", inc.CriticalityLevel)
	assert.Equal(t, 0.667, inc.CompositeScore)
	assert.Equal(t, "ws-042", inc.Details.Hostname)
	assert.Equal(t, "10.0.0.5", inc.Details.InternalIP)
	assert.Equal(t, "Unknown", inc.Details.CreatedTime)
	assert.Equal(t, "Unknown", inc.Details.OSType)
	assert.Equal(t, "No description", inc.Details.Description)
	assert.Nil(t, inc.Details.Network)

	assert.Equal(t, 37.01, inc.Scores.CriticalityScore)
	assert.Equal(t, 22.0, inc.Scores.ContextualScore)
	assert.Equal(t, 7.5, inc.Scores.IPReputationScore)
}

func TestBuildNetworkSubObject(t *testing.T) {
	fixedClock(t)
	scored := []scoring.ScoredIncident{
		{Row: telemetry.Row{
			"ioc_attr_remote_ip":   telemetry.String("203.0.113.7"),
			"ioc_attr_direction":   telemetry.String("outbound"),
			"ioc_attr_remote_port": telemetry.Number(445),
		}},
		{Row: telemetry.Row{
			"ioc_attr_direction": telemetry.String("inbound"),
		}},
		{Row: telemetry.Row{"hostname": telemetry.String("ws-1")}},
	}

	rep := Build(scored, false)
	require.Len(t, rep.Incidents, 3)

	full := rep.Incidents[0].Details.Network
	require.NotNil(t, full)
	assert.Equal(t, "203.0.113.7", full.RemoteIP)
	assert.Equal(t, "outbound", full.Direction)
	assert.Equal(t, "445", full.RemotePort)

	partial := rep.Incidents[1].Details.Network
	require.NotNil(t, partial)
	assert.Equal(t, "inbound", partial.Direction)
	assert.Empty(t, partial.RemoteIP)

	assert.Nil(t, rep.Incidents[2].Details.Network)
}

func TestBuildAnalyticsCounts(t *testing.T) {
	fixedClock(t)
	row := func(iocType, host, feed string) scoring.ScoredIncident {
		return scoring.ScoredIncident{Row: telemetry.Row{
			"ioc_type":  telemetry.String(iocType),
			"hostname":  telemetry.String(host),
			"feed_name": telemetry.String(feed),
		}, Level: scoring.LevelLow}
	}

	rep := Build([]scoring.ScoredIncident{
		row("md5", "ws-1", "SANS"),
		row("md5", "ws-1", "SANS"),
		row("domain", "ws-2", "VirusTotal"),
	}, false)

	assert.Equal(t, map[string]int{"md5": 2, "domain": 1}, rep.Analytics.TopIOCTypes)
	assert.Equal(t, map[string]int{"ws-1": 2, "ws-2": 1}, rep.Analytics.TopHosts)
	assert.Equal(t, map[string]int{"SANS": 2, "VirusTotal": 1}, rep.Analytics.TopFeeds)
	assert.Equal(t, map[string]int{"LOW": 3}, rep.Analytics.CriticalityDistribution)
}

func TestBuildAnalyticsTopFive(t *testing.T) {
	fixedClock(t)
	var scored []scoring.ScoredIncident
	// Seven IOC types: "t0" appears 3 times, "t1" twice, the rest once.
	for i := 0; i < 7; i++ {
		scored = append(scored, scoring.ScoredIncident{Row: telemetry.Row{
			"ioc_type": telemetry.String(fmt.Sprintf("t%d", i)),
		}})
	}
	for i := 0; i < 2; i++ {
		scored = append(scored, scoring.ScoredIncident{Row: telemetry.Row{
			"ioc_type": telemetry.String("t0"),
		}})
	}
	scored = append(scored, scoring.ScoredIncident{Row: telemetry.Row{
		"ioc_type": telemetry.String("t1"),
	}})

	rep := Build(scored, false)
	top := rep.Analytics.TopIOCTypes
	require.Len(t, top, 5)
	assert.Equal(t, 3, top["t0"])
	assert.Equal(t, 2, top["t1"])
	// Singles tie; first-appearance order keeps t2 and t3.
	assert.Contains(t, top, "t2")
	assert.Contains(t, top, "t3")
	assert.NotContains(t, top, "t5")
	assert.NotContains(t, top, "t6")
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	fixedClock(t)
	scored := []scoring.ScoredIncident{{
		Row:            telemetry.Row{"ioc_type": telemetry.String("md5")},
		Level:          scoring.LevelHigh,
		CompositeScore: 0.7,
	}}

	Build(scored, false)
	assert.Equal(t, 0.7, scored[0].CompositeScore)
	v, _ := scored[0].Row.GetString("ioc_type")
	assert.Equal(t, "md5", v)
}
