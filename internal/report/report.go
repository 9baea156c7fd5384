// Package report assembles the analyst-facing incident report from scored,
// ranked incidents: summary counts, per-incident detail records, top-N
// analytics and batch metadata.
package report

// Report is the final JSON document returned to the caller and persisted
// at the API boundary.
type Report struct {
	Status    string     `json:"status"`
	Timestamp string     `json:"timestamp"`
	Summary   Summary    `json:"summary"`
	Incidents []Incident `json:"incidents"`
	Analytics Analytics  `json:"analytics"`
	Metadata  Metadata   `json:"metadata"`
}

// Summary holds per-level counts. The low bucket merges the former LOW and
// INFO levels; analysts treat both as backlog.
type Summary struct {
	TotalIncidents int `json:"total_incidents"`
	CriticalCount  int `json:"critical_count"`
	HighCount      int `json:"high_count"`
	MediumCount    int `json:"medium_count"`
	LowCount       int `json:"low_count"`
}

// Incident is one report entry. IDs are sequential per report and restart
// at 1; global uniqueness belongs to the persistence boundary.
type Incident struct {
	ID               string  `json:"id"`
	CriticalityLevel string  `json:"criticality_level"`
	CompositeScore   float64 `json:"composite_score"`
	Timestamp        string  `json:"timestamp"`
	Details          Details `json:"details"`
	Scores           Scores  `json:"scores"`
}

// Details carries the display fields of an incident. Missing values are
// filled with defaults for display only; scores are never recomputed from
// these.
type Details struct {
	CreatedTime string   `json:"created_time"`
	Hostname    string   `json:"hostname"`
	InternalIP  string   `json:"internal_ip"`
	IOCType     string   `json:"ioc_type"`
	IOCValue    string   `json:"ioc_value"`
	Description string   `json:"description"`
	FeedName    string   `json:"feed_name"`
	OSType      string   `json:"os_type"`
	Network     *Network `json:"network,omitempty"`
}

// Network is attached only when the row carries at least one directional,
// port or remote-address attribute.
type Network struct {
	RemoteIP   string `json:"remote_ip,omitempty"`
	Direction  string `json:"direction,omitempty"`
	RemotePort string `json:"remote_port,omitempty"`
}

// Scores exposes the sub-scores behind the ranking.
type Scores struct {
	CriticalityScore  float64 `json:"criticality_score"`
	ContextualScore   float64 `json:"contextual_score"`
	IPReputationScore float64 `json:"ip_reputation_score"`
}

// Analytics summarizes the batch: top-5 frequency maps and the full
// criticality distribution.
type Analytics struct {
	TopIOCTypes             map[string]int `json:"top_ioc_types"`
	TopHosts                map[string]int `json:"top_hosts"`
	TopFeeds                map[string]int `json:"top_feeds"`
	CriticalityDistribution map[string]int `json:"criticality_distribution"`
}

// Metadata records how the batch was processed.
type Metadata struct {
	TotalProcessed int  `json:"total_processed"`
	APIUsed        bool `json:"api_used"`
}
