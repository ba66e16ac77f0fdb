package exporter

import (
	"net/http"

	"github.com/hackstats/hackboard/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotReader reads the latest snapshot per event.
type SnapshotReader interface {
	Snapshots() []snapshot.Snapshot
}

// NewOpenMetricsHandler returns a handler that renders event snapshots
// through the Prometheus OpenMetrics encoder.
func NewOpenMetricsHandler(reader SnapshotReader, registry *prometheus.Registry) http.Handler {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	registry.MustRegister(&snapshotCollector{reader: reader})

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

var (
	eventPRsDesc          = prometheus.NewDesc("hackboard_event_pull_requests_total", "Pull requests counted for an event.", []string{"event"}, nil)
	eventMergedDesc       = prometheus.NewDesc("hackboard_event_merged_pull_requests_total", "Merged pull requests counted for an event.", []string{"event"}, nil)
	eventIssuesDesc       = prometheus.NewDesc("hackboard_event_issues_total", "Issues counted for an event.", []string{"event"}, nil)
	eventClosedIssuesDesc = prometheus.NewDesc("hackboard_event_closed_issues_total", "Closed issues counted for an event.", []string{"event"}, nil)
	eventParticipantsDesc = prometheus.NewDesc("hackboard_event_participants", "Non-automation contributors counted for an event.", []string{"event"}, nil)
	eventUpdatedDesc      = prometheus.NewDesc("hackboard_event_last_updated_timestamp_seconds", "Unix time of the event's last aggregation run.", []string{"event"}, nil)
	repoPRsDesc           = prometheus.NewDesc("hackboard_repo_pull_requests_total", "Pull requests counted per repository.", []string{"event", "repo"}, nil)
	repoMergedDesc        = prometheus.NewDesc("hackboard_repo_merged_pull_requests_total", "Merged pull requests counted per repository.", []string{"event", "repo"}, nil)
)

type snapshotCollector struct {
	reader SnapshotReader
}

func (c *snapshotCollector) Describe(_ chan<- *prometheus.Desc) {}

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.reader == nil {
		return
	}

	for _, snap := range c.reader.Snapshots() {
		if snap.Event == "" {
			continue
		}

		ch <- prometheus.MustNewConstMetric(eventPRsDesc, prometheus.GaugeValue, float64(snap.Stats.TotalPRs), snap.Event)
		ch <- prometheus.MustNewConstMetric(eventMergedDesc, prometheus.GaugeValue, float64(snap.Stats.MergedPRs), snap.Event)
		ch <- prometheus.MustNewConstMetric(eventIssuesDesc, prometheus.GaugeValue, float64(snap.Stats.TotalIssues), snap.Event)
		ch <- prometheus.MustNewConstMetric(eventClosedIssuesDesc, prometheus.GaugeValue, float64(snap.Stats.ClosedIssues), snap.Event)
		ch <- prometheus.MustNewConstMetric(eventParticipantsDesc, prometheus.GaugeValue, float64(snap.Stats.ParticipantCount), snap.Event)
		if !snap.LastUpdated.IsZero() {
			ch <- prometheus.MustNewConstMetric(eventUpdatedDesc, prometheus.GaugeValue, float64(snap.LastUpdated.Unix()), snap.Event)
		}

		for repoID, counts := range snap.Stats.RepoStats {
			ch <- prometheus.MustNewConstMetric(repoPRsDesc, prometheus.GaugeValue, float64(counts.TotalPRs), snap.Event, repoID)
			ch <- prometheus.MustNewConstMetric(repoMergedDesc, prometheus.GaugeValue, float64(counts.MergedPRs), snap.Event, repoID)
		}
	}
}
