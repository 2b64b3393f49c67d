package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics reports about store commits
type StoreMetrics struct {
	Commits        *prometheus.CounterVec   `metric:"commits_total" description:"number of store commits" labels:"result"`
	CommitDuration *prometheus.HistogramVec `metric:"commit_duration_seconds" unit:"seconds" description:"time spent committing units of work" labels:"result"`
}

// Commit records the outcome of a commit
func (m *StoreMetrics) Commit(start time.Time, err error) {
	result := Result(err)
	Inc(m.Commits, result)
	Since(start, m.CommitDuration, result)
}

// ExportMetrics reports about repository database exports
type ExportMetrics struct {
	Passes      *prometheus.CounterVec   `metric:"passes_total" description:"number of export passes" labels:"result"`
	Sections    *prometheus.CounterVec   `metric:"sections_total" description:"number of exported sections" labels:"result"`
	Packages    *prometheus.CounterVec   `metric:"packages_total" description:"number of exported packages" labels:"result"`
	Duration    *prometheus.HistogramVec `metric:"section_duration_seconds" unit:"seconds" description:"time spent exporting a section" labels:"result"`
	ArchiveSize *prometheus.HistogramVec `metric:"archive_size_bytes" unit:"bytes" description:"size of the exported database archives" labels:"compression"`
	Dirty       *prometheus.GaugeVec     `metric:"dirty_sections" description:"number of sections waiting for an export"`
}

// Section records the outcome of a section export
func (m *ExportMetrics) Section(start time.Time, err error) {
	result := Result(err)
	Inc(m.Sections, result)
	Since(start, m.Duration, result)
}

// Package records the outcome of a package export
func (m *ExportMetrics) Package(err error) {
	Inc(m.Packages, Result(err))
}

// Pass records the outcome of an export pass
func (m *ExportMetrics) Pass(err error, dirty int) {
	Inc(m.Passes, Result(err))
	Set(m.Dirty, float64(dirty))
}

// Archive records the size of an archive
func (m *ExportMetrics) Archive(size int64, compression string) {
	Observe(m.ArchiveSize, float64(size), compression)
}

// EventMetrics reports about the event bus
type EventMetrics struct {
	Published  *prometheus.CounterVec `metric:"published_total" description:"number of published events" labels:"event"`
	Dispatched *prometheus.CounterVec `metric:"dispatched_total" description:"number of events delivered to handlers" labels:"event,result"`
}

// Publish records a published event
func (m *EventMetrics) Publish(event string) {
	Inc(m.Published, event)
}

// Dispatch records the outcome of an event delivery
func (m *EventMetrics) Dispatch(event string, err error) {
	Inc(m.Dispatched, event, Result(err))
}
