package metrics

import "github.com/prometheus/client_golang/prometheus"

type exampleMetrics struct {
	Telemetry struct {
		UsageCounts   []StoreMetrics           `group:"usage" description:""`    // ignored
		FailureCounts []*prometheus.CounterVec `group:"failures" description:""` // ignored
		TestCount     *prometheus.CounterVec   `metric:"tests_total" description:"number of tests" labels:"kind"`
	} `group:"telemetry" description:""`
	Store  StoreMetrics
	Export struct {
		Archives ExportMetrics `group:"archives"`
	} `group:"export"`
}

func (e *exampleMetrics) IncTest() {
	Inc(e.Telemetry.TestCount, "test")
}
