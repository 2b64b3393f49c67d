package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	testMetrics := &exampleMetrics{}

	// lazy registration
	x := EnsureMetrics("registerExample", testMetrics)
	require.NotNil(t, testMetrics.Telemetry.TestCount)

	// retry registration
	y := EnsureMetrics("registerExample", testMetrics)
	require.Equal(t, x, y)

	require.Panics(t, func() {
		_ = EnsureMetrics("registerExample", &StoreMetrics{})
	})
}

func TestModules(t *testing.T) {
	s := newSettings(
		WithBasePath("root"),
		WithRegistry(prometheus.NewRegistry()),
	)
	testMetrics := &exampleMetrics{}
	_ = s.EnsureMetrics("moduleTesting", testMetrics)
	require.Len(t, s.modules, 1)

	testMetrics.IncTest()
	testMetrics.IncTest()
	assert.Equal(t, float64(2), testutil.ToFloat64(testMetrics.Telemetry.TestCount.WithLabelValues("test")))

	testMetrics.Store.Commit(time.Now(), nil)
	testMetrics.Store.Commit(time.Now(), errors.New("conflict"))
	testMetrics.Store.Commit(time.Now(), nil)
	assert.Equal(t, float64(2), testutil.ToFloat64(testMetrics.Store.Commits.WithLabelValues(ResultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(testMetrics.Store.Commits.WithLabelValues(ResultFailure)))

	archives := &testMetrics.Export.Archives
	archives.Section(time.Now(), nil)
	archives.Package(nil)
	archives.Package(errors.New("no version"))
	archives.Archive(3*KB, "zst")
	archives.Pass(nil, 3)
	assert.Equal(t, float64(1), testutil.ToFloat64(archives.Packages.WithLabelValues(ResultFailure)))
	assert.Equal(t, float64(3), testutil.ToFloat64(archives.Dirty.WithLabelValues()))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `pacbox_root_moduleTesting_commits_total{result="success"} 2`), body)
	assert.True(t, strings.Contains(body, "pacbox_root_moduleTesting_export_archives_sections_total"), body)
}

func TestNilCollectors(t *testing.T) {
	var m StoreMetrics
	assert.NotPanics(t, func() {
		m.Commit(time.Now(), nil)
	})
}
