package engine_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"siteline/internal/repo"
)

func repoFilter(taskID string) repo.EventFilters {
	return repo.EventFilters{EntityKind: "task", EntityID: taskID}
}

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	return testutil.ToFloat64(c)
}
