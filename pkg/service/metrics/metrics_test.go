package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/service/metrics"
)

func TestRecordTick(t *testing.T) {
	m := metrics.New()
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	m.RecordTick(&model.TickReport{
		StartedAt:     started,
		FinishedAt:    started.Add(3 * time.Second),
		Candidates:    10,
		Eligible:      4,
		Succeeded:     3,
		Failed:        1,
		PersistFailed: 1,
	})

	gt.Value(t, testutil.ToFloat64(m.TickUsersTotal.WithLabelValues(metrics.ResultSkipped))).Equal(6.0)
	gt.Value(t, testutil.ToFloat64(m.TickUsersTotal.WithLabelValues(metrics.ResultSucceeded))).Equal(3.0)
	gt.Value(t, testutil.ToFloat64(m.TickUsersTotal.WithLabelValues(metrics.ResultFailed))).Equal(1.0)
	gt.Value(t, testutil.ToFloat64(m.TickUsersTotal.WithLabelValues(metrics.ResultPersistFailed))).Equal(1.0)
	gt.Value(t, testutil.ToFloat64(m.TickLastSuccess)).Equal(float64(started.Add(3 * time.Second).Unix()))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.RecordTick(&model.TickReport{})
	m.IncInteraction("updated")
	m.ObserveHTTP("GET", "/healthz", 200, time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := metrics.New()
	m.IncInteraction("updated")
	m.RegisterDBPoolCollector(func() (int32, int32, int32) { return 4, 3, 1 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	body, err := io.ReadAll(rec.Body)
	gt.NoError(t, err).Required()
	gt.String(t, string(body)).Contains(`proteus_interactions_total{outcome="updated"} 1`)
	gt.String(t, string(body)).Contains(`proteus_db_pool_total_conns 4`)
}
