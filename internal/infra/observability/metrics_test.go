package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
)

func TestMetrics_RecurringSnapshot(t *testing.T) {
	m := observability.NewMetrics()
	m.IncrRecurring(observability.RecurringFired)
	m.IncrRecurring(observability.RecurringFired)
	m.IncrRecurring(observability.RecurringFailed)
	if snap := m.RecurringSnapshot(); snap.LastRunAt != nil {
		t.Errorf("expected no last run before the first batch, got %v", snap.LastRunAt)
	}
	at := time.Date(2024, 6, 15, 0, 0, 5, 0, time.UTC)
	m.RecordRecurringRun(at, 40*time.Millisecond)

	snap := m.RecurringSnapshot()
	if snap.Fired != 2 || snap.Failed != 1 || snap.Skipped != 0 || snap.Runs != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.LastRunAt == nil || !snap.LastRunAt.Equal(at) {
		t.Errorf("expected last run %v, got %v", at, snap.LastRunAt)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()
	a.IncrLedgerMutation("create")

	if got := b.LedgerMutations("create"); got != 0 {
		t.Errorf("expected isolated registries, got %v", got)
	}
	if got := a.LedgerMutations("create"); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
}

func TestRequestLogger_RecordsRoutePattern(t *testing.T) {
	m := observability.NewMetrics()
	r := chi.NewRouter()
	r.Use(observability.RequestLogger(zap.NewNop(), m))
	r.Get("/api/transaction/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transaction/abc", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() != "tracker_request_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetValue() == "GET /api/transaction/{id}" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected histogram sample labelled with the route pattern")
	}
}
