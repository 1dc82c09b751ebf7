package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentHandlerRecordsMetrics(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/inventory/equip/abc123", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, counterAtLeast(t, "economy_http_requests_total", map[string]string{
		"method": "GET", "path": "/inventory/equip/:id", "status": "202",
	}, 1))
}

func TestRecordPlayRobGambling(t *testing.T) {
	RecordPlay("bust")
	assert.True(t, counterAtLeast(t, "economy_play_total", map[string]string{"outcome": "bust"}, 1))

	RecordRob("success")
	assert.True(t, counterAtLeast(t, "economy_rob_total", map[string]string{"outcome": "success"}, 1))

	RecordGamblingRound("slots", 100, 250)
	assert.True(t, counterAtLeast(t, "economy_gambling_wager_total", map[string]string{"game": "slots"}, 100))
	assert.True(t, counterAtLeast(t, "economy_gambling_payout_total", map[string]string{"game": "slots"}, 250))

	RecordMissionClaim("")
	assert.True(t, counterAtLeast(t, "economy_missions_claims_total", map[string]string{"period": "unknown"}, 1))

	RecordSchedulerTick("buff_sweep", nil)
	assert.True(t, counterAtLeast(t, "economy_scheduler_ticks_total", map[string]string{"job": "buff_sweep", "outcome": "ok"}, 1))
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                         "/",
		"/":                        "/",
		"/play":                    "/play",
		"/inventory/equip/123":     "/inventory/equip/:id",
		"/missions/claim/daily":    "/missions/claim/daily",
		"/shop/purchase/item-7":    "/shop/purchase/:id",
		"/consumables/use/item-99": "/consumables/use/:id",
	}
	for in, want := range cases {
		assert.Equal(t, want, canonicalPath(in), in)
	}
}

func counterAtLeast(t *testing.T, name string, labels map[string]string, min float64) bool {
	t.Helper()
	families, err := Registry.Gather()
	assert.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) && m.GetCounter() != nil {
				return m.GetCounter().GetValue() >= min
			}
		}
	}
	return false
}

func labelsMatch(metric *io_prometheus_client.Metric, labels map[string]string) bool {
	matched := 0
	for _, lbl := range metric.GetLabel() {
		if val, ok := labels[lbl.GetName()]; ok && val == lbl.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}
