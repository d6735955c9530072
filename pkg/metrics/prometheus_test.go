package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.RecordAnalysis("index", "BULLISH")
	r.RecordAnalysis("index", "BULLISH")
	r.RecordRegime("BULL_TOP")
	r.RecordInsufficient("history")
	r.RecordCache("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.analyses.WithLabelValues("index", "BULLISH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.regimes.WithLabelValues("BULL_TOP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.insufficient.WithLabelValues("history")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("hit")))
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	// 같은 이름의 메트릭을 가진 Recorder를 여러 개 만들어도 패닉 없음
	a := New()
	b := New()
	a.RecordError("validation")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.analysisErrors.WithLabelValues("validation")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.analysisErrors.WithLabelValues("validation")))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordAnalysis("index", "NEUTRAL")
		r.RecordStage("find", 0.1)
		r.RecordHTTP("/health", "GET", "200", 0.01)
	})
	assert.Nil(t, r.Registry())
}

func TestHandler(t *testing.T) {
	r := New()
	r.RecordHTTP("/api/analyze", "POST", "200", 0.02)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "histpos_http_requests_total"))
}
