package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_CountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/metered", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	before := counterValue(t, "GET", "/metered", "200")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metered", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	after := counterValue(t, "GET", "/metered", "200")
	if after != before+1 {
		t.Fatalf("http_requests_total went %v -> %v, want +1", before, after)
	}
}

func counterValue(t *testing.T, method, path, status string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "method":
					if lp.GetValue() == method {
						matched++
					}
				case "path":
					if lp.GetValue() == path {
						matched++
					}
				case "status":
					if lp.GetValue() == status {
						matched++
					}
				}
			}
			if matched == 3 {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
