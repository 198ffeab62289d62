package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusController(t *testing.T) {
	reg := prometheus.NewRegistry()
	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_saves_total",
		Help: "test",
	}, []string{"flow", "result"})
	reg.MustRegister(saves)
	saves.WithLabelValues("assign_resources", "success").Inc()

	c := newPrometheusController("", reg)
	require.Equal(t, DefaultPath, c.Key())

	r := mux.NewRouter()
	c.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `scheduling_saves_total{flow="assign_resources",result="success"} 1`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, DefaultPath, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
