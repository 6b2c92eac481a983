package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Renders.WithLabelValues("ok"))
	Renders.WithLabelValues("ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Renders.WithLabelValues("ok")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	MockupsCreated.WithLabelValues("generate").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pmgenie_mockups_created_total{origin="generate"}`)
}
