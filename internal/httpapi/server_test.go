package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/bob-variates/internal/config"
	"github.com/xtding233/bob-variates/internal/ensemble"
	"github.com/xtding233/bob-variates/internal/metrics"
	"github.com/xtding233/bob-variates/internal/stream"
	"github.com/xtding233/bob-variates/internal/variate"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	s := New(Options{
		Streams: stream.NewRegistry(stream.Config{Source: variate.SourceLaggedFibonacci, Seed: 7}, nil, m),
		Presets: map[string]config.Preset{
			"star": {Kind: variate.KindLognormal, Arm: variate.ArmParams{Mean: 100, PDI: 1.5}},
		},
		Metrics:  m,
		Gatherer: reg,
	})
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeValues(t *testing.T, rec *httptest.ResponseRecorder) valuesResp {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out valuesResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUniformMatchesSeededSampler(t *testing.T) {
	_, h := newTestServer(t)
	out := decodeValues(t, do(t, h, http.MethodGet, "/v1/uniform?n=5", ""))
	assert.Equal(t, stream.Default, out.Stream)
	require.Len(t, out.Values, 5)

	ref, err := variate.NewSeeded(variate.SourceLaggedFibonacci, 7)
	require.NoError(t, err)
	for i, v := range out.Values {
		assert.Equal(t, ref.Uniform(), v, "value %d", i)
	}

	// The stream continues rather than restarting.
	next := decodeValues(t, do(t, h, http.MethodGet, "/v1/uniform", ""))
	require.Len(t, next.Values, 1)
	assert.Equal(t, ref.Uniform(), next.Values[0])
}

func TestNamedStreamsAreIndependent(t *testing.T) {
	_, h := newTestServer(t)
	a := decodeValues(t, do(t, h, http.MethodGet, "/v1/uniform?n=3&stream=a", ""))
	b := decodeValues(t, do(t, h, http.MethodGet, "/v1/uniform?n=3&stream=b", ""))
	assert.Equal(t, "a", a.Stream)
	assert.NotEqual(t, a.Values, b.Values)

	// A second server derives the same named stream.
	_, h2 := newTestServer(t)
	a2 := decodeValues(t, do(t, h2, http.MethodGet, "/v1/uniform?n=3&stream=a", ""))
	assert.Equal(t, a.Values, a2.Values)
}

func TestReseedRestartsStream(t *testing.T) {
	_, h := newTestServer(t)
	first := decodeValues(t, do(t, h, http.MethodGet, "/v1/gaussian?n=3&stream=x", ""))

	rec := do(t, h, http.MethodPost, "/v1/streams/x/reseed", `{"seed": 99}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	afterA := decodeValues(t, do(t, h, http.MethodGet, "/v1/gaussian?n=3&stream=x", ""))

	rec = do(t, h, http.MethodPost, "/v1/streams/x/reseed", `{"seed": 99}`)
	require.Equal(t, http.StatusOK, rec.Code)
	afterB := decodeValues(t, do(t, h, http.MethodGet, "/v1/gaussian?n=3&stream=x", ""))

	assert.Equal(t, afterA.Values, afterB.Values)
	assert.NotEqual(t, first.Values, afterA.Values)

	rec = do(t, h, http.MethodPost, "/v1/streams/x/reseed", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArmFromPresetAndOverride(t *testing.T) {
	_, h := newTestServer(t)
	out := decodeValues(t, do(t, h, http.MethodGet, "/v1/arm?preset=star&n=200", ""))
	require.Len(t, out.Values, 200)
	for _, v := range out.Values {
		assert.Greater(t, v, 0.0)
	}

	mono := decodeValues(t, do(t, h, http.MethodGet, "/v1/arm?preset=star&kind=monodisperse&n=3", ""))
	assert.Equal(t, []float64{100, 100, 100}, mono.Values)

	direct := decodeValues(t, do(t, h, http.MethodGet, "/v1/arm?kind=0&mean=12", ""))
	assert.Equal(t, []float64{12}, direct.Values)
}

func TestPoissonAndFlory(t *testing.T) {
	_, h := newTestServer(t)
	p := decodeValues(t, do(t, h, http.MethodGet, "/v1/poisson?mean=4&n=50", ""))
	for _, v := range p.Values {
		assert.Equal(t, v, float64(int(v)), "poisson deviates are integral")
		assert.GreaterOrEqual(t, v, 0.0)
	}

	f := decodeValues(t, do(t, h, http.MethodGet, "/v1/flory?log_prob=-0.5&n=50", ""))
	for _, v := range f.Values {
		assert.GreaterOrEqual(t, v, 1.0)
	}
}

func TestPointsSorted(t *testing.T) {
	_, h := newTestServer(t)
	out := decodeValues(t, do(t, h, http.MethodGet, "/v1/points?length=10&n=20", ""))
	require.Len(t, out.Values, 20)
	for i := 1; i < len(out.Values); i++ {
		assert.LessOrEqual(t, out.Values[i-1], out.Values[i])
	}

	empty := decodeValues(t, do(t, h, http.MethodGet, "/v1/points?length=10&n=0", ""))
	assert.NotNil(t, empty.Values)
	assert.Empty(t, empty.Values)
}

func TestEnsembleEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/v1/ensemble?kind=lognormal&mean=100&pdi=2&trials=20000&workers=4&seed=3", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st ensemble.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 20000, st.Trials)
	assert.InDelta(t, 100, st.Mn, 5)
	assert.InDelta(t, 2, st.PDI, 0.3)

	// Same query, same answer.
	again := do(t, h, http.MethodGet, "/v1/ensemble?kind=lognormal&mean=100&pdi=2&trials=20000&workers=4&seed=3", "")
	assert.JSONEq(t, rec.Body.String(), again.Body.String())
}

func TestBadRequests(t *testing.T) {
	_, h := newTestServer(t)
	for _, target := range []string{
		"/v1/poisson",
		"/v1/poisson?mean=-1",
		"/v1/poisson?mean=abc",
		"/v1/uniform?n=-1",
		"/v1/uniform?n=100001",
		"/v1/arm?mean=10",
		"/v1/arm?kind=bogus&mean=10",
		"/v1/arm?kind=lognormal&mean=10&pdi=0.5",
		"/v1/arm?preset=missing",
		"/v1/flory?log_prob=0.5",
		"/v1/points?length=-1&n=3",
		"/v1/points?length=1&n=10001",
		"/v1/ensemble?kind=gaussian&mean=10&pdi=1.1&trials=1000001",
		"/v1/ensemble?kind=gaussian&mean=10&pdi=1.1&workers=65",
		"/v1/ensemble?kind=gaussian&mean=10&trials=0",
	} {
		rec := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		var e errResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), target)
		assert.NotEmpty(t, e.Err, target)
	}
}

func TestPointsCap(t *testing.T) {
	_, h := newTestServer(t)
	out := decodeValues(t, do(t, h, http.MethodGet, fmt.Sprintf("/v1/points?length=1&n=%d", MaxPoints), ""))
	assert.Len(t, out.Values, MaxPoints)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, fmt.Sprintf("/v1/points?length=1&n=%d", MaxPoints+1), "").Code)
}

func TestStreamLimit(t *testing.T) {
	s := New(Options{
		Streams: stream.NewRegistry(stream.Config{Source: variate.SourceLaggedFibonacci, MaxStreams: 2}, nil, nil),
	})
	h := s.Handler()
	decodeValues(t, do(t, h, http.MethodGet, "/v1/uniform?stream=a", ""))
	decodeValues(t, do(t, h, http.MethodGet, "/v1/uniform?stream=b", ""))

	rec := do(t, h, http.MethodGet, "/v1/uniform?stream=c", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	rec = do(t, h, http.MethodPost, "/v1/streams/d/reseed", `{"seed": 1}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	decodeValues(t, do(t, h, http.MethodGet, "/v1/uniform", ""))
	decodeValues(t, do(t, h, http.MethodGet, "/v1/uniform?stream=a", ""))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(variate.ErrRetryLimit))
	assert.Equal(t, http.StatusConflict, statusFor(variate.ErrNotReseedable))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(stream.ErrTooManyStreams))
	assert.Equal(t, http.StatusBadRequest, statusFor(variate.ErrInvalidParam))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestPresetsReloadAndList(t *testing.T) {
	s, h := newTestServer(t)
	s.SetPresets(map[string]config.Preset{
		"b": {Kind: variate.KindFlory, Arm: variate.ArmParams{Mean: 50, PDI: 2}},
		"a": {Kind: variate.KindMonodisperse, Arm: variate.ArmParams{Mean: 5, PDI: 1}},
	})
	rec := do(t, h, http.MethodGet, "/v1/presets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Name)
	assert.Equal(t, "monodisperse", out[0].Kind)
	assert.Equal(t, "flory", out[1].Kind)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/arm?preset=star", "").Code)
}

func TestMetricsAndHealth(t *testing.T) {
	_, h := newTestServer(t)
	decodeValues(t, do(t, h, http.MethodGet, "/v1/gaussian?n=4", ""))

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bob_variate_draws_total{dist="gaussian"} 4`)
	assert.Contains(t, rec.Body.String(), "bob_request_batch_size")

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
}
