package metrics

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/drand/sigma/common/testlogger"
)

func TestBindIdempotent(t *testing.T) {
	l := testlogger.New(t)
	Bind(l)
	Bind(l)

	before := testutil.ToFloat64(ProofsGenerated.WithLabelValues("test"))
	ProofsGenerated.WithLabelValues("test").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(ProofsGenerated.WithLabelValues("test")))
}

func TestWriteSummary(t *testing.T) {
	Bind(testlogger.New(t))
	ProofsVerified.WithLabelValues("summary", ResultValid).Inc()
	ChallengeConversionFailures.Inc()

	var b bytes.Buffer
	require.NoError(t, WriteSummary(&b))
	require.Contains(t, b.String(), `proofs_verified_total{kind="summary",result="valid"}`)
	require.Contains(t, b.String(), "challenge_conversion_failures_total")
}

func TestHandler(t *testing.T) {
	Bind(testlogger.New(t))
	ProofsGenerated.WithLabelValues("handler").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `proofs_generated_total{kind="handler"}`)
}

func TestStart(t *testing.T) {
	l, err := Start(testlogger.New(t), "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	ChallengeConversionFailures.Inc()

	//nolint:noctx
	resp, err := http.Get("http://" + l.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "challenge_conversion_failures_total")

	_, err = Start(testlogger.New(t), "127.0.0.1:99999")
	require.Error(t, err)
}
