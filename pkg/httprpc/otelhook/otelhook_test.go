package otelhook_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tansive/httprpc/pkg/httprpc"
	"github.com/tansive/httprpc/pkg/httprpc/otelhook"
)

func TestHook(t *testing.T) {
	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`"pong"`))
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	cfg := otelhook.DefaultConfig()
	cfg.TracerProvider = tp
	cfg.MeterProvider = mp
	cfg.Propagator = propagation.TraceContext{}

	client := httprpc.NewClient(httprpc.WithHook(otelhook.New(cfg)), httprpc.WithLogger(zerolog.Nop()))
	defer client.Close()

	svc := httprpc.NewService("probe")
	ping := svc.MustDeclare(httprpc.Method{Name: "ping", Verb: httprpc.GET, URL: srv.URL + "/ping", Returns: httprpc.Returns[string]()})
	fail := svc.MustDeclare(httprpc.Method{Name: "fail", Verb: httprpc.GET, URL: srv.URL + "/fail"})

	_, err := httprpc.Call[string](context.Background(), client, ping)
	require.NoError(t, err)
	assert.NotEmpty(t, traceparent)

	err = httprpc.Invoke(context.Background(), client, fail)
	require.ErrorIs(t, err, httprpc.ErrRemoteStatus)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "httprpc/probe.ping", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "httprpc/probe.fail", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NotEmpty(t, spans[1].Events())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
			if m.Name == "rpc.client.requests" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				assert.Equal(t, int64(2), total)
			}
		}
	}
	assert.True(t, names["rpc.client.requests"])
	assert.True(t, names["rpc.client.duration"])
}
