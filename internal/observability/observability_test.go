package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"trade-ingestion-service/internal/observability/metrics"
)

func TestServer_Endpoints(t *testing.T) {
	ready := false
	s := NewServer(":0", func() bool { return ready })

	tests := []struct {
		path string
		code int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, rec.Code)
		}
	}

	ready = true
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected ready after flag set, got %d", rec.Code)
	}
}

func TestUnaryServerInterceptor_RecordsRequests(t *testing.T) {
	m := metrics.NewMetrics(nil)
	interceptor := UnaryServerInterceptor(m)
	info := &grpc.UnaryServerInfo{FullMethod: "/trade.ingest.v1.RecordValidator/Validate"}

	ok := func(ctx context.Context, req interface{}) (interface{}, error) { return "done", nil }
	bad := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "not an array")
	}

	if resp, err := interceptor(context.Background(), nil, info, ok); err != nil || resp != "done" {
		t.Fatalf("unexpected result: %v %v", resp, err)
	}
	if _, err := interceptor(context.Background(), nil, info, bad); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument to pass through, got %v", err)
	}

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("grpc", info.FullMethod, "OK")); got != 1 {
		t.Errorf("expected 1 OK request, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("grpc", info.FullMethod, "InvalidArgument")); got != 1 {
		t.Errorf("expected 1 InvalidArgument request, got %v", got)
	}
}
