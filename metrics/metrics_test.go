package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("resource", "GET", "200"))
	ObserveRequest("resource", "GET", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("resource", "GET", "200"))
	if after-before != 1 {
		t.Fatalf("want counter +1, got %v -> %v", before, after)
	}

	errBefore := testutil.ToFloat64(RequestsTotal.WithLabelValues("identity", "POST", "error"))
	ObserveRequest("identity", "POST", 0, time.Millisecond)
	if got := testutil.ToFloat64(RequestsTotal.WithLabelValues("identity", "POST", "error")); got-errBefore != 1 {
		t.Fatalf("want error counter +1, got %v", got-errBefore)
	}
}

func TestWriteTextfile(t *testing.T) {
	ObserveRequest("resource", "PUT", 204, time.Millisecond)
	path := filepath.Join(t.TempDir(), "library.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "library_client_requests_total") {
		t.Fatalf("textfile missing request counter:\n%s", data)
	}
}
