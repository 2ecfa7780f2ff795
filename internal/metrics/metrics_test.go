package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	RecordScan(ScanKindRoot, 3, time.Millisecond, true)
	RecordAnalyzedFile(true)
	RecordStaleBatch()
	RecordExport(42, time.Millisecond, true)
	RecordCommand("generate", http.StatusOK)

	recorder := httptest.NewRecorder()
	Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := recorder.Body.String()
	for _, name := range []string{
		"repo2txt_scans_total",
		"repo2txt_indexed_nodes 3",
		`repo2txt_analyzed_files_total{kind="binary"}`,
		"repo2txt_stale_batches_total",
		"repo2txt_export_bytes_total",
		`repo2txt_command_requests_total{command="generate",status="200"}`,
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %q in metrics output", name)
		}
	}
}
