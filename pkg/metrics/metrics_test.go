package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.ObserveRun(OutcomeOK, 20*time.Millisecond, 450)
	r.ObserveRun(OutcomeOK, 30*time.Millisecond, 120)
	r.ObserveRun(OutcomeConfigError, time.Millisecond, 0)
	r.ObserveItem("apple")
	r.ObserveItem("apple")
	r.ObserveItem("rice")
	r.ObserveSkipped("unknown_food_category")

	if got := testutil.ToFloat64(r.runs.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("Expected 2 ok runs, got %f", got)
	}
	if got := testutil.ToFloat64(r.runs.WithLabelValues(OutcomeConfigError)); got != 1 {
		t.Errorf("Expected 1 config error run, got %f", got)
	}
	if got := testutil.ToFloat64(r.items.WithLabelValues("apple")); got != 2 {
		t.Errorf("Expected 2 apples, got %f", got)
	}
	if got := testutil.ToFloat64(r.skipped.WithLabelValues("unknown_food_category")); got != 1 {
		t.Errorf("Expected 1 skipped item, got %f", got)
	}
	if n := testutil.CollectAndCount(r.items); n != 2 {
		t.Errorf("Expected 2 item series, got %d", n)
	}
}

func TestWriteToTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun(OutcomeOK, 10*time.Millisecond, 300)

	path := filepath.Join(t.TempDir(), "estimator.prom")
	if err := r.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `calorie_estimator_runs_total{outcome="ok"} 1`) {
		t.Errorf("Expected run counter in textfile, got:\n%s", data)
	}
}
