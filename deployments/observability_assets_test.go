package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGrafanaDashboardJSONIsValid(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "grafana", "tallybook_assistant_dashboard.json")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dashboard file: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("dashboard JSON parse error: %v", err)
	}

	title, _ := decoded["title"].(string)
	if strings.TrimSpace(title) == "" {
		t.Fatal("dashboard title is required")
	}
	panels, ok := decoded["panels"].([]any)
	if !ok || len(panels) == 0 {
		t.Fatal("dashboard must include at least one panel")
	}
}

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	text := readAsset(t, "prometheus", "tallybook_rules.yaml")

	requiredAlerts := []string{
		"TallybookQueryLatencyP95High",
		"TallybookQueryTimeoutsDetected",
		"TallybookAssistantFailureRateHigh",
		"TallybookIntentRejectionSpike",
		"TallybookReplicaExportStale",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}
}

func TestPrometheusRecordingRulesReferenceExportedMetrics(t *testing.T) {
	text := readAsset(t, "prometheus", "tallybook_recording_rules.yaml")

	requiredRecords := []string{
		"tallybook:slo_query_duration_ms_p95",
		"tallybook:slo_model_request_duration_ms_p95",
		"tallybook:slo_query_timeouts_15m",
		"tallybook:slo_intent_rejections_15m",
		"tallybook:slo_assistant_failure_rate_5m",
		"tallybook:slo_replica_export_age_seconds",
		"tallybook:slo_http_error_rate_5m",
	}
	for _, recordName := range requiredRecords {
		if !strings.Contains(text, "record: "+recordName) {
			t.Fatalf("recording rules missing record %q", recordName)
		}
	}

	exportedMetrics := []string{
		"tallybook_query_duration_ms_bucket",
		"tallybook_model_request_duration_ms_bucket",
		"tallybook_query_executions_total",
		"tallybook_intent_rejections_total",
		"tallybook_assistant_questions_total",
		"tallybook_replica_last_export_timestamp_seconds",
		"tallybook_http_requests_total",
	}
	for _, metricName := range exportedMetrics {
		if !strings.Contains(text, metricName) {
			t.Fatalf("recording rules missing metric reference %q", metricName)
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	text := readAsset(t, "prometheus", "prometheus-scrape.example.yaml")

	if !strings.Contains(text, "metrics_path: /v1/metrics") {
		t.Fatal("scrape example missing metrics path")
	}
	if !strings.Contains(text, "tallybook_rules.yaml") || !strings.Contains(text, "tallybook_recording_rules.yaml") {
		t.Fatal("scrape example missing rule file references")
	}
	if !strings.Contains(text, "job_name: tallybook-api") {
		t.Fatal("scrape example missing tallybook-api job")
	}
}

func readAsset(t *testing.T, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{repoRoot(t), "deployments", "observability"}, parts...)...)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
