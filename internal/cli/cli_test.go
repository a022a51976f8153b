package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chan-analyzer/internal/config"
	"chan-analyzer/internal/errors"
	"chan-analyzer/internal/models"
)

// zigzagRanges produces four alternating fractals with window 1.
var zigzagRanges = [][2]float64{
	{8, 11}, {4, 10}, {6, 11}, {9, 14}, {7, 13}, {3, 9.5}, {5, 10}, {9, 13.5}, {6, 12},
}

func writeCSV(t *testing.T, dir, name string, ranges [][2]float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range ranges {
		mid := (r[0] + r[1]) / 2
		fmt.Fprintf(&b, "%s,%g,%g,%g,%g,1000\n",
			start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), mid, r[1], r[0], mid)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Engine.FractalWindow = 1
	cfg.Store.RetryDelay = time.Millisecond
	return cfg
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	return runWithLogger(t, cfg, zerolog.Nop(), args...)
}

func runWithLogger(t *testing.T, cfg *config.Config, logger zerolog.Logger, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(cfg, logger)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, testConfig(t), "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if v["version"] != Version {
		t.Errorf("version = %q", v["version"])
	}
}

func TestAnalyzeCSV_JSON(t *testing.T) {
	cfg := testConfig(t)
	path := writeCSV(t, t.TempDir(), "zig.csv", zigzagRanges)

	out, err := run(t, cfg, "analyze", path, "--json")
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}

	var report analysisReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if report.Symbol != "ZIG" {
		t.Errorf("symbol = %q, want ZIG", report.Symbol)
	}
	if report.Summary == nil || report.Summary.Bars != 9 || report.Summary.Strokes != 3 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if report.Bars != nil {
		t.Error("bars should be omitted without --bars")
	}
}

func TestAnalyzeCSV_KindFilter(t *testing.T) {
	cfg := testConfig(t)
	path := writeCSV(t, t.TempDir(), "zig.csv", zigzagRanges)

	for _, kind := range models.AllSignalKinds {
		out, err := run(t, cfg, "analyze", path, "--kind", strings.ToLower(string(kind)), "--json")
		if err != nil {
			t.Fatalf("%s: analyze error = %v", kind, err)
		}
		var report analysisReport
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(report.Signals) != report.Summary.Signals[kind] {
			t.Errorf("%s: listed %d signals, summary counts %d", kind, len(report.Signals), report.Summary.Signals[kind])
		}
		for _, sig := range report.Signals {
			if sig.Kind != kind {
				t.Errorf("%s filter listed a %s signal", kind, sig.Kind)
			}
		}
	}

	if _, err := run(t, cfg, "analyze", path, "--kind", "BUY9"); err == nil || !strings.Contains(err.Error(), "unknown signal kind") {
		t.Errorf("got %v, want unknown signal kind", err)
	}
}

func TestAnalyzeCSV_TextAndBars(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "zig.csv", zigzagRanges)

	out, err := run(t, testConfig(t), "analyze", path, "--bars", "--no-color")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"ZIG", "9 bars", "strokes 3", "Merged", "bottom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("output to a buffer should not be colored")
	}
}

func TestAnalyzeCSV_YAML(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "zig.csv", zigzagRanges)

	out, err := run(t, testConfig(t), "analyze", path, "--yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "symbol: ZIG") {
		t.Errorf("unexpected YAML:\n%s", out)
	}
}

func TestAnalyze_BatchWithFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeCSV(t, dir, "good.csv", zigzagRanges)
	bad := filepath.Join(dir, "bad.csv")
	data := "timestamp,open,high,low,close\n2024-01-01,1,2,0,1\n2024-01-01,1,2,0,1\n"
	if err := os.WriteFile(bad, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	out, err := runWithLogger(t, testConfig(t), zerolog.New(&logs), "analyze", good, bad, "--json")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 series failed") {
		t.Fatalf("got %v, want batch failure", err)
	}
	if !strings.Contains(logs.String(), `"symbol":"BAD"`) || !strings.Contains(logs.String(), `"message":"Analysis failed"`) {
		t.Errorf("failure not logged:\n%s", logs.String())
	}

	var reports []analysisReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(reports) != 2 || reports[0].Symbol != "BAD" || reports[0].Error == "" || reports[1].Error != "" {
		t.Errorf("reports = %+v", reports)
	}
}

func TestAnalyze_SingleInvalidSeriesReturnsInputError(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.csv")
	data := "timestamp,open,high,low,close\n2024-01-01,1,2,3,1\n"
	if err := os.WriteFile(bad, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, testConfig(t), "analyze", bad)
	if !errors.IsInputError(err) {
		t.Errorf("got %v, want InputError", err)
	}
}

func TestAnalyze_RequiresInput(t *testing.T) {
	if _, err := run(t, testConfig(t), "analyze"); err == nil {
		t.Error("expected error without files or symbols")
	}
}

func TestAnalyze_RejectsBadOverrides(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "zig.csv", zigzagRanges)

	_, err := run(t, testConfig(t), "analyze", path, "--oscillator", "rsi")
	if !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("got %v, want ErrConfigInvalid", err)
	}
	if _, err := run(t, testConfig(t), "analyze", path, "--from", "01/02/2024"); err == nil {
		t.Error("expected date parse error")
	}
}

func TestAnalyze_MetricsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "zig.csv", zigzagRanges)
	prom := filepath.Join(dir, "chan.prom")

	if _, err := run(t, testConfig(t), "analyze", path, "--metrics-file", prom, "--json"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(prom)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `chan_runs_total{outcome="ok"} 1`) {
		t.Errorf("metrics missing run count:\n%s", data)
	}
}

func TestImportAnalyzeSaveAndQuery(t *testing.T) {
	cfg := testConfig(t)
	path := writeCSV(t, t.TempDir(), "zig.csv", zigzagRanges)

	out, err := run(t, cfg, "import", path, "--symbol", "btcusdt", "--timeframe", "1h")
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, "Imported 9 bars for BTCUSDT") {
		t.Errorf("import output:\n%s", out)
	}

	out, err = run(t, cfg, "series", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"symbol": "BTCUSDT"`) || !strings.Contains(out, `"count": 9`) {
		t.Errorf("series output:\n%s", out)
	}

	out, err = run(t, cfg, "analyze", "--symbol", "BTCUSDT", "--timeframe", "1h", "--save", "--json")
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	var report analysisReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatal(err)
	}
	if report.RunID == "" {
		t.Fatal("saved run should report its ID")
	}

	out, err = run(t, cfg, "runs", "list", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var runs []models.AnalysisRun
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != report.RunID || runs[0].Bars != 9 || runs[0].FractalWindow != 1 {
		t.Errorf("runs = %+v", runs)
	}

	if _, err := run(t, cfg, "signals", report.RunID, "--kind", "buy1"); err != nil {
		t.Errorf("signals error = %v", err)
	}
	if _, err := run(t, cfg, "runs", "show", report.RunID); err != nil {
		t.Errorf("runs show error = %v", err)
	}
	if _, err := run(t, cfg, "runs", "delete", report.RunID); err != nil {
		t.Fatalf("runs delete error = %v", err)
	}
	if _, err := run(t, cfg, "signals", report.RunID); !errors.Is(err, errors.ErrRunNotFound) {
		t.Errorf("got %v, want ErrRunNotFound", err)
	}
}

func TestAnalyze_UnknownStoredSymbol(t *testing.T) {
	_, err := run(t, testConfig(t), "analyze", "--symbol", "NOPE")
	if !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("got %v, want ErrDataNotFound", err)
	}
}

func TestAnalyze_ReportsUnreadableSymbols(t *testing.T) {
	cfg := testConfig(t)
	path := writeCSV(t, t.TempDir(), "zig.csv", zigzagRanges)
	if _, err := run(t, cfg, "import", path, "--symbol", "ETH", "--timeframe", "1d"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, cfg, "analyze", "--symbol", "ETH", "--symbol", "NOPE", "--json")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 series failed") {
		t.Fatalf("got %v, want a partial failure", err)
	}
	var reports []analysisReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(reports) != 2 || reports[0].Symbol != "ETH" || reports[0].Summary == nil || reports[1].Symbol != "NOPE" || reports[1].Error == "" {
		t.Errorf("reports = %+v", reports)
	}
}

func TestAnalyze_LogsSavedRunsAndLoadFailures(t *testing.T) {
	cfg := testConfig(t)
	path := writeCSV(t, t.TempDir(), "zig.csv", zigzagRanges)
	if _, err := run(t, cfg, "import", path, "--symbol", "SOL"); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	_, err := runWithLogger(t, cfg, logger, "analyze", "--symbol", "SOL", "--symbol", "MISSING", "--save", "--json")
	if err == nil {
		t.Fatal("expected the missing symbol to fail the command")
	}

	out := logs.String()
	for _, want := range []string{
		`"message":"Run saved"`,
		`"message":"Failed to load series"`,
		`"symbol":"MISSING"`,
		`"run_id":"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("logs missing %s:\n%s", want, out)
		}
	}
}

func TestImport_RejectsInvalidBars(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.csv")
	data := "timestamp,open,high,low,close\n2024-01-01,1,2,0,5\n"
	if err := os.WriteFile(bad, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, testConfig(t), "import", bad); !errors.IsInputError(err) {
		t.Errorf("got %v, want InputError", err)
	}
}

func TestSignals_UnknownKind(t *testing.T) {
	_, err := run(t, testConfig(t), "signals", "any", "--kind", "BUY4")
	if err == nil || !strings.Contains(err.Error(), "unknown signal kind") {
		t.Errorf("got %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	cfg := testConfig(t)

	out, err := run(t, cfg, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Fractal window:   1") {
		t.Errorf("config show:\n%s", out)
	}

	if _, err := run(t, cfg, "config", "validate"); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.Batch.Workers = 0
	if _, err := run(t, cfg, "config", "validate"); err == nil {
		t.Error("invalid config accepted")
	}
}

func TestExamples(t *testing.T) {
	out, err := run(t, testConfig(t), "examples")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "chan import") {
		t.Errorf("examples output:\n%s", out)
	}
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	root := NewRootCmd(testConfig(t), zerolog.Nop())
	root.SetOut(&buf)
	output := NewOutput(root, true)

	table := NewTable(output, "Bar", "Signal")
	table.AddRow("7", "BUY1")
	table.AddRow("12", "SELL3")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Bar  Signal" || lines[3] != "12   SELL3" {
		t.Errorf("unexpected layout:\n%s", buf.String())
	}
}

func TestStripANSI(t *testing.T) {
	if got := displayWidth("\x1b[1;32mBUY1\x1b[0m"); got != 4 {
		t.Errorf("displayWidth() = %d, want 4", got)
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-02-03", "2006-01-02")
	if err != nil || !got.Equal(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseDate() = %v, %v", got, err)
	}
	if got, err := parseDate("", "2006-01-02"); err != nil || !got.IsZero() {
		t.Errorf("empty date = %v, %v", got, err)
	}
	if _, err := parseDate("2024-02-03T10:00:00Z", "2006-01-02"); err != nil {
		t.Errorf("RFC 3339 fallback failed: %v", err)
	}
}
