package logging

import (
	"bytes"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
)

// captureOutput captures stdout (via the log package) and stderr
// while fn runs and returns what was written to each.
func captureOutput(fn func()) (stdout, stderr string) {
	var stdoutBuf bytes.Buffer
	log.SetOutput(&stdoutBuf)
	defer log.SetOutput(os.Stderr)

	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = oldStderr
	stderrBytes, _ := io.ReadAll(r)

	return stdoutBuf.String(), string(stderrBytes)
}

// resetGlobalLogger clears global logger state so each test starts fresh.
func resetGlobalLogger() {
	globalLogger = nil
	initOnce = sync.Once{}
	packageLogMutex.Lock()
	packageLogLevels = make(map[string]LogLevel)
	packageLogMutex.Unlock()
}

func setExitFunc(fn func(int)) func() {
	old := exitFunc
	exitFunc = fn
	return func() { exitFunc = old }
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		levelStr  string
		wantLevel LogLevel
	}{
		{"debug level", "debug", DEBUG},
		{"info level", "info", INFO},
		{"warn level", "warn", WARN},
		{"error level", "error", ERROR},
		{"fatal level", "fatal", FATAL},
		{"uppercase level", "WARN", WARN},
		{"invalid level defaults to info", "verbose", INFO},
		{"empty level defaults to info", "", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobalLogger()

			if err := Initialize(tt.levelStr); err != nil {
				t.Fatalf("Initialize(%q) returned error: %v", tt.levelStr, err)
			}
			if globalLogger == nil {
				t.Fatal("Initialize did not set the global logger")
			}
			if globalLogger.level != tt.wantLevel {
				t.Errorf("level = %v, want %v", globalLogger.level, tt.wantLevel)
			}
			if globalLogger.name != "fleetsight" {
				t.Errorf("name = %q, want %q", globalLogger.name, "fleetsight")
			}
		})
	}
}

func TestInitializeWithPackageLevels(t *testing.T) {
	resetGlobalLogger()

	err := Initialize("info", map[string]string{
		"mcmc":       "debug",
		"resample.*": "warn",
	})
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetPackageLogLevel("mcmc"); got != DEBUG {
		t.Errorf("GetPackageLogLevel(mcmc) = %v, want DEBUG", got)
	}
	if got := GetPackageLogLevel("resample.forest"); got != WARN {
		t.Errorf("GetPackageLogLevel(resample.forest) = %v, want WARN", got)
	}

	err = Initialize("info", map[string]string{"mcmc": "chatty"})
	if err == nil {
		t.Error("Initialize accepted an invalid package level")
	}
}

func TestGetLoggerLazyInit(t *testing.T) {
	resetGlobalLogger()

	logger := GetLogger("survival")
	if logger == nil {
		t.Fatal("GetLogger returned nil")
	}
	if logger.name != "survival" {
		t.Errorf("name = %q, want %q", logger.name, "survival")
	}
	if logger.level != INFO {
		t.Errorf("lazy-initialized level = %v, want INFO", logger.level)
	}
	if globalLogger == nil {
		t.Error("GetLogger did not initialize the global logger")
	}
}

func TestLevelFiltering(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("warn"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	logger := GetLogger("changepoint")

	stdout, stderr := captureOutput(func() {
		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")
		logger.Error("error message")
	})

	if strings.Contains(stdout, "debug message") {
		t.Error("debug message logged below configured level")
	}
	if strings.Contains(stdout, "info message") {
		t.Error("info message logged below configured level")
	}
	if !strings.Contains(stdout, "warn message") {
		t.Error("warn message missing from stdout")
	}
	if strings.Contains(stdout, "error message") {
		t.Error("error message went to stdout instead of stderr")
	}
	if !strings.Contains(stderr, "error message") {
		t.Error("error message missing from stderr")
	}
}

func TestErrorWithErr(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	logger := GetLogger("results")

	_, stderr := captureOutput(func() {
		logger.ErrorWithErr("append failed", os.ErrPermission)
	})

	if !strings.Contains(stderr, "append failed") {
		t.Errorf("stderr missing message, got %q", stderr)
	}
	if !strings.Contains(stderr, os.ErrPermission.Error()) {
		t.Errorf("stderr missing wrapped error, got %q", stderr)
	}
}

func TestWithFieldPersistence(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	base := GetLogger("survival")
	child := base.WithField("run_id", "SRV_123")

	stdout, _ := captureOutput(func() {
		child.Info("fit complete")
	})
	if !strings.Contains(stdout, "run_id=SRV_123") {
		t.Errorf("child logger output missing persistent field, got %q", stdout)
	}

	// The parent must not pick up the child's field.
	stdout, _ = captureOutput(func() {
		base.Info("fit complete")
	})
	if strings.Contains(stdout, "run_id") {
		t.Errorf("parent logger leaked child field, got %q", stdout)
	}
}

func TestWithFieldsAndName(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	logger := GetLogger("resample").
		WithFields(Field("method", "importance"), Field("n", 500)).
		WithName("resample.experiment")

	stdout, _ := captureOutput(func() {
		logger.InfoWithFields("evaluation done", Field("auc", 0.91))
	})

	if !strings.Contains(stdout, "resample.experiment") {
		t.Errorf("output missing renamed component, got %q", stdout)
	}
	for _, want := range []string{"method=importance", "n=500", "auc=0.91"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing field %q, got %q", want, stdout)
		}
	}
}

func TestFieldsSortedDeterministically(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	logger := GetLogger("results")

	stdout, _ := captureOutput(func() {
		logger.InfoWithFields("record written",
			Field("zeta", 1),
			Field("alpha", 2),
			Field("mid", 3),
		)
	})

	ia := strings.Index(stdout, "alpha=")
	im := strings.Index(stdout, "mid=")
	iz := strings.Index(stdout, "zeta=")
	if ia < 0 || im < 0 || iz < 0 || !(ia < im && im < iz) {
		t.Errorf("fields not in sorted key order: %q", stdout)
	}
}

func TestFatalCallsExitFunc(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	exitCode := -1
	restore := setExitFunc(func(code int) { exitCode = code })
	defer restore()

	logger := GetLogger("main")
	_, stderr := captureOutput(func() {
		logger.Fatal("unrecoverable: %s", "no output dir")
	})

	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr, "unrecoverable: no output dir") {
		t.Errorf("stderr missing fatal message, got %q", stderr)
	}
}

func TestPackageLogLevelOverrides(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("error"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	err := SetPackageLogLevels(map[string]string{
		"mcmc":       "debug",
		"resample.*": "warn",
	})
	if err != nil {
		t.Fatalf("SetPackageLogLevels returned error: %v", err)
	}

	// The override makes mcmc chattier than the global error level.
	mcmcLogger := GetLogger("mcmc")
	stdout, _ := captureOutput(func() {
		mcmcLogger.Debug("proposal accepted")
	})
	if !strings.Contains(stdout, "proposal accepted") {
		t.Error("package override did not lower the level for mcmc")
	}

	// Wildcard applies to nested components, not to the bare prefix.
	forestLogger := GetLogger("resample.forest")
	stdout, _ = captureOutput(func() {
		forestLogger.Warn("few positive labels")
		forestLogger.Info("tree grown")
	})
	if !strings.Contains(stdout, "few positive labels") {
		t.Error("wildcard override did not apply to resample.forest")
	}
	if strings.Contains(stdout, "tree grown") {
		t.Error("info message logged despite warn override")
	}

	if got := GetPackageLogLevel("resample"); got != LogLevel(-1) {
		t.Errorf("GetPackageLogLevel(resample) = %v, want -1 (no override)", got)
	}
	if got := GetPackageLogLevel("survival"); got != LogLevel(-1) {
		t.Errorf("GetPackageLogLevel(survival) = %v, want -1 (no override)", got)
	}
}

func TestGetPackageLogLevelExactBeatsWildcard(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	err := SetPackageLogLevels(map[string]string{
		"resample.*":      "warn",
		"resample.forest": "debug",
	})
	if err != nil {
		t.Fatalf("SetPackageLogLevels returned error: %v", err)
	}

	if got := GetPackageLogLevel("resample.forest"); got != DEBUG {
		t.Errorf("exact match = %v, want DEBUG", got)
	}
	if got := GetPackageLogLevel("resample.weights"); got != WARN {
		t.Errorf("wildcard match = %v, want WARN", got)
	}
}

func TestSetPackageLogLevelsInvalid(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if err := SetPackageLogLevels(map[string]string{"mcmc": "loud"}); err == nil {
		t.Error("expected error for invalid package level")
	}
	if err := SetPackageLogLevels(nil); err != nil {
		t.Errorf("nil map should be a no-op, got error: %v", err)
	}
}

func TestGetTimestampOverride(t *testing.T) {
	t.Setenv("LOG_TIMESTAMP", "2026-08-30T12:00:00Z")
	if got := GetTimestamp(); got != "2026-08-30T12:00:00Z" {
		t.Errorf("GetTimestamp() = %q, want override value", got)
	}

	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	logger := GetLogger("main")
	stdout, _ := captureOutput(func() {
		logger.Info("started")
	})
	if !strings.Contains(stdout, "[2026-08-30T12:00:00Z] [INFO] main: started") {
		t.Errorf("log line missing deterministic timestamp prefix, got %q", stdout)
	}
}
