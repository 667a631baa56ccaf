package deploy

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collect starts d with an observer that forwards results to the returned channel
func collect(d *Dispatcher) <-chan Result {
	results := make(chan Result, 8)
	d.Observer = func(r Result) { results <- r }
	d.Start()
	return results
}

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for deploy result")
		return Result{}
	}
}

func TestNewDispatcher_Defaults(t *testing.T) {
	d, err := NewDispatcher(Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	cmd := d.Command()
	if len(cmd) != 1 || cmd[0] != DefaultCommand {
		t.Errorf("Expected default command, got %q", cmd)
	}
	if cap(d.queue) != DefaultQueueSize {
		t.Errorf("Expected queue size %d, got %d", DefaultQueueSize, cap(d.queue))
	}
}

func TestNewDispatcher_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unterminated quote", Config{Command: `./deploy.sh "oops`}},
		{"negative timeout", Config{Timeout: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDispatcher(tt.cfg, testLogger()); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestDispatcher_RunsCommand(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDispatcher(Config{
		Command: `sh -c "echo deployed > out.txt; echo $LINKSHARE_DEPLOY_RUN_ID"`,
		Dir:     dir,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	results := collect(d)

	runID, ok := d.Trigger("test")
	if !ok {
		t.Fatal("Expected trigger to be accepted")
	}

	r := waitResult(t, results)
	if !r.OK() {
		t.Fatalf("Expected successful run, got %v (%s)", r.Err, r.Output)
	}
	if r.RunID != runID || r.Reason != "test" {
		t.Errorf("Unexpected result identity: %+v", r)
	}
	if r.Output != runID {
		t.Errorf("Expected run id exported to the script, got output %q", r.Output)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatalf("Expected script to run in %s: %v", dir, err)
	}
	if strings.TrimSpace(string(data)) != "deployed" {
		t.Errorf("Unexpected script output file: %q", data)
	}

	if err := d.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestDispatcher_FailureIsReportedNotPropagated(t *testing.T) {
	d, err := NewDispatcher(Config{Command: `sh -c "echo broken; exit 3"`}, testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	results := collect(d)

	if _, ok := d.Trigger("failing"); !ok {
		t.Fatal("Expected trigger to be accepted even though the command will fail")
	}

	r := waitResult(t, results)
	if r.OK() {
		t.Fatal("Expected failed run")
	}
	if r.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", r.ExitCode)
	}
	if r.Output != "broken" {
		t.Errorf("Expected output 'broken', got %q", r.Output)
	}

	d.Shutdown(context.Background())
}

func TestDispatcher_MissingScript(t *testing.T) {
	d, _ := NewDispatcher(Config{Command: "/nonexistent/deployment_script.sh"}, testLogger())
	results := collect(d)

	d.Trigger("missing")

	r := waitResult(t, results)
	if r.OK() {
		t.Fatal("Expected error for missing script")
	}
	if r.ExitCode != -1 {
		t.Errorf("Expected exit code -1, got %d", r.ExitCode)
	}

	d.Shutdown(context.Background())
}

func TestDispatcher_RedactsOutput(t *testing.T) {
	d, _ := NewDispatcher(Config{Command: `echo token=hunter2`}, testLogger())
	d.Redact = []string{"hunter2"}
	results := collect(d)

	d.Trigger("redact")

	r := waitResult(t, results)
	if strings.Contains(r.Output, "hunter2") {
		t.Errorf("Secret leaked into output: %q", r.Output)
	}

	d.Shutdown(context.Background())
}

func TestDispatcher_TriggerDoesNotBlock(t *testing.T) {
	d, _ := NewDispatcher(Config{Command: "sleep 2"}, testLogger())
	d.Start()

	start := time.Now()
	d.Trigger("slow")
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Trigger blocked for %s", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Shutdown(ctx)
}

func TestDispatcher_QueueFull(t *testing.T) {
	// Not started, so nothing drains the queue
	d, _ := NewDispatcher(Config{Command: "true", QueueSize: 1}, testLogger())

	if _, ok := d.Trigger("first"); !ok {
		t.Fatal("Expected first trigger to be queued")
	}
	if _, ok := d.Trigger("second"); ok {
		t.Error("Expected second trigger to be dropped")
	}

	if err := d.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestDispatcher_ShutdownRejectsTriggers(t *testing.T) {
	d, _ := NewDispatcher(Config{Command: "true"}, testLogger())
	d.Start()

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if _, ok := d.Trigger("late"); ok {
		t.Error("Expected trigger after shutdown to be rejected")
	}

	// Second shutdown is a no-op
	if err := d.Shutdown(context.Background()); err != nil {
		t.Errorf("Second Shutdown() error = %v", err)
	}
}

func TestDispatcher_ShutdownHonorsContext(t *testing.T) {
	d, _ := NewDispatcher(Config{Command: "sleep 2"}, testLogger())
	results := collect(d)
	d.Trigger("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := d.Shutdown(ctx); err == nil {
		t.Error("Expected Shutdown to give up when the context expires")
	}

	// The run still completes in the background
	waitResult(t, results)
}

func TestDispatcher_RunsSequentially(t *testing.T) {
	dir := t.TempDir()
	d, _ := NewDispatcher(Config{Command: `sh -c "echo run >> log.txt"`, Dir: dir}, testLogger())
	results := collect(d)

	for i := 0; i < 3; i++ {
		if _, ok := d.Trigger("seq"); !ok {
			t.Fatalf("Trigger %d dropped", i)
		}
	}
	for i := 0; i < 3; i++ {
		waitResult(t, results)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "log.txt"))
	if got := strings.Count(string(data), "run"); got != 3 {
		t.Errorf("Expected 3 runs, got %d", got)
	}

	d.Shutdown(context.Background())
}
