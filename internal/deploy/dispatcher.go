package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"linkshare/pkg/cmdutil"

	"github.com/google/uuid"
)

const (
	// DefaultCommand is run when no deploy command is configured
	DefaultCommand = "./deployment_script.sh"

	// DefaultQueueSize is the number of triggers that may wait behind a running deploy
	DefaultQueueSize = 4

	// maxLoggedOutput bounds how much script output ends up in a log line
	maxLoggedOutput = 4096
)

// Config describes the deploy action
type Config struct {
	Command   string
	Dir       string
	QueueSize int
	Timeout   time.Duration // zero means unbounded
}

// Result describes one finished deploy run
type Result struct {
	RunID    string
	Reason   string
	ExitCode int
	Duration time.Duration
	Output   string // sanitized tail of the combined output
	Err      error
}

// OK reports whether the run exited cleanly
func (r Result) OK() bool {
	return r.Err == nil
}

type trigger struct {
	runID  string
	reason string
	queued time.Time
}

// Dispatcher runs the deploy command in a background worker. Triggers are
// one-way: callers never wait for, or learn about, the outcome of a run.
type Dispatcher struct {
	// Observer, when set before Start, is called after every run.
	Observer func(Result)

	// Redact lists strings scrubbed from logged output.
	Redact []string

	cfg      Config
	cmdParts []string
	logger   *slog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan trigger
	started sync.Once
	wg      sync.WaitGroup
}

// NewDispatcher validates cfg and returns a dispatcher that is not yet running.
func NewDispatcher(cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("deploy timeout cannot be negative: %s", cfg.Timeout)
	}

	parts, err := cmdutil.ParseCommandString(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid deploy command: %w", err)
	}

	return &Dispatcher{
		cfg:      cfg,
		cmdParts: parts,
		logger:   logger,
		queue:    make(chan trigger, cfg.QueueSize),
	}, nil
}

// Command returns the parsed deploy command
func (d *Dispatcher) Command() []string {
	return append([]string(nil), d.cmdParts...)
}

// Start launches the worker. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.started.Do(func() {
		d.wg.Add(1)
		go d.work()
	})
}

// Trigger enqueues a deploy run and returns immediately. It reports false
// when the dispatcher is shut down or the queue is full; the trigger is
// dropped in both cases.
func (d *Dispatcher) Trigger(reason string) (string, bool) {
	t := trigger{
		runID:  uuid.NewString(),
		reason: reason,
		queued: time.Now(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Error("Deploy trigger dropped, dispatcher shut down", "run_id", t.runID, "reason", reason)
		return t.runID, false
	}

	select {
	case d.queue <- t:
		d.logger.Info("Deploy queued", "run_id", t.runID, "reason", reason)
		return t.runID, true
	default:
		d.logger.Error("Deploy queue full, dropping trigger", "run_id", t.runID, "reason", reason, "queue_size", d.cfg.QueueSize)
		return t.runID, false
	}
}

// Shutdown stops accepting triggers and waits for queued runs to finish or
// ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for deploy runs: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for t := range d.queue {
		result := d.run(t)
		if d.Observer != nil {
			d.Observer(result)
		}
	}
}

// run executes one deploy. The process is detached from any request context.
func (d *Dispatcher) run(t trigger) Result {
	logger := d.logger.With("run_id", t.runID, "reason", t.reason)
	logger.Info("Deploy started",
		"command", cmdutil.FormatCommand(d.cmdParts),
		"waited_ms", time.Since(t.queued).Milliseconds())

	res, err := cmdutil.Run(context.Background(), cmdutil.ExecOptions{
		Dir:     d.cfg.Dir,
		Timeout: d.cfg.Timeout,
		Env:     []string{"LINKSHARE_DEPLOY_RUN_ID=" + t.runID},
	}, d.cmdParts)

	result := Result{
		RunID:  t.runID,
		Reason: t.reason,
		Err:    err,
	}
	if res != nil {
		result.ExitCode = res.ExitCode
		result.Duration = res.Duration
		result.Output = cmdutil.Tail(cmdutil.SanitizeOutput(res.Output, d.Redact), maxLoggedOutput)
	}

	if err != nil {
		logger.Error("Deploy failed",
			"error", err,
			"exit_code", result.ExitCode,
			"duration_ms", result.Duration.Milliseconds(),
			"output", result.Output)
	} else {
		logger.Info("Deploy completed",
			"duration_ms", result.Duration.Milliseconds(),
			"output", result.Output)
	}

	return result
}
