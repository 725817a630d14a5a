package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/language"
	"github.com/tildaslashalef/critiq/internal/llm"
	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/review"
	"github.com/tildaslashalef/critiq/internal/ulid"
	"github.com/tildaslashalef/critiq/internal/utils"
)

// maxOutputBytes caps the command output kept on a test step
const maxOutputBytes = 4096

// ErrEmptyFix is returned when the model answers a fix request with nothing
var ErrEmptyFix = errors.New("model returned no code for the fix")

// Reviewer reviews file content; review.Service satisfies it
type Reviewer interface {
	ReviewContent(ctx context.Context, path, content string) (*review.ReviewResult, error)
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRunnerClock sets the clock used for run and step times
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithNamer sets how run names are generated
func WithNamer(namer func() string) RunnerOption {
	return func(r *Runner) { r.namer = namer }
}

// WithWorkDir sets the directory test commands run in
func WithWorkDir(dir string) RunnerOption {
	return func(r *Runner) { r.workDir = dir }
}

// Runner executes workflows step by step
type Runner struct {
	reviewer Reviewer
	client   llm.Client
	runs     *RunStore
	detector *language.Detector
	config   config.WorkflowConfig
	logger   *loggy.Logger
	now      func() time.Time
	namer    func() string
	workDir  string
}

// NewRunner creates a runner. runs may be nil, in which case runs are not persisted.
func NewRunner(reviewer Reviewer, client llm.Client, runs *RunStore, cfg config.WorkflowConfig, logger *loggy.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = 5 * time.Minute
	}
	r := &Runner{
		reviewer: reviewer,
		client:   client,
		runs:     runs,
		detector: language.NewDetector(logger),
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		namer:    utils.GenerateRunName,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// runState is what flows from one step to the next
type runState struct {
	run     *Run
	content string
	review  *review.ReviewResult
}

// Run executes wf against file. Steps run in order; a failing step stops
// the run unless it is marked continueOnError, and cancelling ctx stops it
// before the next step. The returned run is also persisted. An error is
// returned only when the run could not start.
func (r *Runner) Run(ctx context.Context, wf *Workflow, file string) (*Run, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	started := r.now()
	run := &Run{
		ID:        ulid.NewWithTime(started, ulid.PrefixRun).String(),
		Name:      r.namer(),
		Workflow:  wf.Name,
		File:      file,
		StartedAt: started.UnixMilli(),
		Status:    RunRunning,
		Steps:     make([]StepResult, 0, len(wf.Steps)),
	}
	logger := r.logger.With("run_id", run.ID, "workflow", wf.Name, "file", file)
	logger.Info("workflow run started", "name", run.Name)

	state := &runState{run: run, content: string(data)}
	failed := false

	for i, step := range wf.Steps {
		if ctx.Err() != nil {
			run.Status = RunCancelled
			skipRemaining(run, wf.Steps[i:])
			break
		}

		res := StepResult{Name: step.Name, Kind: step.Kind, StartedAt: r.now().UnixMilli()}
		output, stepErr := r.execute(ctx, step, state)
		res.FinishedAt = r.now().UnixMilli()
		res.Output = output

		if stepErr == nil {
			res.Status = StepSucceeded
			run.Steps = append(run.Steps, res)
			logger.Debug("workflow step succeeded", "step", step.Name)
			continue
		}

		res.Status = StepFailed
		res.Error = stepErr.Error()
		run.Steps = append(run.Steps, res)
		failed = true
		logger.Warn("workflow step failed", "step", step.Name, "error", stepErr)

		if ctx.Err() != nil {
			run.Status = RunCancelled
			skipRemaining(run, wf.Steps[i+1:])
			break
		}
		if !step.ContinueOnError {
			skipRemaining(run, wf.Steps[i+1:])
			break
		}
	}

	if run.Status == RunRunning {
		if failed {
			run.Status = RunFailed
		} else {
			run.Status = RunSucceeded
		}
	}
	run.FinishedAt = r.now().UnixMilli()
	logger.Info("workflow run finished", "status", run.Status, "duration", run.Duration())

	if r.runs != nil && !r.runs.Save(context.WithoutCancel(ctx), run) {
		logger.Warn("workflow run was not saved")
	}
	return run, nil
}

func skipRemaining(run *Run, steps []Step) {
	for _, s := range steps {
		run.Steps = append(run.Steps, StepResult{Name: s.Name, Kind: s.Kind, Status: StepSkipped})
	}
}

func (r *Runner) execute(ctx context.Context, step Step, state *runState) (string, error) {
	switch step.Kind {
	case StepReview:
		return r.reviewStep(ctx, state)
	case StepFix:
		return r.fixStep(ctx, step, state)
	case StepTest:
		return r.testStep(ctx, step, state)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStepKind, step.Kind)
	}
}

func (r *Runner) reviewStep(ctx context.Context, state *runState) (string, error) {
	result, err := r.reviewer.ReviewContent(ctx, state.run.File, state.content)
	if err != nil {
		return "", err
	}
	state.review = result
	state.run.ReviewID = result.ID
	return fmt.Sprintf("%d violations: %s", len(result.Violations), result.Summary), nil
}

func (r *Runner) fixStep(ctx context.Context, step Step, state *runState) (string, error) {
	if state.review == nil {
		return "", errors.New("no review result to fix")
	}
	violations := fixable(state.review)
	if len(violations) == 0 {
		return "nothing to fix", nil
	}

	lang := r.detector.Detect(state.run.File, []byte(state.content))
	messages, err := buildFixMessages(state.run.File, lang, state.content, violations)
	if err != nil {
		return "", err
	}
	res, err := llm.Complete(ctx, r.client, llm.ChatRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("fix request failed: %w", err)
	}
	fixed := extractCode(res.Content, state.content)
	if fixed == "" {
		return "", ErrEmptyFix
	}

	target := state.run.File
	if !step.InPlace {
		target += ".fixed"
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(state.run.File); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(target, []byte(fixed), mode); err != nil {
		return "", fmt.Errorf("failed to write fix: %w", err)
	}

	state.content = fixed
	state.run.FixedPath = target
	return fmt.Sprintf("applied %d fixes to %s", len(violations), target), nil
}

func (r *Runner) testStep(ctx context.Context, step Step, state *runState) (string, error) {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = r.config.TestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command := strings.ReplaceAll(step.Command, "{file}", state.run.File)
	if state.run.FixedPath != "" {
		command = strings.ReplaceAll(command, "{fixed}", state.run.FixedPath)
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = r.workDir
	cmd.WaitDelay = time.Second

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	output := tail(buf.String(), maxOutputBytes)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return output, fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		return output, fmt.Errorf("command %q failed: %w", command, err)
	}
	return output, nil
}

// tail keeps at most the last max bytes of s without splitting a rune
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	start := len(s) - max
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
