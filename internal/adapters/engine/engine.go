package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/ports"
)

const (
	MsgNoExecutableNodes = "工作流中未包含可执行节点。"
	MsgWorkflowCompleted = "工作流执行完成。"
	MsgNoDebugOutputs    = "调试输出: 未配置输出，使用默认占位结果"
)

type Invoker interface {
	Invoke(ctx context.Context, nodeType string, config map[string]interface{}, upstream interface{}) (interface{}, error)
}

type Engine struct {
	invoker Invoker
	config  domain.EngineConfig
	metrics ports.MetricsPort
	logger  *slog.Logger
	now     func() time.Time

	abandoned atomic.Int64
}

func NewEngine(invoker Invoker, config domain.EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SummaryLimit <= 0 {
		config.SummaryLimit = domain.DefaultSummaryLimit
	}

	return &Engine{
		invoker: invoker,
		config:  config,
		logger:  logger.With("component", "engine"),
		now:     time.Now,
	}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

func (e *Engine) WithMetrics(metrics ports.MetricsPort) *Engine {
	e.metrics = metrics
	return e
}

// Execute runs plan step by step. Lines are produced only as the consumer
// pulls them; a step failure or cancellation ends the sequence with a
// non-nil error after the lines already produced.
func (e *Engine) Execute(ctx context.Context, plan *domain.ExecutionPlan, debugger ports.DebugRecorder) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if plan == nil || len(plan.Steps) == 0 {
			yield(MsgNoExecutableNodes, nil)
			return
		}

		r := &stepRunner{
			engine:   e,
			plan:     plan,
			debugger: debugger,
			yield:    yield,
		}

		upstream := plan.InitialPayload
		total := len(plan.Steps)
		for i, step := range plan.Steps {
			result, ok := r.run(ctx, i+1, total, step, upstream)
			if !ok {
				return
			}
			upstream = result
		}

		yield(MsgWorkflowCompleted, nil)
	}
}

type stepRunner struct {
	engine   *Engine
	plan     *domain.ExecutionPlan
	debugger ports.DebugRecorder
	yield    func(string, error) bool
	stopped  bool
}

func (r *stepRunner) emit(line string) bool {
	if r.stopped {
		return false
	}
	if !r.yield(line, nil) {
		r.stopped = true
	}
	return !r.stopped
}

func (r *stepRunner) fail(err error) {
	if !r.stopped {
		r.stopped = true
		r.yield("", err)
	}
}

func (r *stepRunner) record(step domain.ExecutionStep, kind domain.DebugEventKind, payload map[string]interface{}) {
	if r.debugger != nil {
		r.debugger.Record(step, kind, payload)
	}
}

func (r *stepRunner) run(ctx context.Context, position, total int, step domain.ExecutionStep, upstream interface{}) (interface{}, bool) {
	e := r.engine
	started := e.now()

	r.record(step, domain.DebugEventStart, nil)
	if !r.emit(fmt.Sprintf("步骤 %d/%d: 节点 %s (类型 %s) 开始执行", position, total, step.Label, step.Type)) {
		return nil, false
	}

	runtime.Gosched()
	if err := ctx.Err(); err != nil {
		e.logger.Debug("execution cancelled", "workflow_id", r.plan.WorkflowID, "step_id", step.ID)
		r.fail(err)
		return nil, false
	}

	var (
		result  interface{}
		outcome string
	)
	if override, ok := r.plan.Override(step.ID); ok {
		if !r.emitOverride(step, override) {
			return nil, false
		}
		result = overrideResult(step, override)
		outcome = "override"
	} else {
		value, err := e.invoke(ctx, step, upstream)
		if err != nil {
			e.logger.Warn("step failed",
				"workflow_id", r.plan.WorkflowID,
				"step_id", step.ID,
				"node_type", step.Type,
				"error", err)
			e.observeStep(step, "error", started)
			if !r.emit(fmt.Sprintf("节点 %s 执行失败: %v", step.Label, err)) {
				return nil, false
			}
			r.record(step, domain.DebugEventError, map[string]interface{}{"message": err.Error()})
			r.fail(domain.NewStepError(step, err))
			return nil, false
		}
		result = value
		outcome = "ok"
		if !r.emit(fmt.Sprintf("节点 %s 输出: %s", step.Label, domain.Summarize(result, e.config.SummaryLimit))) {
			return nil, false
		}
	}

	e.observeStep(step, outcome, started)
	r.record(step, domain.DebugEventCompleted, map[string]interface{}{"result": result})
	if !r.emit(fmt.Sprintf("节点 %s 执行完成 [%s]", step.Label, e.now().UTC().Format(time.RFC3339))) {
		return nil, false
	}
	return result, true
}

func (r *stepRunner) emitOverride(step domain.ExecutionStep, override domain.DebugOverride) bool {
	lines := []string{fmt.Sprintf("节点 %s 配置: %s", step.Label, domain.Stringify(step.Configuration))}
	if override.Notes != "" {
		lines = append(lines, "调试说明: "+override.Notes)
	}
	if override.InputPayload != nil {
		lines = append(lines, "调试输入: "+domain.Stringify(override.InputPayload))
	}
	if override.HasOutputs() {
		for k, text := range override.Outputs {
			lines = append(lines, fmt.Sprintf("调试输出[%d]: %s", k+1, text))
		}
	} else {
		lines = append(lines, MsgNoDebugOutputs)
	}
	if len(override.Metadata) > 0 {
		lines = append(lines, "调试元数据: "+domain.Stringify(override.Metadata))
	}

	for _, line := range lines {
		if !r.emit(line) {
			return false
		}
	}

	r.record(step, domain.DebugEventOverride, map[string]interface{}{
		"has_outputs": override.HasOutputs(),
		"notes":       override.Notes,
		"metadata":    override.Metadata,
	})
	return true
}

func overrideResult(step domain.ExecutionStep, override domain.DebugOverride) interface{} {
	switch len(override.Outputs) {
	case 0:
		return fmt.Sprintf("%s 的调试占位结果", step.Label)
	case 1:
		return override.Outputs[0]
	default:
		return append([]string(nil), override.Outputs...)
	}
}

func (e *Engine) invoke(ctx context.Context, step domain.ExecutionStep, upstream interface{}) (interface{}, error) {
	config := domain.CopyMap(step.Configuration)
	if e.config.StepTimeout <= 0 {
		return e.safeInvoke(ctx, step, config, upstream)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.StepTimeout)
	defer cancel()

	done := make(chan handlerOutcome, 1)
	go func() {
		result, err := e.safeInvoke(ctx, step, config, upstream)
		done <- handlerOutcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		e.abandoned.Add(1)
		e.logger.Warn("abandoning handler that ignored cancellation",
			"step_id", step.ID,
			"node_type", step.Type,
			"timeout", e.config.StepTimeout)
		go e.reap(step, done)
		return nil, fmt.Errorf("handler did not finish within %s: %w", e.config.StepTimeout, ctx.Err())
	}
}

type handlerOutcome struct {
	result interface{}
	err    error
}

func (e *Engine) reap(step domain.ExecutionStep, done <-chan handlerOutcome) {
	<-done
	e.abandoned.Add(-1)
	e.logger.Info("abandoned handler returned", "step_id", step.ID, "node_type", step.Type)
}

// AbandonedHandlers counts handler calls that outlived their step timeout and
// have not returned yet.
func (e *Engine) AbandonedHandlers() int64 {
	return e.abandoned.Load()
}

func (e *Engine) safeInvoke(ctx context.Context, step domain.ExecutionStep, config map[string]interface{}, upstream interface{}) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			panicErr := domain.NewPanicError(step.ID, step.Type, rec)
			e.logger.Error("handler panicked",
				"step_id", step.ID,
				"node_type", step.Type,
				"panic", rec,
				"recovered_at", panicErr.RecoveredAt)
			result, err = nil, panicErr
		}
	}()
	return e.invoker.Invoke(ctx, step.Type, config, upstream)
}

func (e *Engine) observeStep(step domain.ExecutionStep, outcome string, started time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.StepFinished(step.Type, outcome, e.now().Sub(started).Seconds())
}
