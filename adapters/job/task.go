package exportjob

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	exportcmd "github.com/goliatone/go-docexport/command"
	"github.com/goliatone/go-docexport/export"
	errorslib "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
)

const (
	DefaultExportTaskID   = "docexport:export"
	DefaultExportTaskPath = "docexport:export"
)

var (
	backoffRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
	backoffRandMu sync.Mutex
)

// Payload is the job input: one tabular batch item and the ID it runs under.
type Payload struct {
	ID   string              `json:"id"`
	Item exportcmd.BatchItem `json:"item"`
}

// MessageBuilderFunc builds an execution message for non-queue paths.
type MessageBuilderFunc func(ctx context.Context) (*job.ExecutionMessage, error)

// RunDispatch dispatches an export command and returns its result.
type RunDispatch func(ctx context.Context, msg exportcmd.RunExport) (export.ExportResult, error)

// TaskConfig configures the export task.
type TaskConfig struct {
	ID             string
	Path           string
	Config         job.Config
	HandlerOptions job.HandlerOptions
	RetryPolicy    RetryPolicy
	CancelRegistry *CancelRegistry
	Logger         export.Logger
	Dispatch       RunDispatch
	MessageBuilder MessageBuilderFunc
}

// ExportTask runs batch items as go-job tasks through the RunExport command.
type ExportTask struct {
	id             string
	path           string
	config         job.Config
	handlerOptions job.HandlerOptions
	retryPolicy    RetryPolicy
	cancelRegistry *CancelRegistry
	logger         export.Logger
	dispatch       RunDispatch
	messageBuilder MessageBuilderFunc
}

// NewExportTask creates an export task. Without a Dispatch the task sends
// RunExport through the go-command dispatcher.
func NewExportTask(cfg TaskConfig) *ExportTask {
	logger := cfg.Logger
	if logger == nil {
		logger = export.NopLogger{}
	}
	id := cfg.ID
	if id == "" {
		id = DefaultExportTaskID
	}
	path := cfg.Path
	if path == "" {
		path = DefaultExportTaskPath
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = dispatchRunExport
	}

	return &ExportTask{
		id:             id,
		path:           path,
		config:         cfg.Config,
		handlerOptions: cfg.HandlerOptions,
		retryPolicy:    cfg.RetryPolicy,
		cancelRegistry: cfg.CancelRegistry,
		logger:         logger,
		dispatch:       dispatch,
		messageBuilder: cfg.MessageBuilder,
	}
}

func dispatchRunExport(ctx context.Context, msg exportcmd.RunExport) (export.ExportResult, error) {
	var result export.ExportResult
	msg.Result = &result
	if err := dispatcher.Dispatch(ctx, msg); err != nil {
		return export.ExportResult{}, err
	}
	return result, nil
}

// GetID returns the task identifier.
func (t *ExportTask) GetID() string { return t.id }

// GetHandler returns a handler for non-queue execution paths, e.g. cron.
func (t *ExportTask) GetHandler() func() error {
	return func() error {
		if t == nil {
			return export.NewError(export.KindInternal, "task is nil", nil)
		}
		if t.messageBuilder == nil {
			return export.NewError(export.KindNotImpl, "job message builder not configured", nil)
		}

		ctx := context.Background()
		msg, err := t.messageBuilder(ctx)
		if err != nil {
			return err
		}
		if msg == nil {
			return export.NewError(export.KindValidation, "execution message is required", nil)
		}
		return t.Execute(ctx, msg)
	}
}

// GetHandlerConfig returns scheduler options for the task.
func (t *ExportTask) GetHandlerConfig() job.HandlerOptions { return t.handlerOptions }

// GetConfig returns task config defaults.
func (t *ExportTask) GetConfig() job.Config { return t.config }

// GetPath returns the task path.
func (t *ExportTask) GetPath() string { return t.path }

// GetEngine returns nil because this task is code-driven.
func (t *ExportTask) GetEngine() job.Engine { return nil }

// Execute runs the export carried by msg.
func (t *ExportTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	_, err := t.Run(ctx, msg)
	return err
}

// Run executes the export carried by msg, retrying per the task's policy,
// and returns the export result.
func (t *ExportTask) Run(ctx context.Context, msg *job.ExecutionMessage) (export.ExportResult, error) {
	if t == nil {
		return export.ExportResult{}, export.NewError(export.KindInternal, "task is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := decodePayload(msg)
	if err != nil {
		return export.ExportResult{}, err
	}

	execCtx := ctx
	if t.cancelRegistry != nil && payload.ID != "" {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		release := t.cancelRegistry.Register(payload.ID, cancel)
		defer release()
	}

	policy := t.retryPolicy
	attempt := 0
	for {
		if err := execCtx.Err(); err != nil {
			return export.ExportResult{}, err
		}

		result, err := t.dispatch(execCtx, exportcmd.RunExport{Request: payload.Item.Request()})
		if err == nil {
			return result, nil
		}
		if !policy.shouldRetry(err) || attempt >= policy.MaxRetries {
			return export.ExportResult{}, err
		}

		attempt++
		t.logger.Infof("export job %s: attempt %d failed, retrying: %v", payload.ID, attempt, err)
		if delay := policy.backoffDelay(attempt); delay > 0 {
			if serr := sleepWithContext(execCtx, delay); serr != nil {
				return export.ExportResult{}, serr
			}
		}
	}
}

func encodePayload(payload Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, export.NewError(export.KindValidation, "payload is not serializable", err)
	}
	return json.RawMessage(raw), nil
}

func decodePayload(msg *job.ExecutionMessage) (Payload, error) {
	if msg == nil || msg.Parameters == nil {
		return Payload{}, export.NewError(export.KindValidation, "job payload is required", nil)
	}

	raw, ok := msg.Parameters["payload"]
	if !ok {
		return Payload{}, export.NewError(export.KindValidation, "job payload missing", nil)
	}

	switch value := raw.(type) {
	case Payload:
		return value, nil
	case *Payload:
		if value == nil {
			return Payload{}, export.NewError(export.KindValidation, "job payload is nil", nil)
		}
		return *value, nil
	case json.RawMessage:
		return unmarshalPayload(value)
	case []byte:
		return unmarshalPayload(value)
	case string:
		return unmarshalPayload([]byte(value))
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return Payload{}, export.NewError(export.KindValidation, "job payload is invalid", err)
		}
		return unmarshalPayload(data)
	}
}

func unmarshalPayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, export.NewError(export.KindValidation, "job payload is empty", nil)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, export.NewError(export.KindValidation, "job payload is invalid", err)
	}
	return payload, nil
}

// RetryPolicy determines retry behavior for retryable errors.
type RetryPolicy struct {
	MaxRetries int
	Backoff    job.BackoffConfig
	Retryable  func(error) bool
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if err == nil || p.MaxRetries <= 0 {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return defaultRetryable(err)
}

func (p RetryPolicy) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return computeBackoffDelay(attempt, p.Backoff)
}

// defaultRetryable retries timeouts and internal failures. Validation and
// serialization errors fail the same way on every attempt.
func defaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errorslib.IsRetryableError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var exportErr *export.ExportError
	if errors.As(err, &exportErr) {
		return retryableKind(exportErr.Kind)
	}
	var goErr *errorslib.Error
	if errors.As(err, &goErr) {
		return retryableKind(export.ErrorKind(goErr.TextCode))
	}
	return false
}

func retryableKind(kind export.ErrorKind) bool {
	switch kind {
	case export.KindTimeout, export.KindInternal:
		return true
	default:
		return false
	}
}

func computeBackoffDelay(attempt int, cfg job.BackoffConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 5 * time.Second
	}

	switch cfg.Strategy {
	case job.BackoffFixed:
		return applyJitter(interval, cfg.Jitter)
	case job.BackoffExponential:
		delay := interval
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxInterval {
				delay = maxInterval
				break
			}
		}
		return applyJitter(delay, cfg.Jitter)
	default:
		return 0
	}
}

func applyJitter(delay time.Duration, jitter bool) time.Duration {
	if !jitter || delay <= 0 {
		return delay
	}
	// +/-50%
	half := float64(delay) * 0.5
	backoffRandMu.Lock()
	offset := (backoffRand.Float64()*2 - 1) * half
	backoffRandMu.Unlock()
	jittered := float64(delay) + offset
	if jittered < 0 {
		return 0
	}
	return time.Duration(jittered)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
