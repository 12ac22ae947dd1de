package export

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PrintState is a stage of a print job.
type PrintState string

const (
	PrintIdle       PrintState = "idle"
	PrintPreparing  PrintState = "preparing"
	PrintPresenting PrintState = "presenting"
	PrintPrinting   PrintState = "printing"
	PrintSettled    PrintState = "settled"
)

const (
	defaultPrintTitle   = "Print"
	DefaultPrintTimeout = 30 * time.Second
	DefaultCloseTimeout = 5 * time.Second
)

// PresentationSurface opens presentation sessions, the print-side analogue of
// a browser window.
type PresentationSurface interface {
	Open(ctx context.Context, title string) (PresentationSession, error)
}

// PresentationSession is one open presentation context.
type PresentationSession interface {
	Write(ctx context.Context, document string) error
	Print(ctx context.Context) error
	Close(ctx context.Context) error
}

// PrintOptions configures a print job.
type PrintOptions struct {
	Title        string
	HideElements []HostElement
	PrintTimeout time.Duration
	CloseTimeout time.Duration
	OnTransition func(from, to PrintState)
}

// PrintResult describes a settled print job.
type PrintResult struct {
	JobID       string
	Title       string
	Transitions []PrintState
	Hidden      int
	StartedAt   time.Time
	SettledAt   time.Time
}

// PrintComposer copies a snapshot into a fresh presentation session and
// issues a print job, hiding host elements for the duration.
type PrintComposer struct {
	Surface     PresentationSurface
	Templates   TemplateExecutor
	Logger      Logger
	Now         func() time.Time
	IDGenerator func() string
}

type printRun struct {
	result   PrintResult
	state    PrintState
	observer func(from, to PrintState)
}

func (r *printRun) transition(to PrintState) {
	from := r.state
	r.state = to
	r.result.Transitions = append(r.result.Transitions, to)
	if r.observer != nil {
		r.observer(from, to)
	}
}

// Print runs idle -> preparing -> presenting -> printing -> settled. Hidden
// elements are restored and the session closed on every exit path.
func (c PrintComposer) Print(ctx context.Context, source SnapshotSource, opts PrintOptions) (result PrintResult, err error) {
	opts = normalizePrintOptions(opts)
	logger := c.logger()
	now := c.now()

	run := &printRun{
		state:    PrintIdle,
		observer: opts.OnTransition,
		result: PrintResult{
			JobID:       c.newID(),
			Title:       opts.Title,
			Transitions: []PrintState{PrintIdle},
			StartedAt:   now(),
		},
	}
	defer func() {
		run.transition(PrintSettled)
		run.result.SettledAt = now()
		result = run.result
	}()

	if c.Surface == nil {
		return run.result, NewError(KindPresentation, "presentation surface is not configured", nil)
	}

	run.transition(PrintPreparing)
	scope, err := HideElements(ctx, opts.HideElements)
	if err != nil {
		return run.result, NewError(KindPresentation, "hide host elements", err)
	}
	run.result.Hidden = scope.Len()
	defer func() {
		if restoreErr := scope.Release(context.WithoutCancel(ctx)); restoreErr != nil {
			logger.Errorf("print %s: restore host elements: %v", run.result.JobID, restoreErr)
			if err == nil {
				err = NewError(KindPresentation, "restore host elements", restoreErr)
			}
		}
	}()

	if source == nil {
		return run.result, NewError(KindRasterization, "snapshot source is missing", nil)
	}
	snapshot, err := source.Snapshot(ctx)
	if err != nil {
		return run.result, wrapKind(err, KindRasterization, "capture snapshot")
	}
	if strings.TrimSpace(snapshot.Markup) == "" {
		return run.result, NewError(KindRasterization, "snapshot markup is empty", nil)
	}
	document, err := composePrintDocument(c.templates(), PrintPage{
		Title:       opts.Title,
		BaseURL:     snapshot.BaseURL,
		Markup:      snapshot.Markup,
		Stylesheets: snapshot.Stylesheets,
		GeneratedAt: run.result.StartedAt,
	})
	if err != nil {
		return run.result, NewError(KindPresentation, "compose print document", err)
	}

	run.transition(PrintPresenting)
	session, err := c.Surface.Open(ctx, opts.Title)
	if err != nil {
		return run.result, wrapKind(err, KindPresentation, "open presentation surface")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.CloseTimeout)
		defer cancel()
		if closeErr := session.Close(closeCtx); closeErr != nil {
			logger.Errorf("print %s: close presentation surface: %v", run.result.JobID, closeErr)
			if err == nil {
				err = wrapKind(closeErr, KindPresentation, "close presentation surface")
			}
		}
	}()

	if err := session.Write(ctx, document); err != nil {
		return run.result, wrapKind(err, KindPresentation, "write print document")
	}

	run.transition(PrintPrinting)
	printCtx, cancel := context.WithTimeout(ctx, opts.PrintTimeout)
	defer cancel()
	if err := session.Print(printCtx); err != nil {
		return run.result, wrapKind(err, KindPresentation, "print")
	}

	logger.Infof("print %s: %q settled", run.result.JobID, opts.Title)
	return run.result, nil
}

func normalizePrintOptions(opts PrintOptions) PrintOptions {
	opts.Title = strings.TrimSpace(opts.Title)
	if opts.Title == "" {
		opts.Title = defaultPrintTitle
	}
	if opts.PrintTimeout <= 0 {
		opts.PrintTimeout = DefaultPrintTimeout
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = DefaultCloseTimeout
	}
	return opts
}

// wrapKind keeps an existing export kind, maps deadlines and cancellation,
// and otherwise applies fallback.
func wrapKind(err error, fallback ErrorKind, msg string) error {
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindTimeout, msg+" timed out", err)
	case errors.Is(err, context.Canceled):
		return NewError(KindCanceled, msg+" canceled", err)
	}
	return NewError(fallback, msg, err)
}

func (c PrintComposer) logger() Logger {
	if c.Logger == nil {
		return NopLogger{}
	}
	return c.Logger
}

func (c PrintComposer) now() func() time.Time {
	if c.Now == nil {
		return time.Now
	}
	return c.Now
}

func (c PrintComposer) newID() string {
	if c.IDGenerator == nil {
		return uuid.NewString()
	}
	return c.IDGenerator()
}

func (c PrintComposer) templates() TemplateExecutor {
	if c.Templates == nil {
		return DefaultPrintExecutor()
	}
	return c.Templates
}
