package exportchromium

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/goliatone/go-docexport/export"
)

// PrintJob is a printed document handed to a PrintSink.
type PrintJob struct {
	Title string
	PDF   []byte
}

// PrintSink receives the output of a print signal.
type PrintSink interface {
	Submit(ctx context.Context, job PrintJob) error
}

// PrintSinkFunc adapts a function to a PrintSink.
type PrintSinkFunc func(ctx context.Context, job PrintJob) error

func (f PrintSinkFunc) Submit(ctx context.Context, job PrintJob) error {
	if f == nil {
		return errors.New("print sink func is nil")
	}
	return f(ctx, job)
}

// SpoolerSink pipes print jobs to a system spooler such as lp.
type SpoolerSink struct {
	Command string
	Printer string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Submit runs the spooler with the PDF on stdin.
func (s SpoolerSink) Submit(ctx context.Context, job PrintJob) error {
	cmdPath := strings.TrimSpace(s.Command)
	if cmdPath == "" {
		cmdPath = "lp"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	args := append([]string{}, s.Args...)
	if s.Printer != "" {
		args = append(args, "-d", s.Printer)
	}
	if title := strings.TrimSpace(job.Title); title != "" {
		args = append(args, "-t", title)
	}
	args = append(args, "-")

	cmd := exec.CommandContext(cmdCtx, cmdPath, args...)
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	cmd.Stdin = bytes.NewReader(job.PDF)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() != nil {
			return cmdCtx.Err()
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = cmdPath + " failed"
		}
		return export.NewError(export.KindPresentation, message, err)
	}
	return nil
}

// StoreSink keeps printed documents in a FileSink.
type StoreSink struct {
	Sink export.FileSink
	// Now stamps the stored filename; defaults to time.Now.
	Now func() time.Time
}

// Submit stores the PDF as <slug(title)>_<date>.pdf.
func (s StoreSink) Submit(ctx context.Context, job PrintJob) error {
	if s.Sink == nil {
		return export.NewError(export.KindValidation, "store sink requires a file sink", nil)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	stamp := now()
	name := export.BuildFilename(job.Title, export.FormatPDFSingle, stamp)
	_, err := s.Sink.Put(ctx, name, bytes.NewReader(job.PDF), export.ArtifactMeta{
		Filename:    name,
		ContentType: "application/pdf",
		Size:        int64(len(job.PDF)),
		CreatedAt:   stamp,
	})
	return err
}
