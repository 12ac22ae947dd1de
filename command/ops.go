package command

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-docexport/export"
	"github.com/goliatone/go-errors"
)

// BatchItem is one tabular export in a batch file.
type BatchItem struct {
	Format          export.Format             `json:"format"`
	Title           string                    `json:"title,omitempty"`
	Filename        string                    `json:"filename,omitempty"`
	SheetName       string                    `json:"sheet_name,omitempty"`
	Columns         []export.ColumnDescriptor `json:"columns"`
	Rows            []export.Row              `json:"rows"`
	VisibleRows     []export.Row              `json:"visible_rows,omitempty"`
	CurrentViewOnly bool                      `json:"current_view_only,omitempty"`
}

// Request converts the item into a facade request.
func (item BatchItem) Request() export.ExportRequest {
	return export.ExportRequest{
		Format:          item.Format,
		Options:         export.Options{Title: item.Title},
		Rows:            item.Rows,
		VisibleRows:     item.VisibleRows,
		CurrentViewOnly: item.CurrentViewOnly,
		Columns:         item.Columns,
		Filename:        item.Filename,
		SheetName:       item.SheetName,
	}
}

// BatchLoader loads batch items from a source.
type BatchLoader func(ctx context.Context) ([]BatchItem, error)

// BatchLimits bounds batch execution throughput.
type BatchLimits struct {
	MaxItems    int
	MinInterval time.Duration
}

// BatchExecutor runs a single batch item.
type BatchExecutor interface {
	ExecuteItem(ctx context.Context, item BatchItem) (export.ExportResult, error)
}

// BatchExecutorFunc adapts a function to a BatchExecutor.
type BatchExecutorFunc func(ctx context.Context, item BatchItem) (export.ExportResult, error)

func (f BatchExecutorFunc) ExecuteItem(ctx context.Context, item BatchItem) (export.ExportResult, error) {
	return f(ctx, item)
}

// BatchCommand runs tabular exports in bulk from the CLI or cron.
type BatchCommand struct {
	facade     export.Facade
	executor   BatchExecutor
	loader     BatchLoader
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     BatchLimits
	sleep      func(time.Duration)
}

// BatchOption customizes batch commands.
type BatchOption func(*BatchCommand)

// WithBatchCLIConfig overrides CLI configuration.
func WithBatchCLIConfig(cfg gcmd.CLIConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cliConfig = cfg
	}
}

// WithBatchCronConfig overrides cron configuration.
func WithBatchCronConfig(cfg gcmd.HandlerConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cronConfig = cfg
	}
}

// WithBatchLimits overrides batch execution limits.
func WithBatchLimits(limits BatchLimits) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.limits = limits
	}
}

// WithBatchExecutor runs items through executor instead of calling the
// facade directly, e.g. to hand them to a job runner.
func WithBatchExecutor(executor BatchExecutor) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.executor = executor
	}
}

// NewBatchCommand creates a batch export CLI/cron command.
func NewBatchCommand(facade export.Facade, loader BatchLoader, opts ...BatchOption) *BatchCommand {
	cmd := &BatchCommand{
		facade: facade,
		loader: loader,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"exports-batch"},
			Description: "Run tabular exports from a batch file",
			Group:       "exports",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "0 * * * *"},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// CronHandler executes the loader's batch.
func (c *BatchCommand) CronHandler() func() error {
	return func() error {
		_, err := c.run(context.Background(), "")
		return err
	}
}

// CronOptions returns cron configuration.
func (c *BatchCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *BatchCommand) CLIHandler() any {
	return &batchCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *BatchCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

// run exports every item and returns the completed results. Items are
// independent: a failed item is skipped and the first failure is returned
// after the batch finishes.
func (c *BatchCommand) run(ctx context.Context, from string) ([]export.ExportResult, error) {
	if c == nil {
		return nil, errors.New("batch command is nil", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	if c.facade == nil && c.executor == nil {
		return nil, facadeRequired()
	}

	items, err := c.loadItems(ctx, from)
	if err != nil {
		return nil, err
	}

	var (
		results  []export.ExportResult
		firstErr error
	)
	for i, item := range items {
		if c.limits.MaxItems > 0 && i >= c.limits.MaxItems {
			break
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if i > 0 && c.limits.MinInterval > 0 && c.sleep != nil {
			c.sleep(c.limits.MinInterval)
		}

		format := export.NormalizeFormat(item.Format)
		if format != export.FormatCSV && format != export.FormatXLSX {
			if firstErr == nil {
				firstErr = errors.New("batch items must be csv or xlsx exports", errors.CategoryValidation).
					WithTextCode("BATCH_FORMAT_UNSUPPORTED")
			}
			continue
		}
		result, err := c.execute(ctx, item)
		if err != nil {
			if firstErr == nil {
				firstErr = export.AsGoError(err)
			}
			continue
		}
		results = append(results, result)
	}
	return results, firstErr
}

func (c *BatchCommand) execute(ctx context.Context, item BatchItem) (export.ExportResult, error) {
	if c.executor != nil {
		return c.executor.ExecuteItem(ctx, item)
	}
	return c.facade.Export(ctx, item.Request())
}

func (c *BatchCommand) loadItems(ctx context.Context, from string) ([]BatchItem, error) {
	if strings.TrimSpace(from) != "" {
		return loadBatchFile(from)
	}
	if c.loader == nil {
		return nil, errors.New("batch loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	return c.loader(ctx)
}

type batchCLI struct {
	cmd  *BatchCommand
	From string `kong:"name='from',help='Path to a JSON batch export file'"`
}

func (c *batchCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("batch command is required", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	_, err := c.cmd.run(context.Background(), c.From)
	return err
}

func loadBatchFile(path string) ([]BatchItem, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read batch file failed").
			WithTextCode("BATCH_FILE_READ")
	}

	var items []BatchItem
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "batch file invalid JSON").
			WithTextCode("BATCH_FILE_INVALID")
	}
	return items, nil
}

// CLIHandler exposes journal pruning via CLI.
func (h *PruneJournalHandler) CLIHandler() any {
	return &pruneCLI{handler: h}
}

// CLIOptions describes journal pruning CLI metadata.
func (h *PruneJournalHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"exports-prune-journal"},
		Description: "Remove export journal entries past retention",
		Group:       "exports",
	}
}

type pruneCLI struct {
	handler *PruneJournalHandler
}

func (c *pruneCLI) Run() error {
	if c == nil || c.handler == nil {
		return errors.New("prune handler is required", errors.CategoryInternal).
			WithTextCode("PRUNE_HANDLER_REQUIRED")
	}
	return c.handler.Execute(context.Background(), PruneJournal{})
}
