package exportjob

import (
	"context"

	exportcmd "github.com/goliatone/go-docexport/command"
	"github.com/goliatone/go-docexport/export"
)

// NewBatchExecutor builds a BatchExecutor that runs each item as an export
// task in the calling goroutine.
func NewBatchExecutor(task *ExportTask, builder *MessageBuilder) exportcmd.BatchExecutor {
	return exportcmd.BatchExecutorFunc(func(ctx context.Context, item exportcmd.BatchItem) (export.ExportResult, error) {
		if task == nil {
			return export.ExportResult{}, export.NewError(export.KindInternal, "export task is nil", nil)
		}
		if builder == nil {
			return export.ExportResult{}, export.NewError(export.KindNotImpl, "message builder not configured", nil)
		}

		msg, _, err := builder.Build(item)
		if err != nil {
			return export.ExportResult{}, err
		}
		return task.Run(ctx, msg)
	})
}
