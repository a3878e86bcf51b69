package action

import (
	"context"

	"github.com/duskline/irkit/internal/sink"
)

// StoreParams configures a file-collection step.
type StoreParams struct {
	Patterns    string
	Sink        *sink.Processor
	MaxSizeByte int64
}

// RunStore expands the newline-separated glob patterns in Patterns and
// stores every matching regular file into the evidence sink, applying
// MaxSizeByte as this step's own size limit (0 defers to the sink's
// default).
func RunStore(_ context.Context, p StoreParams, opts Options) Result {
	files, err := sink.ExpandPatterns(p.Patterns)
	if err != nil {
		return errorResult(opts, -1, err.Error())
	}

	var lastErr error
	stored := 0
	for _, f := range files {
		storeOpts := sink.StoreOptions{MaxSizeOverride: p.MaxSizeByte}
		if _, wasStored, err := p.Sink.Store(f, storeOpts); err != nil {
			lastErr = err
		} else if wasStored {
			stored++
		}
	}

	if lastErr != nil {
		return errorResult(opts, -1, lastErr.Error())
	}
	return successResult(opts, 0)
}
