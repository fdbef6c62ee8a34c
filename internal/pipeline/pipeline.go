// Package pipeline provides the ordered list of pipes an update run goes through.
package pipeline

import (
	stdctx "context"
	"fmt"
	"sync"

	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware/errhandler"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware/logging"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware/skip"
	"github.com/blacktop/fcs-keys/internal/pipeline/pipe/announce"
	"github.com/blacktop/fcs-keys/internal/pipeline/pipe/check"
	"github.com/blacktop/fcs-keys/internal/pipeline/pipe/enumerate"
	"github.com/blacktop/fcs-keys/internal/pipeline/pipe/keys"
	"github.com/blacktop/fcs-keys/internal/pipeline/pipe/keysjson"
	"github.com/blacktop/fcs-keys/internal/pipeline/pipe/preflight"
	"github.com/blacktop/fcs-keys/internal/pipeline/pipe/record"
	"github.com/caarlos0/ctrlc"
)

// Piper defines a pipe, which can be part of a pipeline (a series of pipes).
type Piper interface {
	fmt.Stringer

	// Run the pipe
	Run(ctx *context.Context) error
}

// Pipeline contains all pipes of an update run. The marker is written by
// record, so every pipe before it must succeed first.
// nolint: gochecknoglobals
var Pipeline = []Piper{
	check.Pipe{},
	enumerate.Pipe{},
	preflight.Pipe{},
	keys.Pipe{},
	keysjson.Pipe{},
	record.Pipe{},
	announce.Pipe{},
}

// Run runs the pipes in order, stopping at the first error.
func Run(ctx *context.Context, pipes []Piper) error {
	for _, pipe := range pipes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := skip.Maybe(
			pipe,
			logging.Log(
				pipe.String(),
				errhandler.Handle(pipe.Run),
			),
		)(ctx); err != nil {
			return fmt.Errorf("%s: %w", pipe.String(), err)
		}
	}
	return nil
}

// Execute runs the pipes under c. On SIGINT, SIGTERM or an expired ctx the
// run is cancelled, and Execute only returns once the pipes have stopped so
// in-flight tools are killed and scratch directories removed.
func Execute(ctx *context.Context, cancel stdctx.CancelFunc, c *ctrlc.Ctrlc, pipes []Piper) error {
	var wg sync.WaitGroup
	wg.Add(1)
	err := c.Run(ctx, func() error {
		defer wg.Done()
		return Run(ctx, pipes)
	})
	cancel()
	wg.Wait()
	return err
}
