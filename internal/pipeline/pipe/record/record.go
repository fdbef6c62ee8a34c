// Package record contains the pipe persisting the outcome of a run.
package record

import (
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware/errhandler"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware/logging"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware/skip"
)

// Recorder should be implemented by pipes that persist run results.
type Recorder interface {
	fmt.Stringer

	// Record persists the run.
	Record(ctx *context.Context) error
}

// nolint: gochecknoglobals
var recorders = []Recorder{
	marker{},
	summary{},
	metrics{},
}

// Pipe that records the run.
type Pipe struct{}

func (Pipe) String() string                 { return "recording run" }
func (Pipe) Skip(ctx *context.Context) bool { return ctx.DryRun }

func (Pipe) Run(ctx *context.Context) error {
	ctx.Summary.Finished = time.Now()
	for _, r := range recorders {
		if err := skip.Maybe(
			r,
			logging.PadLog(
				r.String(),
				errhandler.Handle(r.Record),
			),
		)(ctx); err != nil {
			return fmt.Errorf("%s: %w", r.String(), err)
		}
	}
	return nil
}

type marker struct{}

func (marker) String() string { return "state marker" }

func (marker) Skip(ctx *context.Context) bool {
	return ctx.UpToDate || ctx.Aborted || ctx.Decision.Token == ""
}

func (marker) Record(ctx *context.Context) error {
	if err := ctx.Marker.Write(ctx.Decision.Token); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"path":   ctx.Config.StateFile,
		"commit": ctx.Decision.Token,
	}).Info("saved")
	return nil
}

type summary struct{}

func (summary) String() string                 { return "summary" }
func (summary) Skip(ctx *context.Context) bool { return ctx.Config.Report.Summary == "" }

func (summary) Record(ctx *context.Context) error {
	if err := ctx.Summary.WriteFile(ctx.Config.Report.Summary); err != nil {
		return err
	}
	log.WithField("path", ctx.Config.Report.Summary).Info("saved")
	return nil
}
