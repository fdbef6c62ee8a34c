// Package check contains the pipe deciding whether AppleDB changed.
package check

import (
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/detect"
)

// Pipe that checks AppleDB for changes.
type Pipe struct{}

func (Pipe) String() string { return "checking for AppleDB updates" }

func (Pipe) Run(ctx *context.Context) error {
	d, err := detect.New(ctx.Config, ctx.HTTP, ctx.Marker)
	if err != nil {
		return err
	}
	dec, err := d.ShouldProceed(ctx)
	if err != nil {
		return fmt.Errorf("%s detector: %w", d, err)
	}
	ctx.Decision = dec
	ctx.Summary.Token = dec.Token

	if !dec.Proceed {
		ctx.UpToDate = true
		ctx.Summary.UpToDate = true
		log.WithField("commit", dec.Token).Info("no new updates")
		return nil
	}
	if dec.Token != "" {
		log.WithFields(log.Fields{
			"commit":   dec.Token,
			"previous": dec.Previous,
		}).Info("AppleDB changed")
	}
	return nil
}
