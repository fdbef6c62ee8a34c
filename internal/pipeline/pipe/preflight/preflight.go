// Package preflight contains the pipe checking the external tool version.
package preflight

import (
	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/context"
)

// Pipe that verifies the ipsw binary.
type Pipe struct{}

func (Pipe) String() string { return "checking ipsw" }

func (Pipe) Skip(ctx *context.Context) bool {
	return ctx.UpToDate || ctx.DryRun || ctx.Config.Tool.MinVersion == "" || len(ctx.Builds) == 0
}

func (Pipe) Run(ctx *context.Context) error {
	v, err := ctx.Ipsw().CheckVersion(ctx, ctx.Config.Tool.MinVersion)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"path":    ctx.Config.Tool.Path,
		"version": v.String(),
	}).Info("ipsw ok")
	return nil
}
