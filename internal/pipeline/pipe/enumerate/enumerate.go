// Package enumerate contains the pipe listing the qualifying builds.
package enumerate

import (
	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/blacktop/fcs-keys/internal/context"
)

// Pipe that lists builds.
type Pipe struct{}

func (Pipe) String() string                 { return "listing builds" }
func (Pipe) Skip(ctx *context.Context) bool { return ctx.UpToDate }

func (Pipe) Run(ctx *context.Context) error {
	src, err := appledb.NewSource(ctx.Config, ctx.HTTP, ctx.Ipsw())
	if err != nil {
		return err
	}
	builds, err := appledb.NewEnumerator(ctx.Config, src).List(ctx)
	if err != nil {
		return err
	}
	ctx.Builds = builds
	log.WithFields(log.Fields{
		"source": src.String(),
		"oses":   ctx.Config.OSes,
		"min":    ctx.Config.MinMajor,
	}).Infof("found %d builds", len(builds))
	return nil
}
