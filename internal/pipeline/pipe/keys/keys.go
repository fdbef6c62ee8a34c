// Package keys contains the pipe fetching the FCS keys of every build.
package keys

import (
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/fetch"
	"github.com/blacktop/fcs-keys/internal/pipe"
	"github.com/blacktop/fcs-keys/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Pipe that fetches keys.
type Pipe struct{}

func (Pipe) String() string                 { return "fetching FCS keys" }
func (Pipe) Skip(ctx *context.Context) bool { return ctx.UpToDate }

func (Pipe) Run(ctx *context.Context) error {
	if ctx.Store == nil {
		return fmt.Errorf("no key store configured")
	}
	if len(ctx.Builds) == 0 {
		return pipe.Skip("no qualifying builds")
	}

	if ctx.Confirm != nil && !ctx.DryRun {
		pending, err := countPending(ctx, ctx.Builds)
		if err != nil {
			return err
		}
		if pending > 1 {
			ok, err := ctx.Confirm(pending)
			if err != nil {
				return err
			}
			if !ok {
				ctx.Aborted = true
				return pipe.Skip("cancelled by user")
			}
		}
	}

	fetcher := &fetch.Fetcher{
		Store:      ctx.Store,
		Tool:       ctx.Ipsw(),
		KeyExt:     ctx.Config.Tool.KeyExt,
		Digest:     ctx.Config.Store.Digest,
		ScratchDir: ctx.Config.ScratchDir,
		DryRun:     ctx.DryRun,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ctx.Config.Parallel)
	for _, b := range ctx.Builds {
		g.Go(func() error {
			res, err := fetcher.Fetch(gctx, b)
			if err != nil {
				return err
			}
			ctx.Summary.Add(res)
			report(res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info(ctx.Summary.Counts().String())
	for _, res := range ctx.Summary.Filter(fetch.StatusFailed) {
		utils.Indent(log.WithField("reason", res.Reason).Warn, 3)(res.Build.String())
	}
	return nil
}

func countPending(ctx *context.Context, builds []appledb.Build) (int, error) {
	var n int
	for _, b := range builds {
		ok, err := ctx.Store.Exists(ctx, b)
		if err != nil {
			return 0, err
		}
		if !ok {
			n++
		}
	}
	return n, nil
}

func report(res fetch.Result) {
	l := log.WithFields(log.Fields{
		"os":    res.Build.OS,
		"build": res.Build.ID,
	})
	switch res.Status {
	case fetch.StatusFetched:
		l.WithFields(log.Fields{
			"keys": res.Found,
			"new":  res.Stored,
			"took": res.Duration.Round(time.Millisecond).String(),
		}).Info("fetched")
	case fetch.StatusFailed:
		l.WithError(res.Err).Error("failed to fetch keys")
	case fetch.StatusPending:
		l.Info("would fetch")
	default:
		l.Debug("already cached")
	}
}
