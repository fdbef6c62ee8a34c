// Package announce contains the announcing pipe.
package announce

import (
	"fmt"

	"github.com/blacktop/fcs-keys/internal/announce"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/fetch"
	"github.com/blacktop/fcs-keys/internal/pipe"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware/errhandler"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware/logging"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware/skip"
)

// Announcer should be implemented by pipes that want to announce new keys.
type Announcer interface {
	fmt.Stringer
	Announce(ctx *context.Context) error
}

// nolint: gochecknoglobals
var announcers = []Announcer{
	discord{},
	mastodon{},
}

// Pipe that announces new keys.
type Pipe struct{}

func (Pipe) String() string { return "announcing" }

func (Pipe) Skip(ctx *context.Context) bool {
	a := ctx.Config.Announce
	return ctx.DryRun || ctx.UpToDate || (!a.HasDiscord() && !a.HasMastodon())
}

// Run the pipe.
func (Pipe) Run(ctx *context.Context) error {
	if len(newKeys(ctx)) == 0 {
		return pipe.Skip("no new keys")
	}
	for _, announcer := range announcers {
		if err := skip.Maybe(
			announcer,
			logging.PadLog(
				announcer.String(),
				errhandler.Handle(announcer.Announce),
			),
		)(ctx); err != nil {
			return fmt.Errorf("%s: failed to announce: %w", announcer.String(), err)
		}
	}
	return nil
}

func newKeys(ctx *context.Context) []fetch.Result {
	var out []fetch.Result
	for _, r := range ctx.Summary.Filter(fetch.StatusFetched) {
		if r.Stored > 0 {
			out = append(out, r)
		}
	}
	return out
}

type discord struct{}

func (discord) String() string                 { return "discord" }
func (discord) Skip(ctx *context.Context) bool { return !ctx.Config.Announce.HasDiscord() }

// Announce failures do not fail the run, the marker is already saved.
func (discord) Announce(ctx *context.Context) error {
	if err := announce.Discord(ctx, ctx.HTTP, announce.Message(newKeys(ctx)), ctx.Config.Announce.Discord); err != nil {
		return pipe.Skip(err.Error())
	}
	return nil
}

type mastodon struct{}

func (mastodon) String() string                 { return "mastodon" }
func (mastodon) Skip(ctx *context.Context) bool { return !ctx.Config.Announce.HasMastodon() }

func (mastodon) Announce(ctx *context.Context) error {
	if err := announce.Mastodon(ctx, announce.Message(newKeys(ctx)), ctx.Config.Announce.Mastodon); err != nil {
		return pipe.Skip(err.Error())
	}
	return nil
}
