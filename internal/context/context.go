// Package context provides the fcs-keys context which is passed through the
// pipeline.
//
// The context extends the standard library context and adds the state of a
// run, so pipes can use data gathered by previous pipes without knowing each
// other.
package context

import (
	stdctx "context"
	"net/http"
	"time"

	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/blacktop/fcs-keys/internal/config"
	"github.com/blacktop/fcs-keys/internal/detect"
	"github.com/blacktop/fcs-keys/internal/download"
	"github.com/blacktop/fcs-keys/internal/fetch"
	"github.com/blacktop/fcs-keys/internal/state"
	"github.com/blacktop/fcs-keys/internal/store"
	"github.com/blacktop/fcs-keys/internal/tool"
	"github.com/google/uuid"
)

// Context carries along some data through the pipes.
type Context struct {
	stdctx.Context
	Config *config.Config
	RunID  string
	Date   time.Time

	DryRun bool
	// UpToDate is set when AppleDB did not change since the last run.
	UpToDate bool
	// Aborted is set when the user declined to fetch.
	Aborted bool

	Decision detect.Decision
	Builds   []appledb.Build
	Summary  *fetch.Summary

	Store  store.Store
	Marker state.Marker
	Runner tool.Runner
	HTTP   *http.Client

	// Confirm is asked before fetching more than one build, when set.
	Confirm func(pending int) (bool, error)
}

// New context.
func New(cfg *config.Config) *Context {
	return Wrap(stdctx.Background(), cfg)
}

// NewWithTimeout new context with the given timeout. A zero timeout
// means no deadline.
func NewWithTimeout(cfg *config.Config, timeout time.Duration) (*Context, stdctx.CancelFunc) {
	if timeout <= 0 {
		ctx, cancel := stdctx.WithCancel(stdctx.Background())
		return Wrap(ctx, cfg), cancel
	}
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), timeout)
	return Wrap(ctx, cfg), cancel
}

// Wrap wraps an existing context.
func Wrap(ctx stdctx.Context, cfg *config.Config) *Context {
	id := uuid.New().String()
	return &Context{
		Context: ctx,
		Config:  cfg,
		RunID:   id,
		Date:    time.Now(),
		Summary: fetch.NewSummary(id),
		Marker:  state.NewFile(cfg.StateFile),
		Runner: tool.Exec{
			Timeout:     cfg.Tool.Timeout,
			Passthrough: cfg.Tool.Verbose,
		},
		HTTP: download.NewClient(cfg.Proxy, cfg.Insecure, cfg.HTTPTimeout),
	}
}

// Ipsw returns the external tool wrapper.
func (ctx *Context) Ipsw() *tool.Ipsw {
	return tool.NewIpsw(ctx.Config.Tool.Path, ctx.Runner, ctx.Config.Tool.Args...)
}
