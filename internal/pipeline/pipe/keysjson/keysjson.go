// Package keysjson contains the pipe refreshing the fcs-keys.json databases.
package keysjson

import (
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/pipe"
	"github.com/blacktop/fcs-keys/internal/utils"
)

// Pipe that runs `ipsw dl appledb --fcs-keys-json` per configured OS.
type Pipe struct{}

func (Pipe) String() string { return "updating fcs-keys.json" }

func (Pipe) Skip(ctx *context.Context) bool {
	return ctx.UpToDate || ctx.DryRun || ctx.Aborted || len(ctx.Config.Tool.JSONOSes) == 0
}

func (Pipe) Run(ctx *context.Context) error {
	ipsw := ctx.Ipsw()
	var memo pipe.SkipMemento
	for _, osName := range ctx.Config.Tool.JSONOSes {
		if err := ipsw.FetchKeysJSON(ctx, osName, ctx.Config.KeysDir); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			utils.Indent(log.WithError(err).WithField("os", osName).Error, 3)("failed to update fcs-keys.json")
			memo.Remember(fmt.Errorf("%s: %w", osName, err))
			continue
		}
		utils.Indent(log.WithField("os", osName).Info, 3)("updated fcs-keys.json")
	}
	return memo.Evaluate()
}
