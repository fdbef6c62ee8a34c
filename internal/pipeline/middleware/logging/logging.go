// Package logging pads the log output of pipes under their title.
package logging

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/blacktop/fcs-keys/internal/colors"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/pipeline/middleware"
)

const defaultPadding = 3

// Log pretty prints the given action and its title.
func Log(title string, next middleware.Action) middleware.Action {
	return func(ctx *context.Context) error {
		defer func() {
			cli.Default.Padding = defaultPadding
		}()
		cli.Default.Padding = defaultPadding
		log.Info(colors.Bold().Sprint(title))
		cli.Default.Padding = defaultPadding * 2
		return next(ctx)
	}
}

// PadLog pretty prints the given action and its title one level deeper.
func PadLog(title string, next middleware.Action) middleware.Action {
	return func(ctx *context.Context) error {
		defer func() {
			cli.Default.Padding = defaultPadding * 2
		}()
		cli.Default.Padding = defaultPadding * 2
		log.Info(colors.Bold().Sprint(title))
		cli.Default.Padding = defaultPadding * 3
		return next(ctx)
	}
}
