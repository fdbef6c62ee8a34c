// Package middleware define middlewares for pipes.
package middleware

import "github.com/blacktop/fcs-keys/internal/context"

// Action is a function that takes a context and returns an error.
// It is used on pipes and their sub-steps, although they are not aware of
// this generalization.
type Action func(ctx *context.Context) error
