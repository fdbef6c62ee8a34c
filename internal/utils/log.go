// Package utils has small helpers shared by the commands.
package utils

import "github.com/apex/log/handlers/cli"

const normalPadding = 3

// Indent returns a log func that prints at the given padding level and
// then restores the previous padding.
// It must not be used from concurrent goroutines.
func Indent(f func(s string), level int) func(string) {
	return func(s string) {
		prev := cli.Default.Padding
		cli.Default.Padding = normalPadding * level
		f(s)
		cli.Default.Padding = prev
	}
}
