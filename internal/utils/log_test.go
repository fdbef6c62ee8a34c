package utils

import (
	"testing"

	"github.com/apex/log/handlers/cli"
)

func TestIndent(t *testing.T) {
	cli.Default.Padding = 6
	defer func() { cli.Default.Padding = normalPadding }()

	var during int
	Indent(func(s string) {
		during = cli.Default.Padding
	}, 3)("hello")

	if during != 9 {
		t.Errorf("padding while logging = %d, want 9", during)
	}
	if cli.Default.Padding != 6 {
		t.Errorf("padding after logging = %d, want 6", cli.Default.Padding)
	}
}
