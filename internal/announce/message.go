package announce

import (
	"fmt"
	"strings"

	"github.com/blacktop/fcs-keys/internal/fetch"
)

// Message describes the builds that got new keys.
func Message(results []fetch.Result) string {
	var sb strings.Builder
	sb.WriteString("New FCS keys:\n")
	for _, r := range results {
		if r.Stored == 0 {
			continue
		}
		noun := "keys"
		if r.Stored == 1 {
			noun = "key"
		}
		fmt.Fprintf(&sb, "- %s %s (%d %s)\n", r.Build.OS, r.Build.ID, r.Stored, noun)
	}
	return strings.TrimSpace(sb.String())
}
