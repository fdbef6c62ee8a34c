// Package appledb enumerates Apple OS builds from AppleDB.
package appledb

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/apex/log"
)

var (
	leadingDigits = regexp.MustCompile(`^\d+`)
	// 22A3354, 22A5282m
	buildID = regexp.MustCompile(`^(\d+)([A-Z])(\d+)([a-z]?)$`)
)

// Build is one OS build, identified by (OS, ID).
type Build struct {
	OS string `json:"os"`
	ID string `json:"build"`
}

func (b Build) String() string {
	return b.OS + ";" + b.ID
}

// Major returns the leading-digits integer of the build ID.
func (b Build) Major() (int, bool) {
	m := leadingDigits.FindString(b.ID)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Valid reports whether the build can be used as a path component.
func (b Build) Valid() bool {
	for _, s := range []string{b.OS, b.ID} {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.HasPrefix(s, ".") {
			return false
		}
	}
	return true
}

// ParseEntry splits an "OS;build" index entry on its first ';'.
func ParseEntry(s string) (Build, bool) {
	osName, id, ok := strings.Cut(s, ";")
	if !ok {
		return Build{}, false
	}
	return Build{OS: osName, ID: id}, true
}

// Compare orders builds by OS then ID.
func Compare(a, b Build) int {
	if c := cmp.Compare(a.OS, b.OS); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Filter keeps builds of the supported OSes at or above MinMajor.
type Filter struct {
	OSes     []string
	MinMajor int
}

// Match reports whether b passes the filter.
func (f Filter) Match(b Build) bool {
	if !slices.Contains(f.OSes, b.OS) {
		return false
	}
	major, ok := b.Major()
	if !ok {
		log.WithField("build", b.String()).Debug("skipping build with unparsable version")
		return false
	}
	return major >= f.MinMajor
}

// Apply returns the matching builds sorted by (OS, ID) without duplicates.
func (f Filter) Apply(builds []Build) []Build {
	out := make([]Build, 0, len(builds))
	for _, b := range builds {
		if !f.Match(b) {
			continue
		}
		if !b.Valid() {
			log.WithField("build", b.String()).Debug("skipping build with unsafe identifier")
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, Compare)
	return slices.Compact(out)
}

// Beta reports whether the ID carries Apple's lowercase beta suffix.
func (b Build) Beta() bool {
	m := buildID.FindStringSubmatch(b.ID)
	return m != nil && m[4] != ""
}

// CompareID orders build IDs numerically by major, train letter, build
// number and suffix. IDs that do not look like Apple builds sort as strings
// before those that do.
func CompareID(a, b string) int {
	ma, mb := buildID.FindStringSubmatch(a), buildID.FindStringSubmatch(b)
	switch {
	case ma == nil && mb == nil:
		return cmp.Compare(a, b)
	case ma == nil:
		return -1
	case mb == nil:
		return 1
	}
	return cmp.Or(
		cmp.Compare(atoi(ma[1]), atoi(mb[1])),
		cmp.Compare(ma[2], mb[2]),
		cmp.Compare(atoi(ma[3]), atoi(mb[3])),
		cmp.Compare(ma[4], mb[4]),
	)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Latest keeps the newest build per OS. Release builds win over betas, a
// beta is only kept for an OS without any release build.
func Latest(builds []Build) []Build {
	var out []Build
	idx := make(map[string]int)
	for _, b := range builds {
		i, ok := idx[b.OS]
		if !ok {
			idx[b.OS] = len(out)
			out = append(out, b)
			continue
		}
		cur := out[i]
		switch {
		case cur.Beta() != b.Beta():
			if cur.Beta() {
				out[i] = b
			}
		case CompareID(b.ID, cur.ID) > 0:
			out[i] = b
		}
	}
	return out
}

// Source produces candidate builds.
type Source interface {
	fmt.Stringer
	Builds(ctx context.Context) ([]Build, error)
}

// Enumerator lists the qualifying builds of a Source.
type Enumerator struct {
	Source Source
	Filter Filter
	Latest bool
}

// List returns the filtered builds sorted by (OS, ID).
func (e Enumerator) List(ctx context.Context) ([]Build, error) {
	builds, err := e.Source.Builds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds from %s: %w", e.Source, err)
	}
	out := e.Filter.Apply(builds)
	log.WithFields(log.Fields{
		"source":    e.Source.String(),
		"candidate": len(builds),
		"qualified": len(out),
	}).Debug("enumerated builds")
	if e.Latest {
		out = Latest(out)
	}
	return out, nil
}
