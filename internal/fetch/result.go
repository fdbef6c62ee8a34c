package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/dustin/go-humanize"
)

// Status is the outcome of one build.
type Status string

const (
	StatusFetched Status = "fetched"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	// StatusPending is used by dry runs.
	StatusPending Status = "pending"
)

// Result is the outcome of fetching one build.
type Result struct {
	Build    appledb.Build `json:"build"`
	Status   Status        `json:"status"`
	Found    int           `json:"found,omitempty"`
	Stored   int           `json:"stored,omitempty"`
	Bytes    int64         `json:"bytes,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Err      error         `json:"-"`
}

func (r *Result) fail(err error) {
	r.Status = StatusFailed
	r.Err = err
	r.Reason = err.Error()
}

// Counts tallies results by status.
type Counts struct {
	Fetched int   `json:"fetched"`
	Skipped int   `json:"skipped"`
	Failed  int   `json:"failed"`
	Pending int   `json:"pending,omitempty"`
	Stored  int   `json:"stored"`
	Bytes   int64 `json:"bytes"`
}

func (c Counts) String() string {
	s := fmt.Sprintf("fetched %d (%d new keys, %s), skipped %d, failed %d",
		c.Fetched, c.Stored, humanize.Bytes(uint64(c.Bytes)), c.Skipped, c.Failed)
	if c.Pending > 0 {
		s += fmt.Sprintf(", pending %d", c.Pending)
	}
	return s
}

// Summary collects the results of a run. It is safe for concurrent use.
type Summary struct {
	RunID    string    `json:"run_id,omitempty"`
	Token    string    `json:"token,omitempty"`
	UpToDate bool      `json:"up_to_date"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	mu      sync.Mutex
	results []Result
}

// NewSummary returns an empty summary.
func NewSummary(runID string) *Summary {
	return &Summary{RunID: runID, Started: time.Now()}
}

// Add records a result.
func (s *Summary) Add(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

// Results returns the results sorted by build.
func (s *Summary) Results() []Result {
	s.mu.Lock()
	out := slices.Clone(s.results)
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b Result) int { return appledb.Compare(a.Build, b.Build) })
	return out
}

// Filter returns the results with the given status.
func (s *Summary) Filter(status Status) []Result {
	var out []Result
	for _, r := range s.Results() {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Counts tallies the results.
func (s *Summary) Counts() Counts {
	var c Counts
	for _, r := range s.Results() {
		switch r.Status {
		case StatusFetched:
			c.Fetched++
		case StatusSkipped:
			c.Skipped++
		case StatusFailed:
			c.Failed++
		case StatusPending:
			c.Pending++
		}
		c.Stored += r.Stored
		c.Bytes += r.Bytes
	}
	return c
}

func (s *Summary) MarshalJSON() ([]byte, error) {
	type summary struct {
		RunID    string    `json:"run_id,omitempty"`
		Token    string    `json:"token,omitempty"`
		UpToDate bool      `json:"up_to_date"`
		Started  time.Time `json:"started"`
		Finished time.Time `json:"finished"`
		Counts   Counts    `json:"counts"`
		Results  []Result  `json:"results"`
	}
	results := s.Results()
	if results == nil {
		results = []Result{}
	}
	return json.Marshal(summary{
		RunID:    s.RunID,
		Token:    s.Token,
		UpToDate: s.UpToDate,
		Started:  s.Started,
		Finished: s.Finished,
		Counts:   s.Counts(),
		Results:  results,
	})
}

// WriteFile writes the summary as indented JSON.
func (s *Summary) WriteFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Line returns a one line description of a result.
func (r Result) Line() string {
	var sb strings.Builder
	sb.WriteString(r.Build.OS + " " + r.Build.ID + ": " + string(r.Status))
	switch r.Status {
	case StatusFetched:
		fmt.Fprintf(&sb, " (%d keys, %d new)", r.Found, r.Stored)
	case StatusFailed:
		sb.WriteString(" (" + r.Reason + ")")
	}
	return sb.String()
}
