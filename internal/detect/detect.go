// Package detect decides whether AppleDB changed since the last run.
package detect

import (
	"context"
	"fmt"
	"net/http"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/config"
	"github.com/blacktop/fcs-keys/internal/state"
)

// Decision is the outcome of a check.
type Decision struct {
	Proceed bool
	// Token is the current upstream commit, empty for Always.
	Token string
	// Previous is the token read from the marker.
	Previous string
}

// Detector gates a run.
type Detector interface {
	fmt.Stringer
	ShouldProceed(ctx context.Context) (Decision, error)
}

// Always proceeds unconditionally.
type Always struct{}

func (Always) String() string { return "always" }

func (Always) ShouldProceed(context.Context) (Decision, error) {
	return Decision{Proceed: true}, nil
}

// CommitSource returns the current head commit of AppleDB.
type CommitSource interface {
	fmt.Stringer
	Head(ctx context.Context) (string, error)
}

// Commit proceeds when the head commit differs from the stored marker.
type Commit struct {
	Source CommitSource
	Marker state.Marker
}

func (c Commit) String() string {
	return "commit (" + c.Source.String() + ")"
}

func (c Commit) ShouldProceed(ctx context.Context) (Decision, error) {
	head, err := c.Source.Head(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to get latest commit from %s: %w", c.Source, err)
	}
	prev, err := c.Marker.Read()
	if err != nil {
		return Decision{}, err
	}
	log.WithFields(log.Fields{
		"current":  head,
		"previous": prev,
	}).Debug("AppleDB commit")

	return Decision{
		Proceed:  prev != head,
		Token:    head,
		Previous: prev,
	}, nil
}

// New returns the detector selected by the configuration.
func New(c *config.Config, client *http.Client, marker state.Marker) (Detector, error) {
	if c.Detector.Strategy == "always" {
		return Always{}, nil
	}

	var src CommitSource
	switch c.Detector.Commit {
	case "rest":
		src = RESTSource{URL: c.Detector.CommitsURL, Token: c.APIToken, Client: client}
	case "graphql":
		src = GraphQLSource{
			Endpoint: c.Detector.GraphQLURL,
			Owner:    c.Detector.Owner,
			Name:     c.Detector.Repo,
			Token:    c.APIToken,
			Client:   client,
		}
	case "git":
		src = GitSource{URL: c.Detector.RepoURL, Branch: c.Detector.Branch}
	default:
		return nil, fmt.Errorf("unsupported commit source: %s", c.Detector.Commit)
	}
	return Commit{Source: src, Marker: marker}, nil
}
