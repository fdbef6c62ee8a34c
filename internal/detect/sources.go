package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/blacktop/fcs-keys/internal/download"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// RESTSource reads the head commit from the GitHub commits REST endpoint.
type RESTSource struct {
	URL    string
	Token  string
	Client *http.Client
}

func (s RESTSource) String() string { return "rest" }

func (s RESTSource) Head(ctx context.Context) (string, error) {
	body, err := download.Get(ctx, s.Client, s.URL, download.GitHubHeader(s.Token))
	if err != nil {
		return "", err
	}
	var commit struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(body, &commit); err != nil {
		return "", fmt.Errorf("failed to decode commit: %w", err)
	}
	if commit.SHA == "" {
		return "", fmt.Errorf("commit response has no sha")
	}
	return commit.SHA, nil
}

// GraphQLSource reads the default branch head through the GitHub GraphQL API.
type GraphQLSource struct {
	Endpoint string
	Owner    string
	Name     string
	Token    string
	Client   *http.Client
}

func (s GraphQLSource) String() string { return "graphql" }

func (s GraphQLSource) Head(ctx context.Context) (string, error) {
	base := s.Client
	if base == nil {
		base = http.DefaultClient
	}
	httpClient := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, base),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.Token}),
	)
	client := githubv4.NewEnterpriseClient(s.Endpoint, httpClient)

	var q struct {
		Repository struct {
			DefaultBranchRef struct {
				Target struct {
					Oid githubv4.GitObjectID
				}
			}
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	variables := map[string]any{
		"owner": githubv4.String(s.Owner),
		"name":  githubv4.String(s.Name),
	}
	if err := client.Query(ctx, &q, variables); err != nil {
		return "", err
	}
	oid := string(q.Repository.DefaultBranchRef.Target.Oid)
	if oid == "" {
		return "", fmt.Errorf("repository %s/%s has no default branch", s.Owner, s.Name)
	}
	return oid, nil
}

// GitSource lists the remote refs over the git protocol.
type GitSource struct {
	URL    string
	Branch string
}

func (s GitSource) String() string { return "git" }

func (s GitSource) Head(ctx context.Context) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{s.URL},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to list remote refs: %w", err)
	}
	want := plumbing.NewBranchReferenceName(s.Branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return ref.Hash().String(), nil
		}
	}
	return "", fmt.Errorf("branch %s not found on %s", s.Branch, s.URL)
}
