package appledb

import (
	"fmt"
	"net/http"

	"github.com/blacktop/fcs-keys/internal/config"
)

// NewSource returns the build source selected by the configuration.
func NewSource(c *config.Config, client *http.Client, tool ToolRunner) (Source, error) {
	switch c.Source.Type {
	case "index":
		return IndexSource{URL: c.Source.IndexURL, Client: client}, nil
	case "tree":
		src := TreeSource{Dir: c.Source.Tree.Dir, OSes: c.OSes}
		switch c.Source.Tree.Materialize {
		case "git":
			src.Materializer = GitMaterializer{URL: c.Source.Tree.RepoURL, Branch: c.Source.Tree.Branch}
		case "tool":
			src.Materializer = ToolMaterializer{Tool: tool, Args: c.Source.Tree.Args}
		case "none":
		default:
			return nil, fmt.Errorf("unsupported materializer: %s", c.Source.Tree.Materialize)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", c.Source.Type)
	}
}

// NewEnumerator returns an Enumerator over src using the configured filter.
func NewEnumerator(c *config.Config, src Source) Enumerator {
	return Enumerator{
		Source: src,
		Filter: Filter{OSes: c.OSes, MinMajor: c.MinMajor},
		Latest: c.Latest,
	}
}
