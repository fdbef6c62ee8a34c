package tool

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/hashicorp/go-version"
)

var versionRE = regexp.MustCompile(`v?(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?)`)

// Ipsw wraps the ipsw CLI.
type Ipsw struct {
	Path   string
	Args   []string
	Runner Runner
}

// NewIpsw returns an Ipsw using path (default "ipsw").
func NewIpsw(path string, runner Runner, extra ...string) *Ipsw {
	if path == "" {
		path = "ipsw"
	}
	return &Ipsw{Path: path, Args: extra, Runner: runner}
}

func (i *Ipsw) run(ctx context.Context, c Command) error {
	c.Name = i.Path
	c.Args = append(c.Args, i.Args...)
	return i.Runner.Run(ctx, c)
}

// FetchKeys downloads the FCS keys of one build into output.
func (i *Ipsw) FetchKeys(ctx context.Context, osName, build, output string) error {
	return i.run(ctx, Command{Args: []string{
		"dl", "appledb",
		"--os", osName,
		"--build", build,
		"--fcs-keys",
		"--output", output,
		"--confirm",
	}})
}

// FetchKeysJSON writes the fcs-keys.json database of the latest osName release into output.
func (i *Ipsw) FetchKeysJSON(ctx context.Context, osName, output string) error {
	return i.run(ctx, Command{Args: []string{
		"dl", "appledb",
		"--os", osName,
		"--fcs-keys-json",
		"--latest",
		"--output", output,
		"--confirm",
	}})
}

// Exec runs the tool with arbitrary arguments in dir.
func (i *Ipsw) Exec(ctx context.Context, dir string, args ...string) error {
	return i.Runner.Run(ctx, Command{Name: i.Path, Args: args, Dir: dir})
}

// Version returns the version reported by `ipsw version`.
func (i *Ipsw) Version(ctx context.Context) (*version.Version, error) {
	var out bytes.Buffer
	if err := i.Runner.Run(ctx, Command{Name: i.Path, Args: []string{"version"}, Stdout: &out}); err != nil {
		return nil, err
	}
	return ParseVersion(out.String())
}

// ParseVersion extracts the first semantic version found in s.
func ParseVersion(s string) (*version.Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("no version found in %q", s)
	}
	return version.NewVersion(m[1])
}

// CheckVersion fails when the installed tool is older than min.
func (i *Ipsw) CheckVersion(ctx context.Context, min string) (*version.Version, error) {
	want, err := version.NewVersion(min)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum version %q: %w", min, err)
	}
	got, err := i.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s version: %w", i.Path, err)
	}
	if got.LessThan(want) {
		return got, fmt.Errorf("%s %s is older than the required %s", i.Path, got, want)
	}
	return got, nil
}
