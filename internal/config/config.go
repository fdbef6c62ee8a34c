// Package config is used to load the configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/spf13/viper"
)

const (
	// DefaultIndexURL is the AppleDB build index.
	DefaultIndexURL = "https://api.appledb.dev/ios/index.json"
	// DefaultCommitsURL is the GitHub REST endpoint for the AppleDB head commit.
	DefaultCommitsURL = "https://api.github.com/repos/littlebyteorg/appledb/commits/main"
	// DefaultGraphQLURL is the GitHub GraphQL endpoint.
	DefaultGraphQLURL = "https://api.github.com/graphql"
	// DefaultRepoURL is the AppleDB git repository.
	DefaultRepoURL = "https://github.com/littlebyteorg/appledb.git"
)

// Source selects where candidate builds come from.
type Source struct {
	Type     string `mapstructure:"type" yaml:"type" json:"type" jsonschema:"enum=index,enum=tree"`
	IndexURL string `mapstructure:"index_url" yaml:"index_url" json:"index_url,omitempty"`
	Tree     Tree   `mapstructure:"tree" yaml:"tree" json:"tree"`
}

// Tree configures the osFiles tree source.
type Tree struct {
	Dir         string   `mapstructure:"dir" yaml:"dir" json:"dir,omitempty"`
	Materialize string   `mapstructure:"materialize" yaml:"materialize" json:"materialize" jsonschema:"enum=git,enum=tool,enum=none"`
	RepoURL     string   `mapstructure:"repo_url" yaml:"repo_url" json:"repo_url,omitempty"`
	Branch      string   `mapstructure:"branch" yaml:"branch" json:"branch,omitempty"`
	Args        []string `mapstructure:"args" yaml:"args,omitempty" json:"args,omitempty"`
}

// Detector configures change detection.
type Detector struct {
	Strategy   string `mapstructure:"strategy" yaml:"strategy" json:"strategy" jsonschema:"enum=always,enum=commit"`
	Commit     string `mapstructure:"commit" yaml:"commit" json:"commit" jsonschema:"enum=rest,enum=graphql,enum=git"`
	CommitsURL string `mapstructure:"commits_url" yaml:"commits_url" json:"commits_url,omitempty"`
	GraphQLURL string `mapstructure:"graphql_url" yaml:"graphql_url" json:"graphql_url,omitempty"`
	Owner      string `mapstructure:"owner" yaml:"owner" json:"owner,omitempty"`
	Repo       string `mapstructure:"repo" yaml:"repo" json:"repo,omitempty"`
	RepoURL    string `mapstructure:"repo_url" yaml:"repo_url" json:"repo_url,omitempty"`
	Branch     string `mapstructure:"branch" yaml:"branch" json:"branch,omitempty"`
}

// Tool configures the external ipsw binary.
type Tool struct {
	Path       string        `mapstructure:"path" yaml:"path" json:"path"`
	Args       []string      `mapstructure:"args" yaml:"args,omitempty" json:"args,omitempty"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout" jsonschema:"type=string,example=30m"`
	MinVersion string        `mapstructure:"min_version" yaml:"min_version,omitempty" json:"min_version,omitempty"`
	KeyExt     string        `mapstructure:"key_ext" yaml:"key_ext" json:"key_ext"`
	JSONOSes   []string      `mapstructure:"json_oses" yaml:"json_oses,omitempty" json:"json_oses,omitempty"`
	Verbose    bool          `mapstructure:"verbose" yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// Store configures the key store.
type Store struct {
	Type       string `mapstructure:"type" yaml:"type" json:"type" jsonschema:"enum=local,enum=sqlite,enum=postgres,enum=memory"`
	Naming     string `mapstructure:"naming" yaml:"naming" json:"naming" jsonschema:"enum=hash,enum=original"`
	Digest     string `mapstructure:"digest" yaml:"digest" json:"digest" jsonschema:"enum=md5,enum=sha256"`
	Marker     string `mapstructure:"marker" yaml:"marker" json:"marker" jsonschema:"enum=file,enum=dir"`
	Path       string `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
	DSN        string `mapstructure:"dsn" yaml:"dsn,omitempty" json:"dsn,omitempty"`
	MemorySize int    `mapstructure:"memory_size" yaml:"memory_size,omitempty" json:"memory_size,omitempty"`
}

// Report configures the run outputs.
type Report struct {
	Summary string `mapstructure:"summary" yaml:"summary,omitempty" json:"summary,omitempty"`
	Metrics string `mapstructure:"metrics" yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// Discord webhook settings.
type Discord struct {
	WebhookID    string `mapstructure:"webhook_id" yaml:"webhook_id,omitempty" json:"webhook_id,omitempty"`
	WebhookToken string `mapstructure:"webhook_token" yaml:"webhook_token,omitempty" json:"webhook_token,omitempty"`
	Author       string `mapstructure:"author" yaml:"author,omitempty" json:"author,omitempty"`
	IconURL      string `mapstructure:"icon_url" yaml:"icon_url,omitempty" json:"icon_url,omitempty"`
	Color        int    `mapstructure:"color" yaml:"color,omitempty" json:"color,omitempty"`
}

// Mastodon account settings.
type Mastodon struct {
	Server       string `mapstructure:"server" yaml:"server,omitempty" json:"server,omitempty"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret,omitempty" json:"client_secret,omitempty"`
	AccessToken  string `mapstructure:"access_token" yaml:"access_token,omitempty" json:"access_token,omitempty"`
}

// Announce configures where newly stored keys are announced.
type Announce struct {
	Discord  Discord  `mapstructure:"discord" yaml:"discord,omitempty" json:"discord,omitempty"`
	Mastodon Mastodon `mapstructure:"mastodon" yaml:"mastodon,omitempty" json:"mastodon,omitempty"`
}

// Config is the configuration struct
type Config struct {
	OSes        []string      `mapstructure:"oses" yaml:"oses" json:"oses"`
	MinMajor    int           `mapstructure:"min_major" yaml:"min_major" json:"min_major"`
	KeysDir     string        `mapstructure:"keys_dir" yaml:"keys_dir" json:"keys_dir"`
	StateFile   string        `mapstructure:"state_file" yaml:"state_file" json:"state_file"`
	ScratchDir  string        `mapstructure:"scratch_dir" yaml:"scratch_dir,omitempty" json:"scratch_dir,omitempty"`
	Latest      bool          `mapstructure:"latest" yaml:"latest" json:"latest"`
	Parallel    int           `mapstructure:"parallel" yaml:"parallel" json:"parallel"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" yaml:"http_timeout" json:"http_timeout" jsonschema:"type=string,example=30s"`
	Proxy       string        `mapstructure:"proxy" yaml:"proxy,omitempty" json:"proxy,omitempty"`
	Insecure    bool          `mapstructure:"insecure" yaml:"insecure,omitempty" json:"insecure,omitempty"`
	APIToken    string        `mapstructure:"api_token" yaml:"api_token,omitempty" json:"api_token,omitempty"`

	Source   Source   `mapstructure:"source" yaml:"source" json:"source"`
	Detector Detector `mapstructure:"detector" yaml:"detector" json:"detector"`
	Tool     Tool     `mapstructure:"tool" yaml:"tool" json:"tool"`
	Store    Store    `mapstructure:"store" yaml:"store" json:"store"`
	Report   Report   `mapstructure:"report" yaml:"report,omitempty" json:"report,omitempty"`
	Announce Announce `mapstructure:"announce" yaml:"announce,omitempty" json:"announce,omitempty"`
}

// tokenEnv holds the GitHub token fallbacks.
type tokenEnv struct {
	GitHubToken    string `env:"GITHUB_TOKEN"`
	GitHubAPIToken string `env:"GITHUB_API_TOKEN"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		OSes:        []string{"iOS", "iPadOS"},
		MinMajor:    22,
		KeysDir:     "keys",
		StateFile:   ".appledb-last-commit",
		Parallel:    1,
		HTTPTimeout: 30 * time.Second,
		Source: Source{
			Type:     "index",
			IndexURL: DefaultIndexURL,
			Tree: Tree{
				Materialize: "git",
				RepoURL:     DefaultRepoURL,
				Branch:      "main",
			},
		},
		Detector: Detector{
			Strategy:   "commit",
			Commit:     "rest",
			CommitsURL: DefaultCommitsURL,
			GraphQLURL: DefaultGraphQLURL,
			Owner:      "littlebyteorg",
			Repo:       "appledb",
			RepoURL:    DefaultRepoURL,
			Branch:     "main",
		},
		Tool: Tool{
			Path:    "ipsw",
			Timeout: 30 * time.Minute,
			KeyExt:  ".pem",
		},
		Store: Store{
			Type:       "local",
			Naming:     "hash",
			Digest:     "md5",
			Marker:     "file",
			MemorySize: 4096,
		},
	}
}

// HasDiscord reports whether the Discord announcer is configured.
func (a Announce) HasDiscord() bool {
	return a.Discord.WebhookID != "" && a.Discord.WebhookToken != ""
}

// HasMastodon reports whether the Mastodon announcer is configured.
func (a Announce) HasMastodon() bool {
	return a.Mastodon.Server != "" && a.Mastodon.AccessToken != ""
}

func oneOf(field, value string, allowed ...string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("%s must be one of [%s], got %q", field, strings.Join(allowed, ", "), value)
	}
	return nil
}

func (c *Config) verify() error {
	if len(c.OSes) == 0 {
		return fmt.Errorf("oses must not be empty")
	}
	if c.MinMajor < 0 {
		return fmt.Errorf("min_major must not be negative")
	}
	if c.KeysDir == "" {
		return fmt.Errorf("keys_dir must be set")
	}
	if c.Parallel < 1 {
		c.Parallel = 1
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.Tool.Timeout <= 0 {
		c.Tool.Timeout = 30 * time.Minute
	}
	if c.Tool.Path == "" {
		c.Tool.Path = "ipsw"
	}
	if c.Tool.KeyExt == "" {
		c.Tool.KeyExt = ".pem"
	} else if !strings.HasPrefix(c.Tool.KeyExt, ".") {
		c.Tool.KeyExt = "." + c.Tool.KeyExt
	}

	if err := oneOf("source.type", c.Source.Type, "index", "tree"); err != nil {
		return err
	}
	switch c.Source.Type {
	case "index":
		if c.Source.IndexURL == "" {
			c.Source.IndexURL = DefaultIndexURL
		}
	case "tree":
		if err := oneOf("source.tree.materialize", c.Source.Tree.Materialize, "git", "tool", "none"); err != nil {
			return err
		}
		if c.Source.Tree.Dir == "" {
			if c.Source.Tree.Materialize == "none" {
				return fmt.Errorf("source.tree.dir must be set when materialize is none")
			}
			dir, err := os.UserCacheDir()
			if err != nil {
				return fmt.Errorf("failed to get user cache directory: %w", err)
			}
			c.Source.Tree.Dir = filepath.Join(dir, "fcs-keys", "appledb")
		}
		if c.Source.Tree.Materialize == "tool" && len(c.Source.Tree.Args) == 0 {
			return fmt.Errorf("source.tree.args must be set when materialize is tool")
		}
	}

	if err := oneOf("detector.strategy", c.Detector.Strategy, "always", "commit"); err != nil {
		return err
	}
	if c.Detector.Strategy == "commit" {
		if c.StateFile == "" {
			return fmt.Errorf("state_file must be set for the commit detector")
		}
		if err := oneOf("detector.commit", c.Detector.Commit, "rest", "graphql", "git"); err != nil {
			return err
		}
	}

	if err := oneOf("store.type", c.Store.Type, "local", "sqlite", "postgres", "memory"); err != nil {
		return err
	}
	if err := oneOf("store.naming", c.Store.Naming, "hash", "original"); err != nil {
		return err
	}
	if err := oneOf("store.digest", c.Store.Digest, "md5", "sha256"); err != nil {
		return err
	}
	if err := oneOf("store.marker", c.Store.Marker, "file", "dir"); err != nil {
		return err
	}
	switch c.Store.Type {
	case "sqlite":
		if c.Store.Path == "" {
			c.Store.Path = filepath.Join(c.KeysDir, "keys.db")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres store")
		}
	case "memory":
		if c.Store.MemorySize <= 0 {
			c.Store.MemorySize = 4096
		}
	}

	if c.APIToken == "" {
		var te tokenEnv
		if err := env.Parse(&te); err != nil {
			return fmt.Errorf("failed to parse environment: %w", err)
		}
		c.APIToken = te.GitHubToken
		if c.APIToken == "" {
			c.APIToken = te.GitHubAPIToken
		}
	}
	if c.Detector.Strategy == "commit" && c.Detector.Commit == "graphql" && c.APIToken == "" {
		return fmt.Errorf("the graphql commit source requires api_token (or GITHUB_TOKEN)")
	}

	return nil
}

// SetDefaults registers every configuration key with its default value,
// so environment variables are honored for keys without a flag.
func SetDefaults(v *viper.Viper) {
	setDefaults(v, "", reflect.ValueOf(*Default()))
}

func setDefaults(v *viper.Viper, prefix string, rv reflect.Value) {
	rt := rv.Type()
	for i := range rt.NumField() {
		f := rt.Field(i)
		key := f.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		if f.Type.Kind() == reflect.Struct {
			setDefaults(v, key, rv.Field(i))
			continue
		}
		v.SetDefault(key, rv.Field(i).Interface())
	}
}

// Load loads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads the configuration from v on top of the defaults.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %w", err)
	}

	return &c, nil
}
