/*
Copyright © 2026 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/blacktop/fcs-keys/internal/colors"
	"github.com/blacktop/fcs-keys/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// Verbose boolean flag for verbose logging
	Verbose bool
	// Color boolean flag for colorized output
	Color bool
	// NoColor boolean flag to disable colorized output
	NoColor bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fcs-keys",
	Short: "Mirror AEA1 DMG fcs-keys for every build listed in AppleDB",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		switch {
		case cmd.Flags().Changed("no-color"):
			on := !NoColor
			colors.Init(&on)
		case cmd.Flags().Changed("color") || viper.IsSet("color"):
			on := viper.GetBool("color")
			colors.Init(&on)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	cobra.OnInitialize(initConfig)

	// Flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/fcs-keys/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&Color, "color", false, "colorize output")
	rootCmd.PersistentFlags().BoolVar(&NoColor, "no-color", false, "disable colorized output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))
	viper.BindEnv("color", "CLICOLOR")
	// Run settings
	rootCmd.PersistentFlags().StringArray("os", []string{}, "OS to mirror (repeatable, default iOS and iPadOS)")
	rootCmd.PersistentFlags().Int("min-major", 0, "Lowest build major to process (default 22)")
	rootCmd.PersistentFlags().StringP("keys", "k", "", "Folder to store keys in (default keys)")
	rootCmd.PersistentFlags().String("state", "", "AppleDB commit marker file")
	rootCmd.PersistentFlags().String("scratch", "", "Folder for temporary downloads")
	rootCmd.PersistentFlags().Bool("latest", false, "Only process the newest build of each OS")
	rootCmd.PersistentFlags().IntP("parallel", "p", 0, "Number of builds fetched concurrently")
	rootCmd.MarkPersistentFlagDirname("keys")
	rootCmd.RegisterFlagCompletionFunc("os", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"iOS", "iPadOS", "macOS", "tvOS", "watchOS", "visionOS", "audioOS"}, cobra.ShellCompDirectiveDefault
	})
	// AppleDB settings
	rootCmd.PersistentFlags().String("source", "", "Build source (index, tree)")
	rootCmd.PersistentFlags().String("index-url", "", "AppleDB build index URL")
	rootCmd.PersistentFlags().String("tree", "", "Local AppleDB checkout (tree source)")
	rootCmd.PersistentFlags().String("detector", "", "Change detection (commit, always)")
	rootCmd.PersistentFlags().String("commit-source", "", "Where to read the AppleDB head commit (rest, graphql, git)")
	rootCmd.PersistentFlags().String("api-token", "", "Github API Token")
	rootCmd.PersistentFlags().String("proxy", "", "HTTP/HTTPS proxy")
	rootCmd.PersistentFlags().Bool("insecure", false, "do not verify ssl certs")
	// Tool settings
	rootCmd.PersistentFlags().String("ipsw", "", "Path to the ipsw binary")
	rootCmd.PersistentFlags().Duration("tool-timeout", 0, "Timeout for a single ipsw invocation")
	// Storage settings
	rootCmd.PersistentFlags().String("store", "", "Key store (local, sqlite, postgres)")
	rootCmd.PersistentFlags().String("naming", "", "Key file naming (hash, original)")
	rootCmd.PersistentFlags().String("dsn", "", "Postgres DSN")
	// Bind persistent flags
	viper.BindPFlag("oses", rootCmd.PersistentFlags().Lookup("os"))
	viper.BindPFlag("min_major", rootCmd.PersistentFlags().Lookup("min-major"))
	viper.BindPFlag("keys_dir", rootCmd.PersistentFlags().Lookup("keys"))
	viper.BindPFlag("state_file", rootCmd.PersistentFlags().Lookup("state"))
	viper.BindPFlag("scratch_dir", rootCmd.PersistentFlags().Lookup("scratch"))
	viper.BindPFlag("latest", rootCmd.PersistentFlags().Lookup("latest"))
	viper.BindPFlag("parallel", rootCmd.PersistentFlags().Lookup("parallel"))
	viper.BindPFlag("source.type", rootCmd.PersistentFlags().Lookup("source"))
	viper.BindPFlag("source.index_url", rootCmd.PersistentFlags().Lookup("index-url"))
	viper.BindPFlag("source.tree.dir", rootCmd.PersistentFlags().Lookup("tree"))
	viper.BindPFlag("detector.strategy", rootCmd.PersistentFlags().Lookup("detector"))
	viper.BindPFlag("detector.commit", rootCmd.PersistentFlags().Lookup("commit-source"))
	viper.BindPFlag("api_token", rootCmd.PersistentFlags().Lookup("api-token"))
	viper.BindPFlag("proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("insecure", rootCmd.PersistentFlags().Lookup("insecure"))
	viper.BindPFlag("tool.path", rootCmd.PersistentFlags().Lookup("ipsw"))
	viper.BindPFlag("tool.timeout", rootCmd.PersistentFlags().Lookup("tool-timeout"))
	viper.BindPFlag("store.type", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("store.naming", rootCmd.PersistentFlags().Lookup("naming"))
	viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	// Settings
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".config", "fcs-keys"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("fcs_keys")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig returns the effective configuration. Flags left at their zero
// value fall through to the config file, the environment and the defaults.
func loadConfig() (*config.Config, error) {
	return config.LoadFrom(viper.GetViper())
}
