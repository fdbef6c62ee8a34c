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

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/colors"
	"github.com/blacktop/fcs-keys/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSchemaCmd)

	configInitCmd.Flags().StringP("output", "o", "", "Where to write the config (default is $HOME/.config/fcs-keys/config.yaml)")
	configSchemaCmd.Flags().StringP("output", "o", "-", "Where to write the schema")
	viper.BindPFlag("config.init.output", configInitCmd.Flags().Lookup("output"))
	viper.BindPFlag("config.schema.output", configSchemaCmd.Flags().Lookup("output"))
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the fcs-keys config file",
	Args:  cobra.NoArgs,
}

var configInitCmd = &cobra.Command{
	Use:     "init",
	Aliases: []string{"i"},
	Short:   "Write a config file with the default settings",
	Example: heredoc.Doc(`
		# Start from the defaults
		❯ fcs-keys config init
		❯ $EDITOR ~/.config/fcs-keys/config.yaml
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output := viper.GetString("config.init.output")
		if output == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			output = filepath.Join(home, ".config", "fcs-keys", "config.yaml")
		}
		dat, err := config.Default().YAML(false)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return fmt.Errorf("failed to create config folder: %w", err)
		}
		conf, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_EXCL, 0o644)
		if err != nil {
			return err
		}
		defer conf.Close()
		if _, err := conf.Write(dat); err != nil {
			return err
		}
		log.WithField("file", output).Info("config created")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (secrets redacted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dat, err := cfg.YAML(true)
		if err != nil {
			return err
		}
		if !colors.Enabled() {
			_, err = os.Stdout.Write(dat)
			return err
		}
		return quick.Highlight(os.Stdout, string(dat), "yaml", "terminal256", "nord")
	},
}

var configSchemaCmd = &cobra.Command{
	Use:     "jsonschema",
	Aliases: []string{"schema"},
	Short:   "Output the config file JSON schema",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bts, err := config.Schema()
		if err != nil {
			return err
		}
		output := viper.GetString("config.schema.output")
		if output == "-" {
			return colors.JSON(os.Stdout, bts)
		}
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return fmt.Errorf("failed to write jsonschema file: %w", err)
		}
		if err := os.WriteFile(output, bts, 0o644); err != nil {
			return fmt.Errorf("failed to write jsonschema file: %w", err)
		}
		return nil
	},
}
