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

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/pipeline"
	"github.com/blacktop/fcs-keys/internal/store"
	"github.com/caarlos0/ctrlc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().Bool("dry-run", false, "Report pending builds without fetching anything")
	updateCmd.Flags().DurationP("timeout", "t", 0, "Timeout for the whole run")
	updateCmd.Flags().BoolP("confirm", "y", false, "do not prompt user for confirmation")
	updateCmd.Flags().String("summary", "", "Write a JSON run summary to this file")
	updateCmd.Flags().String("metrics", "", "Write Prometheus metrics to this textfile")
	updateCmd.Flags().StringArray("json-os", []string{}, "Also refresh fcs-keys.json for this OS (repeatable)")
	viper.BindPFlag("update.dry-run", updateCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("update.timeout", updateCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("update.confirm", updateCmd.Flags().Lookup("confirm"))
	viper.BindPFlag("report.summary", updateCmd.Flags().Lookup("summary"))
	viper.BindPFlag("report.metrics", updateCmd.Flags().Lookup("metrics"))
	viper.BindPFlag("tool.json_oses", updateCmd.Flags().Lookup("json-os"))
}

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"run"},
	Short:   "Fetch the keys of every new AppleDB build",
	Example: heredoc.Doc(`
		# Poll AppleDB and fetch keys for new iOS/iPadOS builds
		❯ fcs-keys update

		# Show what would be fetched without downloading anything
		❯ fcs-keys update --dry-run

		# Fetch macOS keys four at a time from cron, without prompting
		❯ fcs-keys update --os macOS --parallel 4 --confirm --metrics /var/lib/node_exporter/fcs_keys.prom
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dryRun := viper.GetBool("update.dry-run")
		confirm := viper.GetBool("update.confirm")

		st, err := store.Open(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := context.NewWithTimeout(cfg, viper.GetDuration("update.timeout"))
		defer cancel()

		ctx.DryRun = dryRun
		ctx.Store = st
		if dryRun {
			// dry runs never touch the real store
			ctx.Store, err = store.NewMemory(cfg.Store.MemorySize, st)
			if err != nil {
				return err
			}
		}
		if !confirm && term.IsTerminal(int(os.Stdin.Fd())) {
			ctx.Confirm = askConfirm
		}

		log.WithField("run", ctx.RunID).Debug("starting update")

		return pipeline.Execute(ctx, cancel, ctrlc.Default, pipeline.Pipeline)
	},
}

func askConfirm(pending int) (bool, error) {
	ok := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Fetch keys for %d new builds?", pending),
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		if err == terminal.InterruptErr {
			log.Warn("Exiting...")
			return false, nil
		}
		return false, err
	}
	return ok, nil
}
