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
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/blacktop/fcs-keys/internal/colors"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type buildStatus struct {
	appledb.Build
	Status string `json:"status"`
}

func init() {
	rootCmd.AddCommand(buildsCmd)

	buildsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	buildsCmd.Flags().Bool("pending", false, "Only list builds that have not been fetched yet")
	viper.BindPFlag("builds.json", buildsCmd.Flags().Lookup("json"))
	viper.BindPFlag("builds.pending", buildsCmd.Flags().Lookup("pending"))
}

// buildsCmd represents the builds command
var buildsCmd = &cobra.Command{
	Use:     "builds",
	Aliases: []string{"ls"},
	Short:   "List qualifying AppleDB builds and whether their keys are stored",
	Example: heredoc.Doc(`
		# List iOS 18+ builds still missing keys
		❯ fcs-keys builds --os iOS --min-major 22 --pending
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := store.Open(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.New(cfg)
		src, err := appledb.NewSource(cfg, ctx.HTTP, ctx.Ipsw())
		if err != nil {
			return err
		}
		builds, err := appledb.NewEnumerator(cfg, src).List(ctx)
		if err != nil {
			return err
		}

		var out []buildStatus
		for _, b := range builds {
			ok, err := st.Exists(ctx, b)
			if err != nil {
				return err
			}
			if ok && viper.GetBool("builds.pending") {
				continue
			}
			status := "pending"
			if ok {
				status = "cached"
			}
			out = append(out, buildStatus{Build: b, Status: status})
		}

		if viper.GetBool("builds.json") {
			if out == nil {
				out = []buildStatus{}
			}
			dat, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			return colors.JSON(os.Stdout, dat)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, colors.Bold().Sprint("OS\tBUILD\tSTATUS"))
		for _, b := range out {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.OS, b.ID, colors.Status(b.Status).Sprint(b.Status))
		}
		return w.Flush()
	},
}
