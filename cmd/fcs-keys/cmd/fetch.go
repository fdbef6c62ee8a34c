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
	stdctx "context"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/blacktop/fcs-keys/internal/colors"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/fetch"
	"github.com/blacktop/fcs-keys/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringP("build", "b", "", "BuildID to fetch (i.e. 22A3354)")
	fetchCmd.Flags().BoolP("force", "f", false, "Fetch even if the build is already stored")
	fetchCmd.MarkFlagRequired("build")
	viper.BindPFlag("fetch.build", fetchCmd.Flags().Lookup("build"))
	viper.BindPFlag("fetch.force", fetchCmd.Flags().Lookup("force"))
}

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the keys of a single build",
	Example: heredoc.Doc(`
		# Fetch the keys of one iOS build
		❯ fcs-keys fetch --os iOS --build 22A3354
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.OSes) != 1 || !cmd.Flags().Changed("os") {
			return fmt.Errorf("fetch requires exactly one --os")
		}
		b := appledb.Build{OS: cfg.OSes[0], ID: viper.GetString("fetch.build")}
		if !b.Valid() {
			return fmt.Errorf("invalid build %q", b.String())
		}

		var st store.Store
		st, err = store.Open(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if viper.GetBool("fetch.force") {
			st = forceStore{st}
		}

		ctx := context.New(cfg)
		f := &fetch.Fetcher{
			Store:      st,
			Tool:       ctx.Ipsw(),
			KeyExt:     cfg.Tool.KeyExt,
			Digest:     cfg.Store.Digest,
			ScratchDir: cfg.ScratchDir,
		}
		res, err := f.Fetch(ctx, b)
		if err != nil {
			return err
		}
		fmt.Println(colors.Status(string(res.Status)).Sprint(res.Line()))
		if res.Status == fetch.StatusFailed {
			log.WithError(res.Err).Debug("ipsw failed")
			return fmt.Errorf("failed to fetch %s", b)
		}
		return nil
	},
}

// forceStore reports every build as missing.
type forceStore struct{ store.Store }

func (forceStore) Exists(stdctx.Context, appledb.Build) (bool, error) { return false, nil }
