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
	"slices"

	"github.com/blacktop/fcs-keys/internal/colors"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type osStatus struct {
	OS     string `json:"os"`
	Builds int    `json:"builds"`
	Keys   int    `json:"keys"`
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	viper.BindPFlag("status.json", statusCmd.Flags().Lookup("json"))
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last processed AppleDB commit and what is stored",
	Args:  cobra.NoArgs,
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
		commit, err := ctx.Marker.Read()
		if err != nil {
			return err
		}
		entries, err := st.List(ctx)
		if err != nil {
			return err
		}

		byOS := make(map[string]*osStatus)
		for _, e := range entries {
			s, ok := byOS[e.Build.OS]
			if !ok {
				s = &osStatus{OS: e.Build.OS}
				byOS[e.Build.OS] = s
			}
			s.Builds++
			s.Keys += e.Keys
		}
		stats := make([]osStatus, 0, len(byOS))
		for _, s := range byOS {
			stats = append(stats, *s)
		}
		slices.SortFunc(stats, func(a, b osStatus) int {
			if a.OS < b.OS {
				return -1
			} else if a.OS > b.OS {
				return 1
			}
			return 0
		})

		if viper.GetBool("status.json") {
			dat, err := json.MarshalIndent(struct {
				Commit string     `json:"commit"`
				Store  string     `json:"store"`
				OSes   []osStatus `json:"oses"`
			}{commit, cfg.Store.Type, stats}, "", "  ")
			if err != nil {
				return err
			}
			return colors.JSON(os.Stdout, dat)
		}

		if commit == "" {
			commit = colors.Faint().Sprint("none")
		}
		fmt.Printf("%s %s\n", colors.Bold().Sprint("Last commit:"), commit)
		fmt.Printf("%s %s\n", colors.Bold().Sprint("Store:      "), cfg.Store.Type)
		for _, s := range stats {
			fmt.Printf("  %-10s %s builds, %s keys\n",
				colors.BoldCyan().Sprint(s.OS), humanize.Comma(int64(s.Builds)), humanize.Comma(int64(s.Keys)))
		}
		return nil
	},
}
