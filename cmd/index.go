package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var flagIndexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index <path>...",
	Short: "Index PDF files and directories for search",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		idx, err := a.Indexer(func(path string, done, total int) {
			log.Debug("progress", "done", done, "total", total, "path", path)
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !flagIndexJSON {
			fmt.Fprintf(out, "Indexing %d path(s) into %s...\n", len(args), a.Config.StoreFile())
		}
		start := time.Now()
		rep, err := idx.Index(cmd.Context(), args)
		elapsed := time.Since(start)

		if rep != nil {
			if flagIndexJSON {
				if jerr := writeJSON(out, rep); jerr != nil && err == nil {
					err = jerr
				}
			} else {
				printReport(out, rep, elapsed)
			}
		}
		if err != nil {
			return err
		}
		if rep.Partial() {
			return errPartial
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagIndexJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(indexCmd)
}
