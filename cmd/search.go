package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pdfrag/internal/app"
	"pdfrag/internal/config"
	"pdfrag/internal/search"
	"pdfrag/internal/tui"

	"github.com/spf13/cobra"
)

var (
	flagTopK       int
	flagMinScore   float64
	flagSearchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search indexed documents by meaning",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		k := a.Config.TopK
		if cmd.Flags().Changed("top-k") {
			k = flagTopK
		}
		if cmd.Flags().Changed("min-score") {
			if err := checkMinScoreFlag(flagMinScore); err != nil {
				return err
			}
			a.Engine.MinScore = flagMinScore
		}

		return runSearch(cmd.Context(), cmd.OutOrStdout(), a, strings.Join(args, " "), k, flagSearchJSON)
	},
}

func checkMinScoreFlag(v float64) error {
	if err := config.CheckMinScore(v); err != nil {
		return fmt.Errorf("%w: --min-score: %v", config.ErrInvalid, err)
	}
	return nil
}

// runSearch prints the ranked results for query, or a hint when nothing is
// indexed yet.
func runSearch(ctx context.Context, w io.Writer, a *app.App, query string, k int, asJSON bool) error {
	ready, err := a.SearchReady()
	if err != nil {
		return err
	}
	if !ready {
		if asJSON {
			return writeJSON(w, []search.Result{})
		}
		fmt.Fprintln(w, tui.DimStyle.Render(app.EmptyIndexMessage))
		return nil
	}

	results, err := a.Engine.Search(ctx, query, k)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, results)
	}
	printResults(w, results)
	return nil
}

func init() {
	searchCmd.Flags().IntVarP(&flagTopK, "top-k", "k", 5, "number of results")
	searchCmd.Flags().Float64Var(&flagMinScore, "min-score", -1, "drop results with a lower similarity, in [-1, 1]")
	searchCmd.Flags().BoolVar(&flagSearchJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}
