package cmd

import (
	"fmt"

	"pdfrag/internal/tui"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every indexed chunk from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Store.Stats()
		if err != nil {
			return err
		}
		if st.TotalChunks == 0 && st.EmbeddingModel == "" {
			fmt.Fprintln(cmd.OutOrStdout(), tui.DimStyle.Render("Vector store is already empty"))
			return nil
		}
		if err := a.Store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.SuccessStyle.Render(
			fmt.Sprintf("✓ Vector store cleared (%d chunks from %d documents)", st.TotalChunks, st.TotalDocuments)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
