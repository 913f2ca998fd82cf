package cmd

import (
	"github.com/spf13/cobra"
)

var flagStatsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the store contains",
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
		if flagStatsJSON {
			return writeJSON(cmd.OutOrStdout(), st)
		}
		printStats(cmd.OutOrStdout(), st, a.Config.StoreFile())
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&flagStatsJSON, "json", false, "print statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}
