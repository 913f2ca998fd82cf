package cmd

import (
	"os"
	"path/filepath"

	"pdfrag/internal/logging"
	"pdfrag/internal/tui"

	"github.com/spf13/cobra"
)

// runTUI starts the interactive search UI. The UI owns the terminal, so logs
// go to a file next to the store.
func runTUI(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logPath := filepath.Join(filepath.Dir(cfg.StoreFile()), "tui.log")
	log := logging.Discard()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			defer f.Close()
			if l, err := logging.New(f, cfg.LogLevel); err == nil {
				log = l
			}
		}
	}

	return tui.Run(cmd.Context(), tui.Config{
		App:    cfg,
		Logger: log,
	})
}
