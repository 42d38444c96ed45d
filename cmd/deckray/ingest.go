package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deckray/config"
	"github.com/mohammad-safakhou/deckray/internal/deckcache"
	"github.com/mohammad-safakhou/deckray/internal/ingest"
	"github.com/mohammad-safakhou/deckray/internal/ocr"
	"github.com/mohammad-safakhou/deckray/models"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var email string
	var passphrase string
	var timeout time.Duration
	var asJSON bool
	var cmd = &cobra.Command{
		Use:   "ingest <address>",
		Short: "Ingest one deck and print the recovered text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			logger := log.New(os.Stderr, "[ENGINE] ", log.LstdFlags)

			eng := ingest.New(cfg, logger,
				ingest.NewChromeLauncher(logger),
				ocr.NewTesseract(cfg.OCR.Languages),
				deckcache.NewMemory(),
			)

			res, err := eng.Ingest(context.Background(), models.IngestRequest{
				Address:       args[0],
				IdentityEmail: email,
				Passphrase:    passphrase,
				Timeout:       timeout,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Println(res.AssembledText)
			if !res.Success {
				for _, e := range res.Errors {
					fmt.Fprintf(os.Stderr, "error: %s: %s\n", e.Kind, e.Message)
				}
				return fmt.Errorf("ingestion incomplete: %d/%d pages", res.ProcessedPages, res.TotalPages)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "identity email for gated decks")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase for protected decks")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "session timeout (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full result as JSON")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
