package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deckray/config"
	"github.com/mohammad-safakhou/deckray/internal/search"
)

func searchCMD() *cobra.Command {
	var cfgPath string
	var limit int
	var cmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Query previously ingested decks by content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if cfg.Search.IndexPath == "" {
				return fmt.Errorf("search requires a persistent index (search.index_path)")
			}
			idx, err := search.Open(cfg.Search.IndexPath)
			if err != nil {
				return err
			}
			defer idx.Close()

			hits, err := idx.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Printf("%.3f  %s\n      %s\n", h.Score, h.Fingerprint, h.Snippet)
			}
			if len(hits) == 0 {
				fmt.Println("no matches")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum hits to print")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
