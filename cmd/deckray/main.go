package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "deckray"}

	root.AddCommand(serveCMD(), ingestCMD(), searchCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
