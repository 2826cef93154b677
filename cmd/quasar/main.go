package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "quasar",
		Short: "Quasar - in-memory FIFO cache daemon",
		Long:  "A FIFO cache with capacity and TTL pruning that resolves misses from memory, Redis or PostgreSQL",
	}

	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", envOr("QUASAR_SERVER", "http://localhost:8080"), "Quasar daemon URL")

	rootCmd.AddCommand(
		daemonCmd(),
		getCmd(),
		putCmd(),
		deleteCmd(),
		clearCmd(),
		pruneCmd(),
		statsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
