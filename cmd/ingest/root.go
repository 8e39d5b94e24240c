package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Batch ingestion pipeline for weather, transaction, web and partner data",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
