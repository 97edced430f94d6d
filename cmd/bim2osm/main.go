package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "bim2osm",
		Short:        "Convert IFC building models into georeferenced indoor OSM data",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
