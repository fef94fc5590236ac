package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:          "paperchat",
	Short:        "Upload PDFs and chat with them via retrieval-augmented generation",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the paperchat version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("paperchat version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd, ingestCmd, docsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
