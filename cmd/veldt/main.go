package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "veldt",
		Short: "Server-side rendering toolkit for Go",
		Long: `Veldt renders web applications on the server.

It resolves requests against an ordered route table, runs route
loaders, and streams loader data and rendered markup into a base
HTML document. The serve command hosts a document directly, with
live reload in development mode.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
