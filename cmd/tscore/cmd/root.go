package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "tscore",
	Short: "TypeScript compiler and interpreter",
	Long: `tscore runs TypeScript programs through either a tree-walking
interpreter or a bytecode compiler and stack VM. Both execution modes share
one parser, one type side-table, and one dynamic value model, and produce
identical output for the same program.

Supported surface: classes with private members, closures, async/await,
generators (including yield*), destructuring, template literals, optional
chaining, modules, and the built-in host modules (fs, os, crypto, zlib,
path).`,
	Version: Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}
