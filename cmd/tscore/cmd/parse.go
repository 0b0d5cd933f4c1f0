package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tscore-lang/tscore/pkg/tscore"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a TypeScript file and dump its AST",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		filename := args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			exitWithError("cannot read %s: %v", filename, err)
		}
		prog, err := tscore.Parse(filename, string(data))
		if err != nil {
			return err
		}
		fmt.Print(prog.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
