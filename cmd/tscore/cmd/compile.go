package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tscore-lang/tscore/internal/bytecode"
	"github.com/tscore-lang/tscore/pkg/tscore"
)

var compileOutput string

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile a TypeScript file to a .tsb compiled module",
	Long: `Compile a TypeScript program to the binary compiled-module format
the VM loads directly.

Examples:
  # Compile next to the source file (script.ts -> script.tsb)
  tscore compile script.ts

  # Compile to an explicit output path
  tscore compile -o out.tsb script.ts`,
	Args: cobra.ExactArgs(1),
	RunE: compileFile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "output path (default: source path with .tsb extension)")
}

func compileFile(_ *cobra.Command, args []string) error {
	filename := args[0]
	data, err := os.ReadFile(filename)
	if err != nil {
		exitWithError("cannot read %s: %v", filename, err)
	}
	prog, err := tscore.Compile(filename, string(data))
	if err != nil {
		return err
	}
	blob, err := bytecode.EncodeProgram(prog)
	if err != nil {
		return err
	}
	out := compileOutput
	if out == "" {
		out = strings.TrimSuffix(filename, ".ts") + ".tsb"
	}
	if err := os.WriteFile(out, blob, 0o644); err != nil {
		return err
	}
	fmt.Printf("compiled %s -> %s (%d bytes)\n", filename, out, len(blob))
	return nil
}
