package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tscore-lang/tscore/pkg/tscore"
)

var disasmHuman bool

var disasmCmd = &cobra.Command{
	Use:   "disasm [file]",
	Short: "Disassemble a compiled TypeScript program",
	Long: `Compile a TypeScript program and print its instruction stream.

Examples:
  # Print the top-level chunk's instructions
  tscore disasm script.ts

  # Include human-readable size statistics
  tscore disasm --human script.ts`,
	Args: cobra.ExactArgs(1),
	RunE: disasmFile,
}

func init() {
	rootCmd.AddCommand(disasmCmd)
	disasmCmd.Flags().BoolVar(&disasmHuman, "human", false, "print chunk statistics with humanized sizes")
}

func disasmFile(_ *cobra.Command, args []string) error {
	filename := args[0]
	data, err := os.ReadFile(filename)
	if err != nil {
		exitWithError("cannot read %s: %v", filename, err)
	}
	prog, err := tscore.Compile(filename, string(data))
	if err != nil {
		return err
	}
	if disasmHuman {
		stats := prog.Chunk.GetStats()
		fmt.Printf("chunk %q: %s instructions, %s constants, %s of code, %d locals\n",
			stats.Name,
			humanize.Comma(int64(stats.InstructionCount)),
			humanize.Comma(int64(stats.ConstantCount)),
			humanize.Bytes(uint64(stats.CodeBytes)),
			stats.LocalCount)
	}
	prog.Chunk.DisassembleTo(os.Stdout)
	for name, fn := range prog.Functions {
		fmt.Printf("\n;; function %s\n", name)
		fn.Chunk.DisassembleTo(os.Stdout)
	}
	return nil
}
