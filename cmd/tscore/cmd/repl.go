package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/tscore-lang/tscore/pkg/tscore"
)

var replInterp bool

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive TypeScript session",
	Long: `Read-eval-print loop over the engine. Each input line is executed in a
fresh engine; use :load to run a whole file.

Commands:
  :help   show help
  :quit   exit the session
  :load   run a file`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
	replCmd.Flags().BoolVar(&replInterp, "interp", false, "evaluate through the tree-walking interpreter")
}

func runRepl(_ *cobra.Command, _ []string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)

	historyFile := filepath.Join(os.TempDir(), ".tscore_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	bold := color.New(color.Bold)
	dim := color.New(color.Faint)
	errc := color.New(color.FgRed)
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		bold.DisableColor()
		dim.DisableColor()
		errc.DisableColor()
	}

	bold.Printf("tscore %s", Version)
	fmt.Println()
	dim.Println("Type :help for help, :quit to exit")
	fmt.Println()

	line.SetCompleter(func(input string) (c []string) {
		if strings.HasPrefix(input, ":") {
			for _, cmd := range []string{":help", ":quit", ":load"} {
				if strings.HasPrefix(cmd, input) {
					c = append(c, cmd)
				}
			}
		}
		return
	})

	mode := tscore.ModeVM
	if replInterp {
		mode = tscore.ModeInterp
	}

	for {
		input, err := line.Prompt("ts> ")
		if err != nil {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch {
		case input == ":quit" || input == ":q":
			return nil
		case input == ":help":
			fmt.Println("  :help        show this help")
			fmt.Println("  :quit        exit the session")
			fmt.Println("  :load FILE   run a file")
			continue
		case strings.HasPrefix(input, ":load "):
			path := strings.TrimSpace(strings.TrimPrefix(input, ":load "))
			engine := tscore.New(tscore.WithMode(mode))
			if err := engine.RunFile(path); err != nil {
				errc.Fprintf(os.Stderr, "%v\n", err)
			}
			continue
		}

		engine := tscore.New(tscore.WithMode(mode))
		if err := engine.RunSource("<repl>", input); err != nil {
			errc.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}
