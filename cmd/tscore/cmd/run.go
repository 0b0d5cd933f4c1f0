package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tscore-lang/tscore/internal/config"
	"github.com/tscore-lang/tscore/internal/errorsx"
	"github.com/tscore-lang/tscore/internal/modcache"
	"github.com/tscore-lang/tscore/pkg/tscore"
)

var (
	evalExpr   string
	useInterp  bool
	noCache    bool
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a TypeScript file or expression",
	Long: `Execute a TypeScript program from a file or inline expression.

Examples:
  # Run a script file
  tscore run script.ts

  # Evaluate an inline expression
  tscore run -e "console.log(1 + 2);"

  # Use the tree-walking interpreter instead of the bytecode VM
  tscore run --interp script.ts

  # Skip the compiled-module cache
  tscore run --no-cache script.ts`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "evaluate inline code instead of reading from file")
	runCmd.Flags().BoolVar(&useInterp, "interp", false, "use the tree-walking interpreter instead of the bytecode VM")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the compiled-module cache")
}

func runScript(_ *cobra.Command, args []string) error {
	var source, filename string
	switch {
	case evalExpr != "":
		source, filename = evalExpr, "<eval>"
	case len(args) == 1:
		filename = args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			exitWithError("cannot read %s: %v", filename, err)
		}
		source = string(data)
	default:
		return fmt.Errorf("either a file argument or --eval is required")
	}

	cwd, _ := os.Getwd()
	cfg, err := config.Discover(cwd)
	if err != nil {
		exitWithError("bad configuration: %v", err)
	}

	opts := []tscore.Option{tscore.WithArgv(append([]string{"tscore", filename}, args...))}
	if useInterp {
		opts = append(opts, tscore.WithMode(tscore.ModeInterp))
	} else if !noCache && !cfg.NoCache {
		if cache, cerr := modcache.Open(cfg.DefaultCacheDir()); cerr == nil {
			defer cache.Close()
			opts = append(opts, tscore.WithCache(cache))
		}
	}
	engine := tscore.New(opts...)
	if err := engine.RunSource(filename, source); err != nil {
		if d, ok := err.(*errorsx.Diagnostic); ok {
			errorsx.Render(os.Stderr, d, source, cfg.Color == "always")
			os.Exit(1)
		}
		return err
	}
	return nil
}
