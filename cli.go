package editstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sokinpui/editstream/internal/config"
)

type CLIConfig struct {
	ConfigPath    string
	OutputDiffFix bool
	Undo          bool
	Redo          bool
	Reverse       bool
	DryRun        bool
	Strict        bool
	Echo          bool
	NoAnimation   bool
	Verbose       bool
	Format        string
	Target        string
	Concurrency   int
	MetricsFile   string
	Extensions    []string
	Completion    string
	Files         []string
}

var cliCfg = &CLIConfig{}

var rootCmd = &cobra.Command{
	Use:   "editstream",
	Short: "Apply code edits from model output to files.",
	Long: `Read model output from stdin (pipe) or the clipboard and apply the
file blocks, SEARCH/REPLACE pairs and unified diffs it contains.

Example: pbpaste | editstream -e go`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cliCfg.Completion != "" {
			return handleCompletion(cmd)
		}

		cfg, err := config.Load(cliCfg.ConfigPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		if cfg.Undo && cfg.Redo {
			return fmt.Errorf("error: --undo and --redo are mutually exclusive")
		}

		app, err := NewApp(cfg, WithLogger(newLogger(cfg.Verbose)))
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		var summary Summary
		if cfg.OutputDiffFix || cfg.DryRun || cfg.Echo || cfg.NoAnimation {
			summary, err = app.Execute(cmd.Context())
			out := cmd.OutOrStdout()
			if cfg.OutputDiffFix || cfg.Echo {
				out = cmd.ErrOrStderr()
			}
			if err == nil {
				fmt.Fprint(out, FormatSummary(summary))
			}
		} else {
			summary, err = NewTUI(app).Run(cmd.Context())
		}
		if err != nil {
			return err
		}
		if cfg.Strict && !summary.OK() {
			return errors.New("not every edit was applied")
		}
		return nil
	},
}

// applyFlags overrides config values with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("format") {
		cfg.Format = cliCfg.Format
	}
	if f.Changed("target") {
		cfg.Target = cliCfg.Target
	}
	if f.Changed("concurrency") {
		cfg.Concurrency = cliCfg.Concurrency
	}
	if f.Changed("metrics-file") {
		cfg.MetricsFile = cliCfg.MetricsFile
	}
	if f.Changed("extension") {
		cfg.Extensions = cliCfg.Extensions
	}
	if f.Changed("file") {
		cfg.Files = cliCfg.Files
	}
	cfg.Strict = cfg.Strict || cliCfg.Strict
	cfg.DryRun = cfg.DryRun || cliCfg.DryRun
	cfg.Echo = cfg.Echo || cliCfg.Echo
	cfg.Verbose = cfg.Verbose || cliCfg.Verbose
	cfg.Undo = cliCfg.Undo
	cfg.Redo = cliCfg.Redo
	cfg.Reverse = cliCfg.Reverse
	cfg.OutputDiffFix = cliCfg.OutputDiffFix
	cfg.NoAnimation = cliCfg.NoAnimation
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func handleCompletion(cmd *cobra.Command) error {
	switch cliCfg.Completion {
	case "bash":
		return cmd.Root().GenBashCompletion(os.Stdout)
	case "zsh":
		return cmd.Root().GenZshCompletion(os.Stdout)
	case "fish":
		return cmd.Root().GenFishCompletion(os.Stdout, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
	default:
		return fmt.Errorf("unsupported shell for completion: %s", cliCfg.Completion)
	}
}

func init() {
	defaults := config.Default()
	f := rootCmd.Flags()

	f.StringVarP(&cliCfg.ConfigPath, "config", "c", "", "Config file (default "+config.DefaultFile+" if present)")
	f.StringVar(&cliCfg.Completion, "completion", "", "Generate completion script")
	f.BoolVarP(&cliCfg.OutputDiffFix, "output-diff-fix", "o", false, "Print diffs with corrected hunk headers")
	f.BoolVarP(&cliCfg.Undo, "undo", "u", false, "Undo last op")
	f.BoolVarP(&cliCfg.Redo, "redo", "r", false, "Redo last op")
	f.BoolVar(&cliCfg.Reverse, "reverse", false, "Apply diffs in reverse")
	f.BoolVarP(&cliCfg.DryRun, "dry-run", "n", false, "Print diffs instead of writing")
	f.BoolVar(&cliCfg.Strict, "strict", false, "Reject a block when any of its pairs does not match")
	f.BoolVar(&cliCfg.Echo, "echo", false, "Print the stream without block bodies as it arrives")
	f.BoolVar(&cliCfg.NoAnimation, "no-animation", false, "Disable spinner")
	f.BoolVarP(&cliCfg.Verbose, "verbose", "v", false, "Debug logging")
	f.StringVar(&cliCfg.Format, "format", defaults.Format, "Input format: auto, tags or markdown")
	f.StringVar(&cliCfg.Target, "target", defaults.Target, "Write to disk or through nvim")
	f.IntVarP(&cliCfg.Concurrency, "concurrency", "j", defaults.Concurrency, "Files processed in parallel")
	f.StringVar(&cliCfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	f.StringSliceVarP(&cliCfg.Extensions, "extension", "e", []string{}, "Filter by extension")
	f.StringSliceVarP(&cliCfg.Files, "file", "f", []string{}, "Filter by files")

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
