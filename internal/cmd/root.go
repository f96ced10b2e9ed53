package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nvopen/nvopen/internal/classify"
	"github.com/nvopen/nvopen/internal/config"
	"github.com/nvopen/nvopen/internal/editor"
	"github.com/nvopen/nvopen/internal/envctx"
	"github.com/nvopen/nvopen/internal/errors"
	"github.com/nvopen/nvopen/internal/files"
	"github.com/nvopen/nvopen/internal/layout"
	"github.com/nvopen/nvopen/internal/logging"
	"github.com/nvopen/nvopen/internal/orchestrator"
)

var rootCmd = &cobra.Command{
	Use:   "nvopen [file...]",
	Short: "Open files as buffers in a running neovim",
	Long: `nvopen opens files, directories of files, or piped input as buffers in a
running neovim instance, optionally inside a fresh split or floating
window. Without a target address it launches neovim itself.

The target is taken from -a, then $NVIM, then $NVIM_LISTEN_ADDRESS.
Without file arguments the most recently modified text file in the
working directory is opened; -r walks it instead.`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runRoot,
	SilenceErrors: true,
}

var (
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// Execute runs the root command and reports its outcome on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
	}
	return err
}

var (
	optAddress          string
	optEditorConfig     string
	optFollow           bool
	optPattern          string
	optPatternBackwards string
	optKeep             bool
	optKeepUntilWrite   bool
	optBack             bool
	optBackRestore      bool
	optRecurseDepth     int
	optLua              string
	optCommand          string
	optOpenNonText      bool

	optSplitRight     int
	optSplitLeft      int
	optSplitBelow     int
	optSplitAbove     int
	optSplitRightCols int
	optSplitLeftCols  int
	optSplitBelowRows int
	optSplitAboveRows int
	optPopup          bool
)

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.Flags()
	f.StringVarP(&optAddress, "address", "a", "", "neovim listen address (default $NVIM)")
	f.StringVarP(&optEditorConfig, "config", "c", "", "neovim config file to load on launch")
	f.BoolVarP(&optFollow, "follow", "f", false, "move cursor to the end of each opened buffer")
	f.StringVarP(&optPattern, "pattern", "p", "", "jump to the first match in each opened buffer")
	f.StringVarP(&optPatternBackwards, "pattern-backwards", "P", "", "jump to the last match in each opened buffer")
	f.BoolVarP(&optKeep, "keep", "k", false, "block until each opened buffer is closed")
	f.BoolVarP(&optKeepUntilWrite, "keep-until-write", "K", false, "block until each opened buffer is first written, then close it")
	f.BoolVarP(&optBack, "back", "b", false, "return focus to the window active before opening")
	f.BoolVarP(&optBackRestore, "back-restore", "B", false, "like --back, and re-enter insert mode at end of line")
	f.IntVarP(&optRecurseDepth, "recurse-depth", "r", 0, "open every text file under the working directory, up to a depth")
	f.StringVarP(&optLua, "lua", "l", "", "lua snippet to run after each buffer opens")
	f.StringVarP(&optCommand, "command", "e", "", "command to run after each buffer opens")
	f.BoolVarP(&optOpenNonText, "open-non-text", "o", false, "open files the classifier rejects as well")

	f.IntVarP(&optSplitRight, "split-right", "R", 0, "open in a right split, sized as after N vertical splits")
	f.IntVarP(&optSplitLeft, "split-left", "L", 0, "open in a left split, sized as after N vertical splits")
	f.IntVarP(&optSplitBelow, "split-below", "D", 0, "open in a lower split, sized as after N horizontal splits")
	f.IntVarP(&optSplitAbove, "split-above", "U", 0, "open in an upper split, sized as after N horizontal splits")
	f.IntVar(&optSplitRightCols, "split-right-cols", 0, "open in a right split of exactly N columns")
	f.IntVar(&optSplitLeftCols, "split-left-cols", 0, "open in a left split of exactly N columns")
	f.IntVar(&optSplitBelowRows, "split-below-rows", 0, "open in a lower split of exactly N rows")
	f.IntVar(&optSplitAboveRows, "split-above-rows", 0, "open in an upper split of exactly N rows")
	f.BoolVar(&optPopup, "popup", false, "render the split as a floating window instead")

	// Bare occurrences count as one level.
	for _, name := range []string{"recurse-depth", "split-right", "split-left", "split-below", "split-above"} {
		f.Lookup(name).NoOptDefVal = "1"
	}

	rootCmd.MarkFlagsMutuallyExclusive(
		"split-right", "split-left", "split-below", "split-above",
		"split-right-cols", "split-left-cols", "split-below-rows", "split-above-rows",
	)
	rootCmd.MarkFlagsMutuallyExclusive("keep", "keep-until-write")
	rootCmd.MarkFlagsMutuallyExclusive("follow", "pattern", "pattern-backwards")
}

func initConfig() {
	// Defaults first, so they hold even without a config file
	config.SetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(config.ConfigDir())
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NVOPEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func runRoot(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg := config.Get()
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := buildOptions(cmd, args, cfg)
	env := envctx.CaptureEnvironment()
	runCtx, err := envctx.Resolve(opts, env)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(runCtx.ScratchDir, runCtx.SessionID, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger = logger.WithSession(runCtx.SessionID)

	warnAboutIgnoredFlags(runCtx, opts)

	editorCfg := cfg.Editor
	if optEditorConfig != "" {
		editorCfg.Config = optEditorConfig
	}

	source := files.New(runCtx.Selection, runCtx.WorkDir, opts.OpenNonText, classify.FromConfig(cfg.Classifier))

	orch := orchestrator.New(orchestrator.Params{
		Context: runCtx,
		Source:  source,
		Connect: func(ctx context.Context) (orchestrator.Editor, error) {
			return editor.Connect(ctx, editor.Params{
				Address:     runCtx.Address,
				ScratchDir:  runCtx.ScratchDir,
				SessionID:   runCtx.SessionID,
				Editor:      editorCfg,
				ReattachTTY: runCtx.PipeBuffer != nil,
				Logger:      logger,
			})
		},
		Logger: logger,
	})

	if err := orch.Run(cmd.Context()); err != nil {
		logger.Error("run failed", "error", err, "severity", errors.GetSeverity(err).String())
		return err
	}
	return nil
}

// buildOptions folds flags, arguments and configuration into the resolver's
// input.
func buildOptions(cmd *cobra.Command, args []string, cfg *config.Config) envctx.Options {
	address := optAddress
	addressGiven := cmd.Flags().Changed("address")
	if !addressGiven {
		if v, ok := os.LookupEnv("NVIM"); ok && v != "" {
			address, addressGiven = v, true
		}
	}

	return envctx.Options{
		Address:          address,
		AddressGiven:     addressGiven,
		ConfigFile:       optEditorConfig,
		Files:            args,
		RecurseDepth:     optRecurseDepth,
		Follow:           optFollow,
		Pattern:          optPattern,
		PatternBackwards: optPatternBackwards,
		Keep:             optKeep,
		KeepUntilWrite:   optKeepUntilWrite,
		Back:             optBack,
		BackRestore:      optBackRestore,
		Lua:              optLua,
		Command:          optCommand,
		OpenNonText:      optOpenNonText,
		Split: layout.Request{
			Right:     optSplitRight,
			Left:      optSplitLeft,
			Below:     optSplitBelow,
			Above:     optSplitAbove,
			RightCols: optSplitRightCols,
			LeftCols:  optSplitLeftCols,
			BelowRows: optSplitBelowRows,
			AboveRows: optSplitAboveRows,
			Popup:     optPopup,
			Winblend:  cfg.Popup.Winblend,
		},
	}
}

// warnAboutIgnoredFlags tells the user when a requested behavior cannot
// apply to this run. Neither case is an error; the run proceeds without it.
func warnAboutIgnoredFlags(runCtx *envctx.RunContext, opts envctx.Options) {
	if runCtx.Address != "" {
		return
	}
	if opts.SplitImplied() {
		fmt.Fprintln(os.Stderr, warnStyle.Render(
			"warning: split flags ignored, no running editor targeted"))
	}
	if opts.Back || opts.BackRestore {
		fmt.Fprintln(os.Stderr, warnStyle.Render(
			"warning: focus restore targets the launched editor's start screen"))
	}
}
