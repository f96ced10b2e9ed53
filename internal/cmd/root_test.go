package cmd

import (
	"testing"

	"github.com/spf13/pflag"

	"github.com/nvopen/nvopen/internal/config"
)

func resetFlags(t *testing.T) {
	t.Helper()
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func parse(t *testing.T, args ...string) {
	t.Helper()
	resetFlags(t)
	if err := rootCmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v) error = %v", args, err)
	}
}

func TestRecurseDepthFlagShapes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"absent", nil, 0},
		{"bare counts as one level", []string{"-r"}, 1},
		{"explicit depth", []string{"-r=3"}, 3},
		{"long explicit", []string{"--recurse-depth=2"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parse(t, tt.args...)
			if optRecurseDepth != tt.want {
				t.Errorf("recurse depth = %d, want %d", optRecurseDepth, tt.want)
			}
		})
	}
}

func TestSplitRatioFlagShapes(t *testing.T) {
	parse(t, "-R")
	if optSplitRight != 1 {
		t.Errorf("bare -R = %d, want 1", optSplitRight)
	}
	parse(t, "-R=2")
	if optSplitRight != 2 {
		t.Errorf("-R=2 = %d, want 2", optSplitRight)
	}
	parse(t, "--split-below-rows", "12")
	if optSplitBelowRows != 12 {
		t.Errorf("--split-below-rows 12 = %d, want 12", optSplitBelowRows)
	}
}

func TestAddressResolutionOrder(t *testing.T) {
	cfg := config.Default()

	t.Run("flag wins over environment", func(t *testing.T) {
		t.Setenv("NVIM", "/tmp/env.sock")
		parse(t, "-a", "/tmp/flag.sock")
		opts := buildOptions(rootCmd, nil, cfg)
		if opts.Address != "/tmp/flag.sock" || !opts.AddressGiven {
			t.Errorf("opts = %+v, want the flag address marked given", opts)
		}
	})

	t.Run("environment fills in", func(t *testing.T) {
		t.Setenv("NVIM", "/tmp/env.sock")
		parse(t)
		opts := buildOptions(rootCmd, nil, cfg)
		if opts.Address != "/tmp/env.sock" || !opts.AddressGiven {
			t.Errorf("opts = %+v, want the environment address marked given", opts)
		}
	})

	t.Run("explicitly empty flag stays given", func(t *testing.T) {
		t.Setenv("NVIM", "/tmp/env.sock")
		parse(t, "-a", "")
		opts := buildOptions(rootCmd, nil, cfg)
		if opts.Address != "" || !opts.AddressGiven {
			t.Errorf("opts = %+v, want an empty given address", opts)
		}
	})

	t.Run("nothing set means not given", func(t *testing.T) {
		t.Setenv("NVIM", "")
		parse(t)
		opts := buildOptions(rootCmd, nil, cfg)
		if opts.Address != "" || opts.AddressGiven {
			t.Errorf("opts = %+v, want no address at all", opts)
		}
	})
}

func TestSizeFlagsMutuallyExclusive(t *testing.T) {
	parse(t, "-R", "-L")
	if err := rootCmd.ValidateFlagGroups(); err == nil {
		t.Error("two size flags should be rejected")
	}

	parse(t, "-R=2", "--popup")
	if err := rootCmd.ValidateFlagGroups(); err != nil {
		t.Errorf("popup with one size flag should be fine, got %v", err)
	}
}

func TestLifecycleFlagsMutuallyExclusive(t *testing.T) {
	parse(t, "-k", "-K")
	if err := rootCmd.ValidateFlagGroups(); err == nil {
		t.Error("keep and keep-until-write should be rejected together")
	}
}

func TestMotionFlagsMutuallyExclusive(t *testing.T) {
	parse(t, "-f", "-p", "x")
	if err := rootCmd.ValidateFlagGroups(); err == nil {
		t.Error("follow and pattern should be rejected together")
	}
	parse(t, "-p", "x", "-P", "y")
	if err := rootCmd.ValidateFlagGroups(); err == nil {
		t.Error("both search directions should be rejected together")
	}
}

func TestBuildOptionsCarriesFlags(t *testing.T) {
	t.Setenv("NVIM", "")
	cfg := config.Default()
	cfg.Popup.Winblend = 40

	parse(t,
		"-a", "/tmp/nvim.sock",
		"-c", "/tmp/init.lua",
		"-f", "-k", "-b", "-o",
		"-l", "vim.g.x = 1",
		"-e", "setlocal nowrap",
		"-D=2", "--popup",
	)
	opts := buildOptions(rootCmd, []string{"one.txt", "two.txt"}, cfg)

	if opts.Address != "/tmp/nvim.sock" || opts.ConfigFile != "/tmp/init.lua" {
		t.Errorf("address/config = %q/%q", opts.Address, opts.ConfigFile)
	}
	if !opts.Follow || !opts.Keep || !opts.Back || !opts.OpenNonText {
		t.Errorf("bool flags not carried: %+v", opts)
	}
	if opts.Lua != "vim.g.x = 1" || opts.Command != "setlocal nowrap" {
		t.Errorf("script/command not carried: %+v", opts)
	}
	if len(opts.Files) != 2 || opts.Files[0] != "one.txt" {
		t.Errorf("files = %v", opts.Files)
	}
	if opts.Split.Below != 2 || !opts.Split.Popup {
		t.Errorf("split = %+v", opts.Split)
	}
	if opts.Split.Winblend != 40 {
		t.Errorf("winblend = %d, want the configured value", opts.Split.Winblend)
	}
	if !opts.SplitImplied() {
		t.Error("a sized split should be implied")
	}
}
