package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvopen/nvopen/internal/envctx"
	"github.com/nvopen/nvopen/internal/scratch"
	"github.com/nvopen/nvopen/internal/util"
)

// summaryPathWidth bounds artifact paths in the clean listing.
const summaryPathWidth = 72

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove stale session files from the scratch directory",
	Long: `Clean removes the files old runs leave in the scratch directory:

- Logs: <session>.log, one per run
- Sockets: the listen socket of a launched editor
- Captures: <session>-read files holding piped input

Sessions whose editor is still running are never touched. By default only
sessions idle for longer than 48 hours are removed.

Use --dry-run to see what would be removed without making changes.`,
	RunE: runClean,
}

var (
	cleanDryRun    bool
	cleanForce     bool
	cleanAll       bool
	cleanOlderThan time.Duration
)

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Show what would be removed without making changes")
	cleanCmd.Flags().BoolVarP(&cleanForce, "force", "f", false, "Skip confirmation prompt")
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Remove every inactive session regardless of age")
	cleanCmd.Flags().DurationVar(&cleanOlderThan, "older-than", 48*time.Hour, "Remove sessions idle longer than this")
}

func runClean(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	dir := envctx.ScratchDir(envctx.CaptureEnvironment().TempRoot)
	sessions, err := scratch.Scan(dir)
	if err != nil {
		return fmt.Errorf("failed to scan scratch directory: %w", err)
	}

	stale := scratch.Stale(sessions, cleanOlderThan, cleanAll)
	if len(stale) == 0 {
		fmt.Println("No stale sessions found. Nothing to clean.")
		return nil
	}

	printCleanSummary(dir, sessions, stale)

	if cleanDryRun {
		fmt.Println("\nDry run mode - no changes made.")
		return nil
	}

	if !cleanForce {
		fmt.Print("\nProceed with removal? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Clean cancelled.")
			return nil
		}
	}

	report := scratch.Sweep(stale)
	for _, msg := range report.Errors {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Warning: "+msg))
	}
	fmt.Printf("\nClean complete. Removed %d sessions (%d files, %s).\n",
		report.SessionsRemoved, report.FilesRemoved, util.FormatBytes(report.BytesReclaimed))
	return nil
}

func printCleanSummary(dir string, sessions, stale []scratch.Session) {
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("Stale Sessions in %s\n", dir)
	fmt.Println(strings.Repeat("─", 60))

	now := time.Now()
	for _, sess := range stale {
		fmt.Printf("\n  %s  (idle %s, %s)\n",
			sess.ID, util.FormatAge(now.Sub(sess.LastUsed)), util.FormatBytes(sess.Bytes))
		for _, art := range sess.Artifacts {
			fmt.Printf("    - %s\n", util.TruncateANSI(art.Path, summaryPathWidth))
		}
	}

	if active := countActive(sessions); active > 0 {
		fmt.Printf("\nSkipping %d active session(s).\n", active)
	}
}

func countActive(sessions []scratch.Session) int {
	n := 0
	for _, sess := range sessions {
		if sess.Active {
			n++
		}
	}
	return n
}
