package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/logview/internal/rules"
)

var printCmd = &cobra.Command{
	Use:   "print <VIEW_FILE>",
	Short: "Pretty-print a view",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrint,
}

func init() {
	rootCmd.AddCommand(printCmd)
	printCmd.Flags().Bool("stored", false, "treat VIEW_FILE as a stored view name (requires --db-url)")
	printCmd.Flags().Bool("stats", false, "print a summary of the view after it")
}

func runPrint(cmd *cobra.Command, args []string) error {
	stored, _ := cmd.Flags().GetBool("stored")
	showStats, _ := cmd.Flags().GetBool("stats")

	view, err := loadView(cmd.Context(), args[0], stored)
	if err != nil {
		return fmt.Errorf("failed to load view: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := rules.Format(out, view); err != nil {
		return err
	}
	if showStats {
		s := rules.Stats(view)
		fmt.Fprintf(out, "\n# %d operations, %d patterns, depth %d, %d skips\n", s.Operations, s.Patterns, s.MaxDepth, s.Skips)
		fmt.Fprintf(out, "# binds: %s\n", strings.Join(s.Bindings, ", "))
	}
	return nil
}
