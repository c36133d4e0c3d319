package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/solatis/logview/internal/core/config"
	"github.com/solatis/logview/internal/core/db"
	"github.com/solatis/logview/internal/render"
	"github.com/solatis/logview/internal/rules"
	"github.com/solatis/logview/internal/source"
)

var processCmd = &cobra.Command{
	Use:   "process <VIEW_FILE> <LOG_FILE>",
	Short: "Apply a view to a log file and print the kept records",
	Long: `Apply a view to a log file and print the kept records, one per line.

VIEW_FILE is a JSON or YAML view document, or a stored view name with --stored.
Records are written to stdout as JSON objects (--format json) or as their text
(--format text, colored with --color). A read error stops the run: records
already written are flushed, the error goes to stderr and the exit status is 1.`,
	Args: cobra.ExactArgs(2),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().String("format", string(render.FormatJSON), "output format (json, text)")
	processCmd.Flags().Bool("color", false, "color text output using the configured palette")
	processCmd.Flags().Int64("offset", 0, "byte offset in LOG_FILE to start reading at")
	processCmd.Flags().Int("limit", 0, "stop after this many kept records (0 = no limit)")
	processCmd.Flags().Bool("stored", false, "treat VIEW_FILE as a stored view name (requires --db-url)")
	processCmd.Flags().Bool("stats", false, "print a run summary to stderr")
}

// loadView reads a view from a file, or from the database when stored.
func loadView(ctx context.Context, nameOrPath string, stored bool) (*rules.View, error) {
	if !stored {
		return rules.LoadViewFile(nameOrPath)
	}
	database, queries, err := openDatabase()
	if err != nil {
		return nil, err
	}
	defer database.Close()
	return db.NewViewStore(queries).Load(ctx, nameOrPath)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	formatFlag, _ := flags.GetString("format")
	colored, _ := flags.GetBool("color")
	offset, _ := flags.GetInt64("offset")
	limit, _ := flags.GetInt("limit")
	stored, _ := flags.GetBool("stored")
	showStats, _ := flags.GetBool("stats")

	format, err := render.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	if colored && format != render.FormatText {
		return fmt.Errorf("--color requires --format text")
	}
	if offset < 0 {
		return fmt.Errorf("--offset must be non-negative")
	}

	var palette *render.Palette
	if colored {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		palette, err = render.NewPalette(cfg.Output.Palette)
		if err != nil {
			return fmt.Errorf("invalid output.palette: %w", err)
		}
	}

	view, err := loadView(ctx, args[0], stored)
	if err != nil {
		return fmt.Errorf("failed to load view: %w", err)
	}

	file, err := source.Open(args[1])
	if err != nil {
		return err
	}
	defer file.Close()
	if err := file.SeekTo(offset); err != nil {
		return err
	}

	engine := rules.NewEngine(rules.WithLogger(slog.Default()))
	it := engine.Process(file, view)
	out := render.NewWriter(cmd.OutOrStdout(), format, palette)

	start := time.Now()
	runErr := func() error {
		emitted := 0
		for record, err := range it.All() {
			if err != nil {
				return err
			}
			if err := out.Write(record); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			emitted++
			if limit > 0 && emitted >= limit {
				return nil
			}
		}
		return nil
	}()

	if err := out.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to write output: %w", err)
	}

	if showStats {
		s := it.Stats()
		fmt.Fprintf(cmd.ErrOrStderr(), "%s lines read, %s kept, %s skipped in %s (next offset %s)\n",
			humanize.Comma(s.Read), humanize.Comma(s.Emitted), humanize.Comma(s.Skipped),
			time.Since(start).Round(time.Millisecond), humanize.Comma(it.Offset()))
	}
	return runErr
}
