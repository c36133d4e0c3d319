package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/solatis/logview/internal/core/db"
	"github.com/solatis/logview/internal/rules"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Manage stored views (requires --db-url)",
}

var viewSaveCmd = &cobra.Command{
	Use:   "save <NAME> <VIEW_FILE>",
	Short: "Store a view file under a name",
	Args:  cobra.ExactArgs(2),
	RunE:  runViewSave,
}

var viewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored views",
	Args:  cobra.NoArgs,
	RunE:  runViewList,
}

var viewShowCmd = &cobra.Command{
	Use:   "show <NAME>",
	Short: "Print a stored view",
	Args:  cobra.ExactArgs(1),
	RunE:  runViewShow,
}

var viewDeleteCmd = &cobra.Command{
	Use:   "delete <NAME>",
	Short: "Delete a stored view",
	Args:  cobra.ExactArgs(1),
	RunE:  runViewDelete,
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.AddCommand(viewSaveCmd, viewListCmd, viewShowCmd, viewDeleteCmd)

	viewSaveCmd.Flags().String("description", "", "view description")
	viewSaveCmd.Flags().Bool("replace", false, "replace an existing view of the same name")
	viewShowCmd.Flags().Bool("json", false, "print the view document as JSON")
}

func runViewSave(cmd *cobra.Command, args []string) error {
	description, _ := cmd.Flags().GetString("description")
	replace, _ := cmd.Flags().GetBool("replace")

	view, err := rules.LoadViewFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to load view: %w", err)
	}

	database, queries, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()
	store := db.NewViewStore(queries)

	save := store.Create
	if replace {
		save = store.Put
	}
	stored, err := save(cmd.Context(), args[0], description, view)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved view %s (%s)\n", stored.Name, stored.ID)
	return nil
}

func runViewList(cmd *cobra.Command, args []string) error {
	database, queries, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	views, err := db.NewViewStore(queries).List(cmd.Context())
	if err != nil {
		return err
	}

	tw := newTable(cmd)
	tw.AppendHeader(table.Row{"Name", "Description", "Operations", "Updated"})
	for _, v := range views {
		ops := "?"
		if parsed, err := v.View(); err == nil {
			ops = fmt.Sprint(rules.Stats(parsed).Operations)
		}
		tw.AppendRow(table.Row{v.Name, v.Description, ops, humanize.Time(v.UpdatedAt)})
	}
	tw.Render()
	return nil
}

func runViewShow(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	database, queries, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	stored, err := db.NewViewStore(queries).Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	view, err := stored.View()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		doc, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(doc))
		return nil
	}
	if stored.Description != "" {
		fmt.Fprintf(out, "# %s\n", stored.Description)
	}
	return rules.Format(out, view)
}

func runViewDelete(cmd *cobra.Command, args []string) error {
	database, queries, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.NewViewStore(queries).Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted view %s\n", args[0])
	return nil
}
