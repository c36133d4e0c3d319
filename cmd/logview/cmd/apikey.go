package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/solatis/logview/internal/core/auth"
	"github.com/solatis/logview/internal/core/config"
	"github.com/solatis/logview/internal/core/db"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys for the query servers",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create <NAME>",
	Short: "Create an API key (printed once)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyCreate,
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyList,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <ID>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

var apikeySecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a value for LV_HMAC_SECRET",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeySecret,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyListCmd, apikeyRevokeCmd, apikeySecretCmd)
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	key, hash, err := auth.NewAPIKey(secrets)
	if err != nil {
		return fmt.Errorf("%w (set LV_HMAC_SECRET, see 'logview apikey secret')", err)
	}

	database, queries, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	stored, err := db.NewAPIKeyStore(queries).Insert(cmd.Context(), args[0], hash)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "created API key %s (%s)\n", stored.Name, stored.ID)
	fmt.Fprintf(out, "%s\n", key)
	return nil
}

func runAPIKeyList(cmd *cobra.Command, args []string) error {
	database, queries, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	keys, err := db.NewAPIKeyStore(queries).List(cmd.Context())
	if err != nil {
		return err
	}

	tw := newTable(cmd)
	tw.AppendHeader(table.Row{"ID", "Name", "Created", "Last used", "Status"})
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt.Valid {
			lastUsed = humanize.Time(k.LastUsedAt.Time)
		}
		status := "active"
		if k.RevokedAt.Valid {
			status = "revoked " + humanize.Time(k.RevokedAt.Time)
		}
		tw.AppendRow(table.Row{k.ID, k.Name, humanize.Time(k.CreatedAt), lastUsed, status})
	}
	tw.Render()
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	database, queries, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.NewAPIKeyStore(queries).Revoke(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked API key %s\n", args[0])
	return nil
}

// runAPIKeySecret prints <secret_id>:<base64 secret>. The secret ID is a
// UUIDv7 without hyphens so newer secrets sort last.
func runAPIKeySecret(cmd *cobra.Command, args []string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}
	value := strings.ReplaceAll(id.String(), "-", "") + ":" + base64.StdEncoding.EncodeToString(secret)
	if _, _, err := config.ParseHMACSecretWithID(value); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}
