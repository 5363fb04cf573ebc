package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"genstore/internal/app"
	"genstore/internal/config"
	"genstore/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "genstore",
	Short: "Local generation history store",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Generate a new profile ID; the store file is named after it.
		profileID := uuid.New().String()

		cfg := config.NewConfig(profileID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Profile ID: %s\n", profileID)
		fmt.Printf("Base Dir:   %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Profile ID: %s\n", cfg.ProfileID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View record counts per collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetStorageStats")
		if err != nil {
			return err
		}
		defer a.Close()

		counts := a.Service().GetStorageStats()
		if len(counts) == 0 {
			return fmt.Errorf("reading storage stats failed")
		}

		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-18s %d\n", name, counts[name])
		}
		return nil
	},
}

// get command
var getCmd = &cobra.Command{
	Use:   "get IMAGE_ID",
	Short: "Print one entry as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetUnifiedEntry")
		if err != nil {
			return err
		}
		defer a.Close()

		e := a.Service().GetUnifiedEntry(args[0])
		if e == nil {
			fmt.Println("No entry.")
			return nil
		}
		out, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding entry: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

// put command
var putCmd = &cobra.Command{
	Use:   "put FILE",
	Short: "Upsert an entry from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading entry file: %w", err)
		}
		var e store.Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("decoding entry file: %w", err)
		}

		a, err := newApp("SaveUnifiedEntry")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RecordMutation(e.ImageID); err != nil {
			return err
		}
		if !a.Service().SaveUnifiedEntry(&e) {
			a.Fail()
			return fmt.Errorf("saving entry failed")
		}
		fmt.Printf("Saved entry %s\n", e.ImageID)
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete IMAGE_ID",
	Short: "Remove one entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteUnifiedEntry")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RecordMutation(args[0]); err != nil {
			return err
		}
		if !a.Service().DeleteUnifiedEntry(args[0]) {
			a.Fail()
			return fmt.Errorf("deleting entry failed")
		}
		fmt.Printf("Deleted entry %s\n", args[0])
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list ACCOUNT_ID",
	Short: "List an account's entries, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetAllUnifiedEntries")
		if err != nil {
			return err
		}
		defer a.Close()

		entries := a.Service().GetAllUnifiedEntries(args[0], limit)
		if len(entries) == 0 {
			fmt.Println("No entries.")
			return nil
		}
		for _, e := range entries {
			prompt := e.Prompt
			if len(prompt) > 48 {
				prompt = prompt[:45] + "..."
			}
			fmt.Printf("%-24s %s  attempts:%d  %s\n",
				e.ImageID, e.UpdatedAt, len(e.Attempts), prompt)
		}
		return nil
	},
}

// clear command
var clearCmd = &cobra.Command{
	Use:   "clear ACCOUNT_ID",
	Short: "Delete all entries for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearUnifiedHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RecordMutation(args[0]); err != nil {
			return err
		}
		if !a.Service().ClearUnifiedHistory(args[0]) {
			a.Fail()
			return fmt.Errorf("clearing account failed")
		}
		fmt.Printf("Cleared history for account %s\n", args[0])
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Fold remaining legacy data into unified entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MigrateFromLegacyStorage")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RecordMutation(""); err != nil {
			return err
		}
		if !a.Service().MigrateFromLegacyStorage() {
			a.Fail()
			return fmt.Errorf("legacy migration incomplete (see log); re-run to retry")
		}
		fmt.Println("Legacy migration complete.")

		// Converted sources leave cleared collections behind; run the
		// retention sweep in the same pass.
		deleted := a.Prune()
		total := 0
		for _, n := range deleted {
			total += n
		}
		if total > 0 {
			fmt.Printf("Pruned %d record(s)\n", total)
		}
		return nil
	},
}

// prune command
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Enforce retention limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Prune")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RecordMutation(""); err != nil {
			return err
		}
		deleted := a.Prune()
		total := 0
		for _, n := range deleted {
			total += n
		}
		fmt.Printf("Pruned %d record(s)\n", total)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View store operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-24s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a consistent copy of the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Backup(args[0]); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Backed up store to %s\n", args[0])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of entries to show (0 = all)")
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(backupCmd)
}
