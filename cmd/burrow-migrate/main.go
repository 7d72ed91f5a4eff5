package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow-migrate",
	Short: "Copy Burrow state between storage backends",
	Long: `Copy the models, the outcome log and the token ledger from one storage
backend to another, e.g. from the JSON file store to BoltDB.

The source is only read. When the target is a BoltDB store that already
exists it is backed up first.

Examples:
  burrow-migrate --from file --from-dir ./burrow-data --to bolt --to-dir ./burrow-data
  burrow-migrate --from file --from-dir ./burrow-data --to bolt --to-dir /var/lib/burrow --dry-run`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().String("from", "file", "Source backend (file, bolt)")
	rootCmd.Flags().String("from-dir", "./burrow-data", "Source data directory")
	rootCmd.Flags().String("to", "bolt", "Target backend (file, bolt)")
	rootCmd.Flags().String("to-dir", "./burrow-data", "Target data directory")
	rootCmd.Flags().Bool("dry-run", false, "Show what would be migrated without making changes")
	rootCmd.Flags().String("backup", "", "Backup path for an existing BoltDB target (default: <to-dir>/burrow.db.backup)")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

func run(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	fromDir, _ := cmd.Flags().GetString("from-dir")
	to, _ := cmd.Flags().GetString("to")
	toDir, _ := cmd.Flags().GetString("to-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	backupPath, _ := cmd.Flags().GetString("backup")
	levelFlag, _ := cmd.Flags().GetString("log-level")

	level, err := log.ParseLevel(levelFlag)
	if err != nil {
		return err
	}
	log.Init(log.Config{Level: level})
	logger := log.WithComponent("migrate")

	if from == to && filepath.Clean(fromDir) == filepath.Clean(toDir) {
		return errors.New("source and target are the same store")
	}
	for _, b := range []string{from, to} {
		if b != string(storage.BackendFile) && b != string(storage.BackendBolt) {
			return fmt.Errorf("unsupported backend %q: only persistent backends can be migrated", b)
		}
	}

	src, err := storage.Open(storage.Backend(from), fromDir)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	if dryRun {
		summary, err := migrate(src, nil)
		if err != nil {
			return err
		}
		logger.Info().
			Int("models", summary.Models).
			Int("outcomes", summary.Outcomes).
			Int("ledger_buckets", summary.LedgerBuckets).
			Msg("Dry run completed, no changes made")
		return nil
	}

	if to == string(storage.BackendBolt) {
		dbPath := filepath.Join(toDir, "burrow.db")
		if _, err := os.Stat(dbPath); err == nil {
			if backupPath == "" {
				backupPath = dbPath + ".backup"
			}
			if err := copyFile(dbPath, backupPath); err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}
			logger.Info().Str("path", backupPath).Msg("Backup created")
		}
	}

	dst, err := storage.Open(storage.Backend(to), toDir)
	if err != nil {
		return fmt.Errorf("failed to open target: %w", err)
	}
	defer dst.Close()

	summary, err := migrate(src, dst)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info().
		Str("from", from).
		Str("to", to).
		Int("models", summary.Models).
		Int("outcomes", summary.Outcomes).
		Int("ledger_buckets", summary.LedgerBuckets).
		Msg("Migration completed")
	return nil
}

// Summary counts what a migration copied
type Summary struct {
	Models        int
	Outcomes      int
	LedgerBuckets int
}

// migrate copies every document from src into dst. A nil dst only counts.
// Existing outcomes in dst are kept and the copied ones appended after them.
func migrate(src, dst storage.Store) (Summary, error) {
	var summary Summary

	for _, kind := range types.ResourceKinds {
		state, err := src.LoadModel(kind)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return summary, err
		}
		if dst != nil {
			if err := dst.SaveModel(state); err != nil {
				return summary, fmt.Errorf("failed to save model %s: %w", kind, err)
			}
		}
		summary.Models++
	}

	records, err := src.LoadOutcomes()
	if err != nil {
		return summary, err
	}
	if dst != nil {
		if err := dst.AppendOutcomes(records); err != nil {
			return summary, fmt.Errorf("failed to append outcomes: %w", err)
		}
	}
	summary.Outcomes = len(records)

	ledger, err := src.LoadTokenLedger()
	if err != nil {
		return summary, err
	}
	if dst != nil {
		if err := dst.SaveTokenLedger(ledger); err != nil {
			return summary, fmt.Errorf("failed to save token ledger: %w", err)
		}
	}
	summary.LedgerBuckets = len(ledger.Hourly) + len(ledger.Daily)

	return summary, nil
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
