package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kluhan/kraken/internal/config"
	"github.com/kluhan/kraken/internal/observability"
	"github.com/kluhan/kraken/pkg/store/sqlitestore"
	"github.com/kluhan/kraken/pkg/types"
)

var (
	setupTargetsTags            []string
	setupTargetsUpsertTags      bool
	setupTargetsContinueOnError bool
	setupTargetsBucketSize      int
)

var setupTargetsCmd = &cobra.Command{
	Use:   "setup-targets <file> <lang...>",
	Short: "Register Targets from a file of app IDs crossed with one or more languages",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSetupTargets,
}

func init() {
	rootCmd.AddCommand(setupTargetsCmd)
	setupTargetsCmd.Flags().StringArrayVar(&setupTargetsTags, "tag", nil, "tag to attach to every registered target; may be repeated")
	setupTargetsCmd.Flags().BoolVar(&setupTargetsUpsertTags, "upsert_tags", false, "merge --tag values into an already-registered target instead of erroring")
	setupTargetsCmd.Flags().BoolVar(&setupTargetsContinueOnError, "continue_on_error", false, "log and continue past a single target failure instead of aborting")
	setupTargetsCmd.Flags().IntVar(&setupTargetsBucketSize, "bucket_size", 500, "number of targets to process before logging progress")
}

func runSetupTargets(cmd *cobra.Command, args []string) error {
	file := args[0]
	langs := args[1:]

	appIDs, err := readAppIDs(file)
	if err != nil {
		return fmt.Errorf("setup-targets: %w", err)
	}
	if len(appIDs) == 0 {
		return fmt.Errorf("setup-targets: %s contains no app IDs", file)
	}

	ctx := cmd.Context()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("setup-targets: load config: %w", err)
	}
	store, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: cfg.Store.DSN})
	if err != nil {
		return fmt.Errorf("setup-targets: open store: %w", err)
	}
	defer store.Close()

	var registered, merged, skipped int
	processed := 0
	for _, appID := range appIDs {
		for _, lang := range langs {
			kwargs := map[string]any{"app_id": appID, "lang": lang}

			exists, err := store.Exists(ctx, kwargs)
			if err != nil {
				if err := handleSetupTargetsError(cmd, appID, lang, fmt.Errorf("check existence: %w", err)); err != nil {
					return err
				}
				continue
			}

			switch {
			case exists && setupTargetsUpsertTags:
				if err := store.MergeTargetTags(ctx, kwargs, setupTargetsTags); err != nil {
					if err := handleSetupTargetsError(cmd, appID, lang, fmt.Errorf("merge tags: %w", err)); err != nil {
						return err
					}
					continue
				}
				merged++
			case exists:
				skipped++
			default:
				target := types.NewTarget(kwargs, setupTargetsTags)
				if err := store.Insert(ctx, target); err != nil {
					if err := handleSetupTargetsError(cmd, appID, lang, fmt.Errorf("insert: %w", err)); err != nil {
						return err
					}
					continue
				}
				registered++
			}

			processed++
			if setupTargetsBucketSize > 0 && processed%setupTargetsBucketSize == 0 {
				observability.CLILogger.Info("setup-targets progress",
					zap.Int("processed", processed),
					zap.Int("registered", registered),
				)
			}
		}
	}

	observability.CLILogger.Info("setup-targets complete")
	cmd.Printf("%d registered, %d tag-merged, %d already present (%d app id(s) x %d lang(s))\n",
		registered, merged, skipped, len(appIDs), len(langs))
	return nil
}

// handleSetupTargetsError applies --continue_on_error: logged and
// swallowed when set, otherwise returned to abort the command.
func handleSetupTargetsError(cmd *cobra.Command, appID, lang string, err error) error {
	if setupTargetsContinueOnError {
		observability.CLILogger.Warn("setup-targets: skipping target",
			zap.String("app_id", appID),
			zap.String("lang", lang),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("setup-targets: %s/%s: %w", appID, lang, err)
}

// readAppIDs reads a newline-delimited file of app IDs, one per line,
// blank lines and #-prefixed comments ignored.
func readAppIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read target file %s: %w", path, err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan target file %s: %w", path, err)
	}
	return ids, nil
}
