package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kluhan/kraken/internal/config"
	"github.com/kluhan/kraken/internal/observability"
	"github.com/kluhan/kraken/pkg/manifest"
	"github.com/kluhan/kraken/pkg/store/sqlitestore"
	"github.com/kluhan/kraken/pkg/types"
)

var (
	setupSeriesDescription string
	setupSeriesStageFiles  []string
	setupSeriesFilterFile  string
)

var setupSeriesCmd = &cobra.Command{
	Use:   "setup-series <name>",
	Short: "Register a Series from one or more Stage manifests",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetupSeries,
}

func init() {
	rootCmd.AddCommand(setupSeriesCmd)
	setupSeriesCmd.Flags().StringVar(&setupSeriesDescription, "description", "", "human-readable description of the series")
	setupSeriesCmd.Flags().StringArrayVar(&setupSeriesStageFiles, "stage", nil, "path to a Stage manifest file (YAML or JSON); may be repeated")
	setupSeriesCmd.Flags().StringVar(&setupSeriesFilterFile, "filter", "", "path to a newline-delimited tag-filter pattern file")
	_ = setupSeriesCmd.MarkFlagRequired("stage")
}

func runSetupSeries(cmd *cobra.Command, args []string) error {
	name := args[0]

	ctx := cmd.Context()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("setup-series: load config: %w", err)
	}

	stages := make([]types.Stage, 0, len(setupSeriesStageFiles))
	for _, path := range setupSeriesStageFiles {
		stage, err := loadStageManifest(path)
		if err != nil {
			return fmt.Errorf("setup-series: %w", err)
		}
		stages = append(stages, stage)
	}

	tagFilters, err := loadTagFilters(setupSeriesFilterFile)
	if err != nil {
		return fmt.Errorf("setup-series: %w", err)
	}

	series := &types.Series{
		ID:          uuid.NewString(),
		Name:        name,
		Description: setupSeriesDescription,
		CreatedAt:   time.Now().UTC(),
		Allocator: types.AllocatorConfig{
			Kind:       types.AllocatorStatic,
			StepSize:   100,
			StepPeriod: time.Minute,
		},
		Stages:     stages,
		TagFilters: tagFilters,
	}

	store, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: cfg.Store.DSN})
	if err != nil {
		return fmt.Errorf("setup-series: open store: %w", err)
	}
	defer store.Close()

	if err := store.SaveSeries(ctx, series); err != nil {
		return fmt.Errorf("setup-series: save series: %w", err)
	}

	observability.CLILogger.Info("series registered")
	cmd.Printf("series %q registered with id %s (%d stage(s))\n", series.Name, series.ID, len(series.Stages))
	return nil
}

func loadStageManifest(path string) (types.Stage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Stage{}, fmt.Errorf("read stage manifest %s: %w", path, err)
	}
	m, err := manifest.LoadStageFromBytes(data, path)
	if err != nil {
		return types.Stage{}, fmt.Errorf("parse stage manifest %s: %w", path, err)
	}
	return stageFromManifest(*m), nil
}

func stageFromManifest(m manifest.StageManifest) types.Stage {
	return types.Stage{
		Name:        m.Name,
		Request:     signatureFromManifest(m.Request),
		Pipelines:   signaturesFromManifest(m.Pipelines),
		Terminators: signaturesFromManifest(m.Terminators),
		Callbacks:   signaturesFromManifest(m.Callbacks),
		Progress:    types.NewStageResult(),
	}
}

func signatureFromManifest(m manifest.SignatureManifest) types.Signature {
	return types.Signature{Name: m.TaskName, Kwargs: m.Kwargs}
}

func signaturesFromManifest(ms []manifest.SignatureManifest) []types.Signature {
	out := make([]types.Signature, 0, len(ms))
	for _, m := range ms {
		out = append(out, signatureFromManifest(m))
	}
	return out
}

func loadTagFilters(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read filter file %s: %w", path, err)
	}
	defer f.Close()

	var filters []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		filters = append(filters, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan filter file %s: %w", path, err)
	}
	return filters, nil
}
