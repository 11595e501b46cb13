package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	schemasassets "github.com/kluhan/kraken/internal/assets/schemas"
)

var showStageSchemaCmd = &cobra.Command{
	Use:   "show-stage-schema",
	Short: "Print the Stage manifest JSON Schema",
	Long: `Prints the embedded JSON Schema a Stage manifest must validate
against, for editor support or ad-hoc validation outside kraken.`,
	RunE: runShowStageSchema,
}

func init() {
	rootCmd.AddCommand(showStageSchemaCmd)
}

func runShowStageSchema(cmd *cobra.Command, args []string) error {
	var pretty map[string]any
	if err := json.Unmarshal(schemasassets.StageManifestSchema, &pretty); err != nil {
		return fmt.Errorf("show-stage-schema: embedded schema is not valid JSON: %w", err)
	}
	encoded, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return fmt.Errorf("show-stage-schema: encode schema: %w", err)
	}
	cmd.Println(string(encoded))
	return nil
}
