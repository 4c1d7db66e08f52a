package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lyzr/pubmigrate/common/bootstrap"
	"github.com/lyzr/pubmigrate/common/config"
	"github.com/lyzr/pubmigrate/common/models"
)

// tableSource is the part of the source client suggest reads
type tableSource interface {
	ListTables(ctx context.Context) ([]models.TableDescriptor, error)
	ListFields(ctx context.Context, table string) ([]models.FieldDescriptor, error)
}

type tableSuggestion struct {
	Table      string                `json:"table"`
	EntityType string                `json:"entity_type,omitempty"`
	Mappings   []models.FieldMapping `json:"mappings"`
	Unmapped   []string              `json:"unmapped"`
}

func newSuggestCmd() *cobra.Command {
	var tables []string

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Print the field mapping and entity type chosen for each source table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Source.BaseID == "" || cfg.Source.APIKey == "" {
				return withCode(exitUsage, fmt.Errorf("missing required settings: SOURCE_BASE_ID, SOURCE_API_KEY"))
			}
			if len(tables) == 0 {
				tables = cfg.Source.Tables
			}
			return runSuggest(cmd.Context(), cfg, tables)
		},
	}

	cmd.Flags().StringSliceVar(&tables, "table", nil, "Source table name or id (repeatable)")
	return cmd
}

func runSuggest(ctx context.Context, cfg *config.Config, tables []string) error {
	cfg.Migration.DryRun = true
	components, c, err := setup(ctx, cfg, bootstrap.WithoutDB(), bootstrap.WithoutTelemetry())
	if err != nil {
		return err
	}
	defer components.Shutdown(context.Background())

	descriptors, err := suggestTables(ctx, c.Source, tables)
	if err != nil {
		return withCode(exitSchema, err)
	}

	// Types are optional: without target credentials only field mappings are shown
	var types []models.EntityType
	if cfg.Target.CommunitySlug != "" && cfg.Target.APIKey != "" {
		if types, err = c.Target.ListTypes(ctx); err != nil {
			components.Logger.Warn("failed to list target types", "error", err)
		}
	}

	for _, table := range descriptors {
		tm := c.Mapper.ForTable(ctx, table)
		out := tableSuggestion{
			Table:    table.Name,
			Mappings: tm.Mappings,
			Unmapped: []string{},
		}
		for _, f := range tm.Unmapped {
			out.Unmapped = append(out.Unmapped, f.Name)
		}
		if t, ok := c.Types.Resolve(table.Name, types); ok {
			out.EntityType = t.Name
		}

		if err := writeJSONLine(out); err != nil {
			return err
		}
	}
	return nil
}

// suggestTables returns the tables to analyze. A single requested table is
// read on its own; otherwise the base is listed and filtered by name or id.
func suggestTables(ctx context.Context, src tableSource, tables []string) ([]models.TableDescriptor, error) {
	if len(tables) == 1 {
		fields, err := src.ListFields(ctx, tables[0])
		if err != nil {
			return nil, fmt.Errorf("failed to list fields of %s: %w", tables[0], err)
		}
		return []models.TableDescriptor{{Name: tables[0], Fields: fields}}, nil
	}

	all, err := src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list source tables: %w", err)
	}
	if len(tables) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool, len(tables))
	for _, t := range tables {
		wanted[t] = true
	}
	out := make([]models.TableDescriptor, 0, len(tables))
	for _, table := range all {
		if wanted[table.Name] || wanted[table.ID] {
			out = append(out, table)
		}
	}
	return out, nil
}
