// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuscript-engine/internal/journal"
	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/registry"
	"github.com/pdiddy/manuscript-engine/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a manuscript workspace for a target journal",
	Long: `Init reads the journal specification (and optionally the ingestion
output with the draft fact sheet and plan text), creates the workspace
database and writes a manuscript with every section empty.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	journalPath, _ := cmd.Flags().GetString("journal")
	ingestPath, _ := cmd.Flags().GetString("ingest")

	spec, err := journal.LoadSpec(journalPath)
	if err != nil {
		return err
	}

	reg := registry.New()
	if ingestPath != "" {
		in, err := journal.LoadIngest(ingestPath)
		if err != nil {
			return err
		}
		if err := reg.RegisterIngest(in); err != nil {
			return err
		}
		if spec.GuidelineText == "" {
			spec.GuidelineText = in.GuidelineText
		}
	}

	st, err := store.Open(engineCfg.Workspace, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	m := manuscript.New(spec, reg, manuscript.WithLogger(logger))
	if err := st.Init(cmd.Context(), m); err != nil {
		return err
	}

	fmt.Printf("initialized manuscript %s for %s\n", m.ID, m.Journal.Name)
	fmt.Printf("  database:  %s\n", st.Path())
	fmt.Printf("  sections:  %d (%d required)\n", len(m.Sections()), len(m.Journal.RequiredSections))
	fmt.Printf("  facts:     %d (unconfirmed)\n", len(reg.Facts()))
	return nil
}

func init() {
	initCmd.Flags().String("journal", "", "journal specification YAML")
	initCmd.Flags().String("ingest", "", "ingestion output YAML (facts, plan_text, guideline_text)")
	_ = initCmd.MarkFlagRequired("journal")

	rootCmd.AddCommand(initCmd)
}
