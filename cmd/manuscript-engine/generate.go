// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/manuscript-engine/internal/citation"
	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/orchestrate"
	"github.com/pdiddy/manuscript-engine/internal/qa"
	"github.com/pdiddy/manuscript-engine/internal/store"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate [section]",
	Short: "Draft one section, or every section, with the outline or body pass",
	Long: `Generate drafts a section with Claude. The outline pass needs the
fact sheet and the outlines of upstream sections; the body pass also
needs the confirmed reference set and the section's own outline.

With --all every unlocked section is drafted in dependency order
(Methods, Results, Introduction, Discussion, Conclusion, Abstract, Cover
Letter). Sections that already hold the requested pass are skipped unless
--force is given. Locked sections are never regenerated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	force, _ := cmd.Flags().GetBool("force")
	phaseName, _ := cmd.Flags().GetString("phase")

	if all == (len(args) == 1) {
		return errors.New("name one section or pass --all")
	}
	phase, err := types.ParsePhase(phaseName)
	if err != nil {
		return err
	}
	cfg := engineCfg.Generation
	if cfg.APIKey == "" {
		return errors.New("no Anthropic API key: set ANTHROPIC_API_KEY, generation.api_key, or .secrets/anthropic-api-key")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	st, m, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	gen := &orchestrate.ClaudeGenerator{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Client:    &http.Client{},
	}
	orch := orchestrate.New(m, gen, cfg, orchestrate.WithLogger(logger))

	before := revisions(m)
	var runErr error
	if all {
		summary, err := orch.Run(ctx, phase, orchestrate.RunOptions{Force: force}, os.Stdout)
		fmt.Printf("\ngenerated: %d, skipped: %d\n", len(summary.Generated), len(summary.Skipped))
		runErr = err
	} else {
		kind, err := types.ParseSectionKind(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("generating %s (%s)\n", kind, phase)
		sec, err := orch.Generate(ctx, kind, phase)
		if err == nil {
			fmt.Printf("drafted    %s (revision %d, %d words)\n", kind, sec.Revision, qa.WordCount(citation.Strip(sec.Text)))
		}
		runErr = err
	}

	// Drafts produced before a failure are kept.
	if err := saveDrafts(cmd, st, m, before); err != nil {
		return err
	}
	return runErr
}

func revisions(m *manuscript.Manuscript) map[types.SectionKind]int {
	out := make(map[types.SectionKind]int)
	for _, s := range m.Sections() {
		out[s.Kind] = s.Revision
	}
	return out
}

func saveDrafts(cmd *cobra.Command, st *store.Store, m *manuscript.Manuscript, before map[types.SectionKind]int) error {
	for _, s := range m.Sections() {
		if s.Revision == before[s.Kind] {
			continue
		}
		if err := st.SaveDraft(cmd.Context(), s, before[s.Kind]); err != nil {
			return err
		}
		logger.Debug("persisted draft", zap.String("section", string(s.Kind)), zap.Int("revision", s.Revision))
	}
	return nil
}

func init() {
	generateCmd.Flags().Bool("all", false, "draft every unlocked section in dependency order")
	generateCmd.Flags().String("phase", "outline", "generation pass: outline or body")
	generateCmd.Flags().Bool("force", false, "regenerate sections that already hold the requested pass")

	rootCmd.AddCommand(generateCmd)
}
