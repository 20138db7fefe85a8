// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuscript-engine/internal/citation"
	"github.com/pdiddy/manuscript-engine/internal/journal"
	"github.com/pdiddy/manuscript-engine/internal/refsource"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "Build and confirm the reference set",
	Long: `Refs manages the reference candidate pool and the confirmed set.
Candidates come from PubMed (and optionally OpenAlex) searches, direct
PMID fetches, or hand-edited candidate files. Confirming freezes at most
30 references; generation of section bodies requires a confirmed set.`,
}

// --- search subcommand ---

var refsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search PubMed (and OpenAlex) for candidate references",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRefsSearch,
}

func runRefsSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	query := strings.Join(args, " ")
	out, err := refsource.SearchAll(ctx, query, sources(), os.Stderr)
	if err != nil {
		return err
	}
	printCandidates(out.Candidates)
	if out.DupsRemoved > 0 {
		fmt.Printf("%d duplicate(s) removed\n", out.DupsRemoved)
	}

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := journal.WriteCandidates(path, out.Candidates); err != nil {
			return err
		}
		fmt.Printf("candidates written to %s\n", path)
	}
	if add, _ := cmd.Flags().GetBool("add"); add {
		return addCandidates(cmd, out.Candidates)
	}
	return nil
}

// --- fetch subcommand ---

var refsFetchCmd = &cobra.Command{
	Use:   "fetch <pmid>...",
	Short: "Fetch records by PMID and add them to the candidate pool",
	Long: `Fetch resolves each PMID against PubMed, falling back to OpenAlex
when it is enabled, and adds the records to the candidate pool. With
--offline no request is made: bare identifiers are added and their
details can be completed later with refs add.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRefsFetch,
}

func runRefsFetch(cmd *cobra.Command, args []string) error {
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		cands := make([]types.ReferenceCandidate, len(args))
		for i, id := range args {
			cands[i] = types.ReferenceCandidate{ID: id, Source: "offline"}
		}
		return addCandidates(cmd, cands)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	srcs := sources()
	var found []types.ReferenceCandidate
	pending := args
	for _, src := range srcs {
		if len(pending) == 0 {
			break
		}
		fmt.Fprintf(os.Stderr, "fetching %d record(s) from %s\n", len(pending), src.Name())
		out, err := refsource.FetchAll(ctx, src, pending, engineCfg.References.Concurrency, os.Stderr)
		if err != nil {
			return err
		}
		found = append(found, out.Found...)
		pending = out.Missing
	}
	if len(found) > 0 {
		if err := addCandidates(cmd, found); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d identifier(s) not found: %s", len(pending), strings.Join(pending, ", "))
	}
	return nil
}

// --- add / remove subcommands ---

var refsAddCmd = &cobra.Command{
	Use:   "add <candidates.yaml>",
	Short: "Add candidates from a YAML file to the pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cands, err := journal.LoadCandidates(args[0])
		if err != nil {
			return err
		}
		return addCandidates(cmd, cands)
	},
}

var refsRemoveCmd = &cobra.Command{
	Use:   "remove <pmid>...",
	Short: "Remove candidates from the pool",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, m, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		for _, id := range args {
			if err := m.Registry.RemoveCandidate(id); err != nil {
				return err
			}
		}
		if err := st.SaveRegistry(cmd.Context(), m.Registry); err != nil {
			return err
		}
		fmt.Printf("%d candidate(s) in pool\n", len(m.Registry.Candidates()))
		return nil
	},
}

func addCandidates(cmd *cobra.Command, cands []types.ReferenceCandidate) error {
	st, m, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := m.Registry.AddCandidates(cands...); err != nil {
		return err
	}
	if err := st.SaveRegistry(cmd.Context(), m.Registry); err != nil {
		return err
	}
	fmt.Printf("added %d candidate(s); %d in pool\n", len(cands), len(m.Registry.Candidates()))
	return nil
}

// --- confirm subcommand ---

var refsConfirmCmd = &cobra.Command{
	Use:   "confirm [pmid...]",
	Short: "Freeze the confirmed reference set",
	Long: `Confirm freezes the listed candidates (or the whole pool with --all)
as the reference set. At most 30 references may be confirmed, and every
identifier must already be in the pool.`,
	RunE: runRefsConfirm,
}

func runRefsConfirm(cmd *cobra.Command, args []string) error {
	st, m, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	ids := args
	if all, _ := cmd.Flags().GetBool("all"); all {
		ids = nil
		for _, c := range m.Registry.Candidates() {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return errors.New("no identifiers given: list PMIDs or pass --all")
	}

	for _, c := range m.Registry.Candidates() {
		if c.Title == "" && slices.Contains(ids, c.ID) {
			fmt.Fprintf(os.Stderr, "warning: %s has no bibliographic details; fetch or add it before assembly\n", c.ID)
		}
	}
	if err := m.Registry.ConfirmReferences(ids); err != nil {
		return err
	}
	if err := st.SaveRegistry(cmd.Context(), m.Registry); err != nil {
		return err
	}
	fmt.Printf("confirmed %d reference(s)\n", len(m.Registry.ConfirmedReferences()))
	return nil
}

// --- show subcommand ---

var refsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the candidate pool or the confirmed set",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, m, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		cands := m.Registry.Candidates()
		if m.Registry.ReferencesConfirmed() {
			cands = m.Registry.ConfirmedReferences()
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cands)
		}
		printCandidates(cands)
		if m.Registry.ReferencesConfirmed() {
			fmt.Println("reference set confirmed")
		}
		return nil
	},
}

func printCandidates(cands []types.ReferenceCandidate) {
	if len(cands) == 0 {
		fmt.Println("No references.")
		return
	}
	for i, c := range cands {
		fmt.Printf("%3d. PMID:%-10s %s\n", i+1, c.ID, citation.FormatVancouver(c))
	}
	fmt.Printf("\n%d reference(s)\n", len(cands))
}

func sources() []refsource.Source {
	srcs := []refsource.Source{refsource.NewPubMed(engineCfg.References, logger)}
	if engineCfg.References.EnableOpenAlex {
		srcs = append(srcs, refsource.NewOpenAlex(engineCfg.References, logger))
	}
	return srcs
}

func init() {
	refsSearchCmd.Flags().StringP("output", "o", "", "write results to a candidates YAML file")
	refsSearchCmd.Flags().Bool("add", false, "add every result to the candidate pool")
	refsFetchCmd.Flags().Bool("offline", false, "add bare identifiers without contacting any source")
	refsConfirmCmd.Flags().Bool("all", false, "confirm the whole candidate pool")
	refsShowCmd.Flags().Bool("json", false, "output references as JSON")

	refsCmd.AddCommand(refsSearchCmd)
	refsCmd.AddCommand(refsFetchCmd)
	refsCmd.AddCommand(refsAddCmd)
	refsCmd.AddCommand(refsRemoveCmd)
	refsCmd.AddCommand(refsConfirmCmd)
	refsCmd.AddCommand(refsShowCmd)

	rootCmd.AddCommand(refsCmd)
}
