// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuscript-engine/internal/journal"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Register, confirm and list the fact sheet",
	Long: `Facts manages the fact sheet: the numbers and categorical values the
manuscript may state. The sheet is editable until confirmed; after
confirmation it is frozen and every generated number is checked against it.`,
}

// --- register subcommand ---

var factsRegisterCmd = &cobra.Command{
	Use:   "register <ingest.yaml>",
	Short: "Replace the draft fact sheet with the ingestion output",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactsRegister,
}

func runFactsRegister(cmd *cobra.Command, args []string) error {
	in, err := journal.LoadIngest(args[0])
	if err != nil {
		return err
	}

	st, m, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := m.Registry.RegisterIngest(in); err != nil {
		return err
	}
	if err := st.SaveRegistry(cmd.Context(), m.Registry); err != nil {
		return err
	}
	if in.GuidelineText != "" && m.Journal.GuidelineText == "" {
		m.Journal.GuidelineText = in.GuidelineText
		if err := st.SaveJournal(cmd.Context(), m.Journal); err != nil {
			return err
		}
	}

	unknown := 0
	for _, f := range in.Facts {
		if !f.Known() {
			unknown++
		}
	}
	fmt.Printf("registered %d facts (%d unknown)\n", len(in.Facts), unknown)
	return nil
}

// --- confirm subcommand ---

var factsConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Freeze the fact sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, m, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := m.Registry.ConfirmFacts(); err != nil {
			return err
		}
		if err := st.SaveRegistry(cmd.Context(), m.Registry); err != nil {
			return err
		}
		fmt.Printf("fact sheet confirmed (%d facts)\n", len(m.Registry.Facts()))
		return nil
	},
}

// --- show subcommand ---

var factsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the fact sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, m, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		facts := m.Registry.Facts()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(facts)
		}
		return printFacts(facts, m.Registry.FactsConfirmed())
	},
}

func printFacts(facts []types.Fact, confirmed bool) error {
	if len(facts) == 0 {
		fmt.Println("No facts registered.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-30s  %-11s  %-30s  %-6s  %s\n", "Key", "Kind", "Value", "Source", "Sections")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, f := range facts {
		value := f.String()
		if len(value) > 30 {
			value = value[:27] + "..."
		}
		sections := "all"
		if len(f.Sections) > 0 {
			names := make([]string, len(f.Sections))
			for i, s := range f.Sections {
				names[i] = string(s)
			}
			sections = strings.Join(names, ",")
		}
		fmt.Fprintf(os.Stdout, "%-30s  %-11s  %-30s  %-6s  %s\n", f.Key, f.Kind, value, f.Provenance, sections)
	}

	state := "draft"
	if confirmed {
		state = "confirmed"
	}
	fmt.Fprintf(os.Stdout, "\n%d facts (%s)\n", len(facts), state)
	return nil
}

func init() {
	factsShowCmd.Flags().Bool("json", false, "output facts as JSON")

	factsCmd.AddCommand(factsRegisterCmd)
	factsCmd.AddCommand(factsConfirmCmd)
	factsCmd.AddCommand(factsShowCmd)

	rootCmd.AddCommand(factsCmd)
}
