// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuscript-engine/internal/citation"
	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/qa"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show section states, registry state and assembly readiness",
	RunE:  runStatus,
}

// sectionStatus is one row of the status listing.
type sectionStatus struct {
	Section   string `json:"section"`
	State     string `json:"state"`
	Revision  int    `json:"revision"`
	Words     int    `json:"words"`
	Citations int    `json:"citations"`
	Required  bool   `json:"required"`
}

type workspaceStatus struct {
	ManuscriptID        string                  `json:"manuscript_id"`
	Journal             string                  `json:"journal"`
	Sections            []sectionStatus         `json:"sections"`
	Facts               int                     `json:"facts"`
	FactsConfirmed      bool                    `json:"facts_confirmed"`
	Candidates          int                     `json:"candidates"`
	ConfirmedReferences int                     `json:"confirmed_references"`
	ReferencesConfirmed bool                    `json:"references_confirmed"`
	AssemblyReady       bool                    `json:"assembly_ready"`
	Audit               []manuscript.AuditEvent `json:"audit,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, m, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	ws := workspaceStatus{
		ManuscriptID:        m.ID.String(),
		Journal:             m.Journal.Name,
		Facts:               len(m.Registry.Facts()),
		FactsConfirmed:      m.Registry.FactsConfirmed(),
		Candidates:          len(m.Registry.Candidates()),
		ConfirmedReferences: len(m.Registry.ConfirmedReferences()),
		ReferencesConfirmed: m.Registry.ReferencesConfirmed(),
		AssemblyReady:       m.AssemblyReady() == nil,
		Audit:               m.AuditTrail(),
	}
	for _, s := range m.Sections() {
		ws.Sections = append(ws.Sections, sectionStatus{
			Section:   string(s.Kind),
			State:     s.Label(),
			Revision:  s.Revision,
			Words:     qa.WordCount(citation.Strip(s.Text)),
			Citations: len(citation.IDs(s.Text)),
			Required:  m.Journal.Requires(s.Kind),
		})
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ws)
	}

	fmt.Printf("manuscript %s (%s)\n\n", ws.ManuscriptID, ws.Journal)
	fmt.Fprintf(os.Stdout, "%-14s  %-24s  %-8s  %-6s  %-9s  %s\n", "Section", "State", "Revision", "Words", "Citations", "Required")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, s := range ws.Sections {
		req := ""
		if s.Required {
			req = "yes"
		}
		fmt.Fprintf(os.Stdout, "%-14s  %-24s  %-8d  %-6d  %-9d  %s\n", s.Section, s.State, s.Revision, s.Words, s.Citations, req)
	}

	fmt.Printf("\nfacts:       %d (%s)\n", ws.Facts, confirmedLabel(ws.FactsConfirmed))
	fmt.Printf("references:  %d candidate(s), %d confirmed (%s)\n", ws.Candidates, ws.ConfirmedReferences, confirmedLabel(ws.ReferencesConfirmed))
	if err := m.AssemblyReady(); err != nil {
		fmt.Printf("assembly:    not ready: %v\n", err)
	} else {
		fmt.Println("assembly:    ready")
	}

	if showAudit, _ := cmd.Flags().GetBool("audit"); showAudit && len(ws.Audit) > 0 {
		fmt.Println("\naudit trail:")
		for _, ev := range ws.Audit {
			line := fmt.Sprintf("  %s  %-10s %-14s rev %d", ev.Time.Format("2006-01-02 15:04"), ev.Action, ev.Section, ev.Revision)
			if ev.Reason != "" {
				line += fmt.Sprintf("  %q", ev.Reason)
			}
			fmt.Println(line)
		}
	}
	return nil
}

func confirmedLabel(confirmed bool) string {
	if confirmed {
		return "confirmed"
	}
	return "draft"
}

func init() {
	statusCmd.Flags().Bool("json", false, "output status as JSON")
	statusCmd.Flags().Bool("audit", false, "list the audit trail")

	rootCmd.AddCommand(statusCmd)
}
