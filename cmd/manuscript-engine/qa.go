// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuscript-engine/internal/assemble"
	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/qa"
	"github.com/pdiddy/manuscript-engine/internal/similarity"
)

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Check the manuscript against the journal, facts and references",
	Long: `QA runs the structural, numeric-provenance, citation and claim checks
plus the duplication checks.

By default it is a draft preview over every section that holds text,
locked or not. With --locked it checks exactly what assemble would export:
every required section must be locked and only locked text is read.
Blocking findings make the command exit non-zero; warnings must be
acknowledged at assembly time.`,
	RunE: runQA,
}

func runQA(cmd *cobra.Command, args []string) error {
	st, m, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	locked, _ := cmd.Flags().GetBool("locked")
	var report *qa.Report
	if locked {
		if report, err = lockedReport(m); err != nil {
			return err
		}
	} else {
		report = draftReport(m)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		if !locked {
			fmt.Println("draft preview: unlocked text included; run with --locked for the assembly check")
			fmt.Println()
		}
		printReport(report)
	}

	if n := len(report.Blocking()); n > 0 {
		return fmt.Errorf("%d blocking finding(s)", n)
	}
	return nil
}

// draftReport runs QA and duplication checks over every drafted section.
func draftReport(m *manuscript.Manuscript) *qa.Report {
	validator := qa.New(engineCfg.QA, qa.WithLogger(logger))
	report := validator.Check(qa.InputFrom(m))
	checker := similarity.New(engineCfg.Similarity, similarity.WithLogger(logger))
	report.Append(similarity.Findings(checker.Check(m))...)
	return report
}

// lockedReport is the review that gates assemble.
func lockedReport(m *manuscript.Manuscript) (*qa.Report, error) {
	return assemble.Review(m,
		qa.New(engineCfg.QA, qa.WithLogger(logger)),
		similarity.New(engineCfg.Similarity, similarity.WithLogger(logger)),
	)
}

func printReport(report *qa.Report) {
	if len(report.Findings) == 0 {
		fmt.Println("No findings.")
		return
	}
	for _, f := range report.Findings {
		fmt.Println(f.String())
	}
	fmt.Println()
	var counts []string
	for _, c := range report.Count() {
		counts = append(counts, fmt.Sprintf("%s: %d", c.Kind, c.Count))
	}
	fmt.Printf("%d blocking, %d warning(s)  [%s]\n",
		len(report.Blocking()), len(report.Warnings()), strings.Join(counts, ", "))
}

var similarityCmd = &cobra.Command{
	Use:   "similarity",
	Short: "Score drafted text against the plan, the guidelines and other sections",
	Long: `Similarity compares word shingles of each drafted section with the
study plan, the author guidelines and every other section, and prints the
Jaccard score of each pair. Pairs at or above the configured threshold are
flagged with sample overlapping passages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, m, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		checker := similarity.New(engineCfg.Similarity, similarity.WithLogger(logger))
		matches := checker.Check(m)

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(matches)
		}

		flaggedOnly, _ := cmd.Flags().GetBool("flagged")
		fmt.Fprintf(os.Stdout, "%-10s  %-14s  %-14s  %-6s  %-9s  %s\n", "Axis", "A", "B", "Score", "Threshold", "Flag")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 70))
		for _, mt := range matches {
			if flaggedOnly && !mt.Flagged() {
				continue
			}
			flag := ""
			if mt.Flagged() {
				flag = "!"
			}
			fmt.Fprintf(os.Stdout, "%-10s  %-14s  %-14s  %-6.3f  %-9.2f  %s\n", mt.Axis, mt.A, mt.B, mt.Score, mt.Threshold, flag)
		}
		for _, f := range similarity.Findings(matches) {
			fmt.Printf("\n%s\n", f.String())
		}
		return nil
	},
}

func init() {
	qaCmd.Flags().Bool("json", false, "output findings as JSON")
	qaCmd.Flags().Bool("locked", false, "check only locked text and require assembly readiness")
	similarityCmd.Flags().Bool("json", false, "output scores as JSON")
	similarityCmd.Flags().Bool("flagged", false, "list only flagged pairs")

	rootCmd.AddCommand(qaCmd)
	rootCmd.AddCommand(similarityCmd)
}
