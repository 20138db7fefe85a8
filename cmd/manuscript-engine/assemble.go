// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuscript-engine/internal/assemble"
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Resolve citations and render the locked manuscript",
	Long: `Assemble requires every required section to be locked. It runs QA
and the duplication checks over the locked text, refuses to continue on
blocking findings unless --override is given, and requires
--acknowledge-warnings when any warning remains. Citation placeholders are
then numbered in order of first appearance and the document is rendered.

Formats: markdown (default), json, csl (CSL-YAML bibliography), bibtex.`,
	RunE: runAssemble,
}

func runAssemble(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	override, _ := cmd.Flags().GetBool("override")
	ack, _ := cmd.Flags().GetBool("acknowledge-warnings")

	renderer, err := assemble.RendererFor(format)
	if err != nil {
		return err
	}

	st, m, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := lockedReport(m)
	if err != nil {
		return err
	}

	doc, err := assemble.Assemble(m, report, assemble.Options{Override: override, AcknowledgeWarnings: ack})
	if err != nil {
		var blocked *assemble.BlockedError
		var unack *assemble.UnacknowledgedWarningsError
		switch {
		case errors.As(err, &blocked):
			printReport(report)
			return fmt.Errorf("%w (pass --override to export anyway)", err)
		case errors.As(err, &unack):
			printReport(report)
			return fmt.Errorf("%w (review them, then pass --acknowledge-warnings)", err)
		}
		return err
	}

	if output == "" {
		return renderer.Render(doc, os.Stdout)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := renderer.Render(doc, bw); err != nil {
		return fmt.Errorf("rendering %s: %w", format, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	fmt.Fprintf(os.Stderr, "assembled %d section(s), %d reference(s) -> %s\n", len(doc.Sections), len(doc.References), output)
	if len(doc.Acknowledged) > 0 {
		fmt.Fprintf(os.Stderr, "%d finding(s) acknowledged\n", len(doc.Acknowledged))
	}
	return nil
}

func init() {
	assembleCmd.Flags().String("format", "markdown", "output format: markdown, json, csl, bibtex")
	assembleCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
	assembleCmd.Flags().Bool("override", false, "export despite blocking QA findings")
	assembleCmd.Flags().Bool("acknowledge-warnings", false, "confirm every QA warning was reviewed")

	rootCmd.AddCommand(assembleCmd)
}
