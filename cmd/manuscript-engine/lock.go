// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

var lockCmd = &cobra.Command{
	Use:   "lock <section>",
	Short: "Freeze a reviewed body draft",
	Long: `Lock freezes a section's body draft. Pass the revision you reviewed
(shown by status); if the section was regenerated or locked by someone
else since, the lock is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := types.ParseSectionKind(args[0])
		if err != nil {
			return err
		}
		revision, _ := cmd.Flags().GetInt("revision")

		st, m, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		sec, err := m.Lock(kind, revision)
		if err != nil {
			return err
		}
		if err := st.SaveLock(cmd.Context(), sec, lastAudit(m)); err != nil {
			return err
		}
		fmt.Printf("locked %s at revision %d\n", kind, sec.Revision)
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <section>",
	Short: "Return a locked section to drafted(body), marking dependents stale",
	Long: `Unlock is an audited administrative action. The reason is recorded.
Every section that depends on the unlocked one and holds a draft is
marked stale; none is regenerated. Stale sections must be revalidated or
regenerated and locked again before assembly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := types.ParseSectionKind(args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")

		st, m, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		affected, err := m.Unlock(kind, reason)
		if err != nil {
			return err
		}
		sec, err := m.Section(kind)
		if err != nil {
			return err
		}
		if err := st.SaveUnlock(cmd.Context(), sec, affected, lastAudit(m)); err != nil {
			return err
		}

		fmt.Printf("unlocked %s\n", kind)
		for _, k := range affected {
			fmt.Printf("  stale    %s\n", k)
		}
		return nil
	},
}

var revalidateCmd = &cobra.Command{
	Use:   "revalidate <section>",
	Short: "Clear the stale flag after re-checking a section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := types.ParseSectionKind(args[0])
		if err != nil {
			return err
		}

		st, m, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		before, err := m.Section(kind)
		if err != nil {
			return err
		}
		if !before.Stale {
			fmt.Printf("%s is not stale\n", kind)
			return nil
		}
		if err := m.Revalidate(kind); err != nil {
			return err
		}
		if err := st.SaveRevalidate(cmd.Context(), kind, lastAudit(m)); err != nil {
			return err
		}
		fmt.Printf("revalidated %s\n", kind)
		return nil
	},
}

func init() {
	lockCmd.Flags().Int("revision", 0, "revision you reviewed (see status)")
	_ = lockCmd.MarkFlagRequired("revision")
	unlockCmd.Flags().String("reason", "", "why the section is reopened (recorded in the audit trail)")
	_ = unlockCmd.MarkFlagRequired("reason")

	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(revalidateCmd)
}
