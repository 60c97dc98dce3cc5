package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kasbahsoft/comptaflow/internal/common"
)

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Register an invoice document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := currentSession()
			if err != nil {
				return err
			}
			engine, cleanup, err := initEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			inv, err := engine.Upload(cmd.Context(), sess, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded %s as invoice %s (%s)\n", inv.OriginalName, inv.ID, inv.Status)
			return nil
		},
	}
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <invoice-id>",
		Short: "Extract header and lines from an uploaded invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := currentSession()
			if err != nil {
				return err
			}
			engine, cleanup, err := initEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			inv, err := engine.Extract(cmd.Context(), sess, args[0])
			var dup *common.DuplicateError
			if errors.As(err, &dup) {
				fmt.Printf("Extraction aborted: %v\n", dup)
				return err
			}
			if err != nil {
				return err
			}

			fmt.Printf("Extracted invoice %s: n°%s, %s, TTC %s\n",
				inv.ID, orDash(inv.InvoiceNumber), orDash(inv.SupplierName), nullDecString(inv.TotalTTC))
			for _, flag := range inv.ComplianceFlags {
				fmt.Printf("  [%s] %s: %s\n", flag.Severity, flag.Code, flag.Message)
			}
			return nil
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <invoice-id>",
		Short: "Assign PCM accounts to the invoice's lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireOracle(); err != nil {
				return err
			}
			sess, err := currentSession()
			if err != nil {
				return err
			}
			engine, cleanup, err := initEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := engine.Classify(cmd.Context(), sess, args[0])
			if err != nil {
				return err
			}

			source := "oracle"
			if result.FromMapping {
				source = "supplier mapping"
			}
			fmt.Printf("Classified %d line(s) via %s (%d skipped)\n",
				result.Classified, source, result.Skipped)
			for _, lineErr := range result.LineErrors {
				fmt.Printf("  line %d failed: %v\n", lineErr.LineNumber, lineErr.Err)
			}
			return nil
		},
	}
}

func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <invoice-id>",
		Short: "Generate the draft journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := currentSession()
			if err != nil {
				return err
			}
			engine, cleanup, err := initEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			entry, report, err := engine.GenerateEntries(cmd.Context(), sess, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Entry %s (%s journal, %s)\n", entry.ID, entry.JournalCode, entry.Reference)
			for _, line := range entry.Lines {
				fmt.Printf("  %-8s %-36s D %10s  C %10s\n",
					line.AccountCode, line.AccountLabel,
					line.Debit.StringFixed(2), line.Credit.StringFixed(2))
			}
			fmt.Printf("  %-46s D %10s  C %10s\n", "TOTAL",
				entry.TotalDebit.StringFixed(2), entry.TotalCredit.StringFixed(2))
			if !report.Balanced {
				fmt.Printf("WARNING: entry is unbalanced by %s; correct it before validation\n",
					report.Difference.StringFixed(2))
			}
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <invoice-id>",
		Short: "Validate the invoice's draft entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			validatedBy, _ := cmd.Flags().GetString("by")
			sess, err := currentSession()
			if err != nil {
				return err
			}
			engine, cleanup, err := initEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := engine.Validate(cmd.Context(), sess, args[0], validatedBy); err != nil {
				return err
			}
			fmt.Printf("Invoice %s validated\n", args[0])
			return nil
		},
	}
	cmd.Flags().String("by", "", "validator name (defaults to session username)")
	return cmd
}

func rejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <invoice-id>",
		Short: "Reject an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			sess, err := currentSession()
			if err != nil {
				return err
			}
			engine, cleanup, err := initEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := engine.Reject(cmd.Context(), sess, args[0], reason); err != nil {
				return err
			}
			fmt.Printf("Invoice %s rejected: %s\n", args[0], reason)
			return nil
		},
	}
	cmd.Flags().String("reason", "", "rejection reason (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
