package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/service"
)

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <invoice-id>",
		Short: "Show an invoice with its lines and journal entries",
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

			ctx := cmd.Context()
			inv, err := engine.GetInvoice(ctx, sess, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Invoice %s [%s]\n", inv.ID, inv.Status)
			fmt.Printf("  Number:    %s\n", orDash(inv.InvoiceNumber))
			if inv.InvoiceDate != nil {
				fmt.Printf("  Date:      %s\n", inv.InvoiceDate.Format("02/01/2006"))
			}
			fmt.Printf("  Supplier:  %s (ICE %s)\n", orDash(inv.SupplierName), orDash(inv.SupplierICE))
			fmt.Printf("  Type:      %s\n", inv.InvoiceType)
			fmt.Printf("  Totals:    HT %s  TVA %s  TTC %s\n",
				nullDecString(inv.TotalHT), nullDecString(inv.TotalTVA), nullDecString(inv.TotalTTC))
			if inv.RejectReason != "" {
				fmt.Printf("  Rejected:  %s\n", inv.RejectReason)
			}
			if inv.ValidatedBy != "" {
				fmt.Printf("  Validated: by %s\n", inv.ValidatedBy)
			}
			for _, flag := range inv.ComplianceFlags {
				fmt.Printf("  [%s] %s: %s\n", flag.Severity, flag.Code, flag.Message)
			}

			lines, err := engine.GetInvoiceLines(ctx, sess, inv.ID)
			if err != nil {
				return err
			}
			if len(lines) > 0 {
				fmt.Println("Lines:")
				for _, line := range lines {
					marker := ""
					if line.IsCorrected {
						marker = " (corrected)"
					}
					fmt.Printf("  %3d. %-40s HT %10s  TVA %5s%%  -> %s%s\n",
						line.LineNumber, line.Description,
						line.AmountHT.StringFixed(2), line.VATRate.StringFixed(0),
						orDash(line.AccountCode()), marker)
				}
			}

			entries, err := engine.GetEntries(ctx, sess, inv.ID)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				state := "draft"
				if entry.IsValidated {
					state = "validated"
				}
				fmt.Printf("Entry %s (%s, %s):\n", entry.ID, entry.JournalCode, state)
				for _, line := range entry.Lines {
					fmt.Printf("  %-8s %-36s D %10s  C %10s\n",
						line.AccountCode, line.AccountLabel,
						line.Debit.StringFixed(2), line.Credit.StringFixed(2))
				}
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the société's invoices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			sess, err := currentSession()
			if err != nil {
				return err
			}
			engine, cleanup, err := initEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			invoices, err := engine.ListInvoices(cmd.Context(), sess, service.InvoiceFilter{
				Status: model.InvoiceStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if len(invoices) == 0 {
				fmt.Println("No invoices")
				return nil
			}
			for _, inv := range invoices {
				fmt.Printf("%s  %-10s  %-20s  %-12s  TTC %10s\n",
					inv.ID, inv.Status, orDash(inv.SupplierName),
					orDash(inv.InvoiceNumber), nullDecString(inv.TotalTTC))
			}
			return nil
		},
	}
	cmd.Flags().String("status", "", "filter by status (IMPORTED, EXTRACTED, CLASSIFIED, DRAFT, VALIDATED, ERROR)")
	cmd.Flags().Int("limit", 50, "maximum invoices to list")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func nullDecString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2)
}
