package main

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <invoice-id> <line-id>",
		Short: "Manually correct an invoice line",
		Long: `Apply a partial correction to an extracted line. Only the given flags
change; setting --account marks the line as manually corrected and the
corrected account takes precedence over the classifier's from then on.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lineID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid line ID %q: %w", args[1], err)
			}

			patch, err := patchFromFlags(cmd)
			if err != nil {
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

			line, err := engine.CorrectLine(cmd.Context(), sess, args[0], lineID, patch)
			if err != nil {
				return err
			}
			fmt.Printf("Line %d: %s, HT %s, account %s\n",
				line.LineNumber, line.Description,
				line.AmountHT.StringFixed(2), orDash(line.AccountCode()))
			return nil
		},
	}

	cmd.Flags().String("description", "", "corrected description")
	cmd.Flags().String("amount-ht", "", "corrected HT amount")
	cmd.Flags().String("vat-rate", "", "corrected VAT rate (percent)")
	cmd.Flags().String("vat-amount", "", "corrected VAT amount")
	cmd.Flags().String("amount-ttc", "", "corrected TTC amount")
	cmd.Flags().String("account", "", "corrected PCM account code")
	return cmd
}

func patchFromFlags(cmd *cobra.Command) (model.LinePatch, error) {
	var patch model.LinePatch

	if cmd.Flags().Changed("description") {
		v, _ := cmd.Flags().GetString("description")
		patch.Description = &v
	}
	if cmd.Flags().Changed("account") {
		v, _ := cmd.Flags().GetString("account")
		patch.CorrectedAccountCode = &v
	}

	decimals := []struct {
		flag string
		dst  **decimal.Decimal
	}{
		{"amount-ht", &patch.AmountHT},
		{"vat-rate", &patch.VATRate},
		{"vat-amount", &patch.VATAmount},
		{"amount-ttc", &patch.AmountTTC},
	}
	for _, d := range decimals {
		if !cmd.Flags().Changed(d.flag) {
			continue
		}
		raw, _ := cmd.Flags().GetString(d.flag)
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return patch, fmt.Errorf("invalid --%s value %q: %w", d.flag, raw, err)
		}
		*d.dst = &value
	}
	return patch, nil
}

func correctEntryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct-entry <invoice-id> <entry-line-id>",
		Short: "Manually correct a draft journal entry line",
		Long: `Apply a partial correction to one posting line of a draft entry. Only
the given flags change. Validated entries are immutable. The entry's
totals are refreshed from its lines; an unbalanced correction is caught
at validation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lineID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry line ID %q: %w", args[1], err)
			}

			patch, err := entryPatchFromFlags(cmd)
			if err != nil {
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

			line, err := engine.CorrectEntryLine(cmd.Context(), sess, args[0], lineID, patch)
			if err != nil {
				return err
			}
			fmt.Printf("Posting %d: %s %s, debit %s, credit %s\n",
				line.Position, line.AccountCode, line.AccountLabel,
				line.Debit.StringFixed(2), line.Credit.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().String("account", "", "corrected account code")
	cmd.Flags().String("label", "", "corrected account label")
	cmd.Flags().String("debit", "", "corrected debit amount")
	cmd.Flags().String("credit", "", "corrected credit amount")
	cmd.Flags().String("counterparty", "", "corrected counterparty name")
	return cmd
}

func entryPatchFromFlags(cmd *cobra.Command) (model.EntryLinePatch, error) {
	var patch model.EntryLinePatch

	strings := []struct {
		flag string
		dst  **string
	}{
		{"account", &patch.AccountCode},
		{"label", &patch.AccountLabel},
		{"counterparty", &patch.Counterparty},
	}
	for _, s := range strings {
		if !cmd.Flags().Changed(s.flag) {
			continue
		}
		v, _ := cmd.Flags().GetString(s.flag)
		*s.dst = &v
	}

	decimals := []struct {
		flag string
		dst  **decimal.Decimal
	}{
		{"debit", &patch.Debit},
		{"credit", &patch.Credit},
	}
	for _, d := range decimals {
		if !cmd.Flags().Changed(d.flag) {
			continue
		}
		raw, _ := cmd.Flags().GetString(d.flag)
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return patch, fmt.Errorf("invalid --%s value %q: %w", d.flag, raw, err)
		}
		*d.dst = &value
	}
	return patch, nil
}
