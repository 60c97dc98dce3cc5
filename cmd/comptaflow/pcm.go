package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func pcmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pcm",
		Short: "List the Plan Comptable Marocain reference accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			classFilter, _ := cmd.Flags().GetInt("class")

			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			accounts, err := store.ListPcmAccounts(cmd.Context())
			if err != nil {
				return err
			}
			for _, account := range accounts {
				if classFilter != 0 && account.Class != classFilter {
					continue
				}
				vat := ""
				if account.IsVAT {
					vat = fmt.Sprintf(" [TVA %s]", account.VATKind)
				}
				fmt.Printf("%-8s %-48s class %d %s%s\n",
					account.Code, account.Label, account.Class, account.Type, vat)
			}
			return nil
		},
	}
	cmd.Flags().Int("class", 0, "only show accounts of this PCM class (1-8)")
	return cmd
}
