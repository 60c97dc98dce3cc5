package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage learned supplier-to-account mappings",
	}
	cmd.AddCommand(mappingsListCmd())
	cmd.AddCommand(mappingsDeleteCmd())
	return cmd
}

func mappingsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the cabinet's supplier mappings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := currentSession()
			if err != nil {
				return err
			}
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			mappings, err := store.ListSupplierMappings(cmd.Context(), sess.CabinetID)
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				fmt.Println("No supplier mappings learned yet")
				return nil
			}
			for _, m := range mappings {
				fmt.Printf("%-18s -> %-8s (used %d times, updated %s)\n",
					m.SupplierICE, m.AccountCode, m.UseCount, m.LastUpdated.Format("02/01/2006"))
			}
			return nil
		},
	}
}

func mappingsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <supplier-ice>",
		Short: "Forget a learned supplier mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := currentSession()
			if err != nil {
				return err
			}
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteSupplierMapping(cmd.Context(), sess.CabinetID, args[0]); err != nil {
				return err
			}
			fmt.Printf("Mapping for supplier %s deleted\n", args[0])
			return nil
		},
	}
}
