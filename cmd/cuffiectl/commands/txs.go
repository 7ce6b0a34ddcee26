package commands

import (
	"github.com/spf13/cobra"
)

func txsCmd() *cobra.Command {
	var (
		limit   int
		account string
	)
	cmd := &cobra.Command{
		Use:   "txs",
		Short: "List submitted transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := client.Transactions(commandContext(cmd), limit, account)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records")
	cmd.Flags().StringVar(&account, "account", "", "only list transactions sent from this address")
	return cmd
}
