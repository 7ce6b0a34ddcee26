package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cuffie-gateway/sdk/go/cuffie"
)

func priceCmd() *cobra.Command {
	return readCmd("price", "Read the current sale price", func(ctx context.Context) (cuffie.Value, error) {
		return client.Price(ctx)
	})
}

func vestedCmd() *cobra.Command {
	return readCmd("vested", "Read the vested amount of the selected account", func(ctx context.Context) (cuffie.Value, error) {
		return client.Vested(ctx)
	})
}

func finishedCmd() *cobra.Command {
	return readCmd("finished", "Read the vesting end timestamp of the selected account", func(ctx context.Context) (cuffie.Value, error) {
		return client.VestingFinishedAt(ctx)
	})
}

func allowanceCmd() *cobra.Command {
	return readCmd("allowance", "Read the stablecoin allowance granted to the sale contract", func(ctx context.Context) (cuffie.Value, error) {
		return client.Allowance(ctx)
	})
}

func balanceCmd() *cobra.Command {
	return readCmd("balance", "Read the stablecoin balance of the selected account", func(ctx context.Context) (cuffie.Value, error) {
		return client.Balance(ctx)
	})
}

func maxAmountCmd() *cobra.Command {
	return readCmd("max-amount", "Read the per-account purchase cap", func(ctx context.Context) (cuffie.Value, error) {
		return client.MaxAmount(ctx)
	})
}

func windowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "window",
		Short: "Read the sale start and end timestamps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := client.SaleWindow(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "start: %s\nend: %s\n", w.Start, w.End)
			return nil
		},
	}
}

func whitelistedCmd() *cobra.Command {
	return flagCmd("whitelisted", "Check whether the selected account is whitelisted", func(ctx context.Context) (cuffie.Flag, error) {
		return client.Whitelisted(ctx)
	})
}

func pausedCmd() *cobra.Command {
	return flagCmd("paused", "Check whether the sale is paused", func(ctx context.Context) (cuffie.Flag, error) {
		return client.Paused(ctx)
	})
}

func flagCmd(use, short string, call func(ctx context.Context) (cuffie.Flag, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := call(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %t\n", f.Method, f.Value)
			return nil
		},
	}
}

func readCmd(use, short string, call func(ctx context.Context) (cuffie.Value, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := call(commandContext(cmd))
			if err != nil {
				return err
			}
			if v.Formatted != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", v.Method, v.Formatted, v.Value)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", v.Method, v.Value)
			return nil
		},
	}
}

func approveCmd() *cobra.Command {
	return amountCmd("approve <amount>", "Approve the sale contract to spend <amount> stablecoins", func(ctx context.Context, amount string, wait bool) (cuffie.Transaction, error) {
		return client.Approve(ctx, amount, wait)
	})
}

func buyCmd() *cobra.Command {
	return amountCmd("buy <amount>", "Buy tokens for <amount> stablecoins", func(ctx context.Context, amount string, wait bool) (cuffie.Transaction, error) {
		return client.Buy(ctx, amount, wait)
	})
}

func amountCmd(use, short string, call func(ctx context.Context, amount string, wait bool) (cuffie.Transaction, error)) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := call(commandContext(cmd), args[0], wait)
			if err != nil {
				return err
			}
			printTransaction(cmd.OutOrStdout(), tx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the transaction is mined")
	return cmd
}

func claimCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim unlocked tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := client.Claim(commandContext(cmd), wait)
			if err != nil {
				return err
			}
			printTransaction(cmd.OutOrStdout(), tx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the transaction is mined")
	return cmd
}

func printTransaction(w io.Writer, tx cuffie.Transaction) {
	fmt.Fprintf(w, "%s submitted: %s\n", tx.Method, tx.Hash)
	if tx.Receipt != nil {
		fmt.Fprintf(w, "mined in block %s, status %d, gas used %d\n", tx.Receipt.BlockNumber, tx.Receipt.Status, tx.Receipt.GasUsed)
	}
}
