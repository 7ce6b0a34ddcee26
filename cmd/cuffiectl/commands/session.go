package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cuffie-gateway/sdk/go/cuffie"
)

func statusCmd() *cobra.Command {
	return sessionCmd("status", "Print the wallet session", func(ctx context.Context) (cuffie.Session, error) {
		return client.Session(ctx)
	})
}

func connectCmd() *cobra.Command {
	return sessionCmd("connect", "Connect the wallet, replacing any current connection", func(ctx context.Context) (cuffie.Session, error) {
		return client.Connect(ctx)
	})
}

func disconnectCmd() *cobra.Command {
	return sessionCmd("disconnect", "Close the wallet session", func(ctx context.Context) (cuffie.Session, error) {
		return client.Disconnect(ctx)
	})
}

func sessionCmd(use, short string, call func(ctx context.Context) (cuffie.Session, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := call(commandContext(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !s.Connected || s.SelectedAccount == nil {
				fmt.Fprintln(out, "Not connected")
				return nil
			}
			fmt.Fprintf(out, "Connected: %s (via %s)\n", *s.SelectedAccount, s.Provider)
			return nil
		},
	}
}
