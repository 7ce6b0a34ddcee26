package commands

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cuffie-gateway/sdk/go/cuffie"
)

const (
	envDaemonURL = "CUFFIE_URL"
	envAPIToken  = "CUFFIE_API_TOKEN"
)

var (
	daemonURL string
	token     string
	timeout   time.Duration
	client    *cuffie.Client
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cuffiectl",
		Short:        "Drive a cuffied gateway wallet session and sale contract",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			client, err = cuffie.NewClient(daemonURL, &http.Client{Timeout: timeout})
			if err != nil {
				return err
			}
			client.SetAccessToken(token)
			return nil
		},
	}

	defaultURL := os.Getenv(envDaemonURL)
	if defaultURL == "" {
		defaultURL = "http://127.0.0.1:8080"
	}
	root.PersistentFlags().StringVar(&daemonURL, "url", defaultURL, "daemon base URL (env "+envDaemonURL+")")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv(envAPIToken), "API bearer token (env "+envAPIToken+")")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout, including receipt waits")

	root.AddCommand(
		statusCmd(), connectCmd(), disconnectCmd(),
		priceCmd(), vestedCmd(), finishedCmd(), allowanceCmd(),
		balanceCmd(), maxAmountCmd(), windowCmd(), whitelistedCmd(), pausedCmd(),
		approveCmd(), buyCmd(), claimCmd(),
		txsCmd(),
	)
	return root
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
