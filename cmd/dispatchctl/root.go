package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/client"
)

const defaultAPIURL = "http://localhost:8080"

type rootOptions struct {
	apiURL  string
	userID  string
	timeout time.Duration
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.apiURL, client.WithUserID(o.userID))
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "dispatchctl",
		Short: "Inspect mango dispatch batches and reconciliation",
		Long: `dispatchctl talks to the dispatch service API.

Batches can be referenced by id or by their BT-MMDDYY-NNN code.`,
		SilenceUsage: true,
	}

	apiURL := os.Getenv("DISPATCH_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api", apiURL, "dispatch API base URL (env DISPATCH_API_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.userID, "user", os.Getenv("DISPATCH_USER_ID"), "operator id sent as X-User-ID")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-command timeout")

	rootCmd.AddCommand(batchCmd(opts))
	rootCmd.AddCommand(statusCmd(opts))
	rootCmd.AddCommand(weightsCmd(opts))
	rootCmd.AddCommand(validateCmd(opts))

	return rootCmd
}
