package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func validateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <code>",
		Short: "Check whether a scanned crate or batch code is well formed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			result, err := opts.client().ValidateCode(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to validate code: %w", err)
			}

			out := cmd.OutOrStdout()
			if !result.Valid {
				fmt.Fprintf(out, "%s %s: %s\n", errColor.Sprint("INVALID"), result.Code, result.Reason)
				return errInvalidCode
			}

			fmt.Fprintf(out, "%s %s\n", okColor.Sprint("VALID"), result.Normalized)
			fmt.Fprintf(out, "  Type:     %s (%s format)\n", result.Type, result.Format)
			if result.IssuedOn != "" {
				fmt.Fprintf(out, "  Issued:   %s\n", result.IssuedOn)
				fmt.Fprintf(out, "  Sequence: %d\n", result.Sequence)
			}
			return nil
		},
	}
}
