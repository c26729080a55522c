package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func weightsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "weights <batch-id|batch-code>",
		Short: "Show dispatch versus arrival weights of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			c := opts.client()
			batch, err := c.ResolveBatch(ctx, args[0])
			if err != nil {
				return describeError(args[0], err)
			}
			details, err := c.WeightDetails(ctx, batch.ID)
			if err != nil {
				return fmt.Errorf("failed to load weight details: %w", err)
			}

			out := cmd.OutOrStdout()
			s := details.Summary
			fmt.Fprintf(out, "%s  %s\n", details.BatchCode, statusLabel(string(details.Status)))
			fmt.Fprintf(out, "  Dispatched:  %.2f kg in %d crates\n", s.TotalOriginalWeight, s.TotalCrates)
			fmt.Fprintf(out, "  Reconciled:  %d crates, %.2f kg dispatched, %.2f kg on arrival\n",
				s.ReconciledCount, s.ReconciledOriginalWeight, s.TotalReconciledWeight)
			fmt.Fprintf(out, "  Loss:        %s\n\n", lossLabel(s.TotalWeightDifferential, s.WeightLossPercentage))

			if len(details.Crates) == 0 {
				fmt.Fprintln(out, "No crates in this batch.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QR CODE\tVARIETY\tDISPATCHED\tARRIVAL\tDIFF\tLOSS %")
			fmt.Fprintln(w, "-------\t-------\t----------\t-------\t----\t------")
			for _, cw := range details.Crates {
				arrival, diff, loss := "-", "-", "-"
				if cw.ReconciledWeight != nil {
					arrival = fmt.Sprintf("%.2f", *cw.ReconciledWeight)
				}
				if cw.Differential != nil {
					diff = fmt.Sprintf("%+.2f", *cw.Differential)
				}
				if cw.LossPercentage != nil {
					loss = fmt.Sprintf("%.1f", *cw.LossPercentage)
				}
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n", cw.QRCode, cw.Variety, cw.OriginalWeight, arrival, diff, loss)
			}
			return w.Flush()
		},
	}
}
