package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/api/dto"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/client"
)

func batchCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect batches",
	}
	cmd.AddCommand(batchGetCmd(opts))
	cmd.AddCommand(batchListCmd(opts))
	return cmd
}

func batchGetCmd(opts *rootOptions) *cobra.Command {
	var showCrates bool

	cmd := &cobra.Command{
		Use:   "get <batch-id|batch-code>",
		Short: "Show one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			c := opts.client()
			batch, err := c.ResolveBatch(ctx, args[0])
			if err != nil {
				return describeError(args[0], err)
			}

			out := cmd.OutOrStdout()
			printBatch(out, batch)

			if !showCrates {
				return nil
			}
			crates, err := c.ListCrates(ctx, batch.ID)
			if err != nil {
				return fmt.Errorf("failed to list crates: %w", err)
			}
			fmt.Fprintln(out)
			printCrates(out, crates)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showCrates, "crates", false, "also list the crates of the batch")
	return cmd
}

func batchListCmd(opts *rootOptions) *cobra.Command {
	var list client.ListBatchesOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			page, err := opts.client().ListBatches(ctx, list)
			if err != nil {
				return fmt.Errorf("failed to list batches: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(page.Data) == 0 {
				fmt.Fprintln(out, "No batches found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tSTATUS\tORIGIN\tCRATES\tRECONCILED\tWEIGHT (kg)\tCREATED")
			fmt.Fprintln(w, "----\t------\t------\t------\t----------\t-----------\t-------")
			for _, b := range page.Data {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\n",
					b.Code, statusLabel(b.Status), b.OriginID,
					b.Summary.TotalCrates, b.Summary.ReconciledCount, b.Summary.TotalWeight,
					b.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			w.Flush()
			fmt.Fprintf(out, "\nPage %d of %d (%d batches)\n", page.Page, page.TotalPages, page.TotalItems)
			return nil
		},
	}

	cmd.Flags().StringVar(&list.Status, "status", "", "filter by status (open, in_transit, arrived, delivered, closed, cancelled)")
	cmd.Flags().StringVar(&list.OriginID, "origin", "", "filter by origin id")
	cmd.Flags().StringVar(&list.DestinationID, "destination", "", "filter by destination id")
	cmd.Flags().StringVar(&list.SupervisorID, "supervisor", "", "filter by supervisor id")
	cmd.Flags().IntVar(&list.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&list.PageSize, "page-size", 20, "batches per page (max 100)")
	return cmd
}

func printBatch(out io.Writer, b *dto.BatchResponse) {
	bold := color.New(color.Bold)
	fmt.Fprintf(out, "%s  %s\n", bold.Sprint(b.Code), statusLabel(b.Status))
	fmt.Fprintf(out, "  ID:          %s\n", b.ID)
	fmt.Fprintf(out, "  Origin:      %s\n", b.OriginID)
	if b.DestinationID != "" {
		fmt.Fprintf(out, "  Destination: %s\n", b.DestinationID)
	}
	if b.Transport.Mode != "" {
		fmt.Fprintf(out, "  Transport:   %s %s\n", b.Transport.Mode, b.Transport.VehicleNumber)
	}
	fmt.Fprintf(out, "  Supervisor:  %s\n", b.SupervisorID)
	if b.DepartureTime != nil {
		fmt.Fprintf(out, "  Departed:    %s\n", b.DepartureTime.Local().Format("2006-01-02 15:04"))
	}
	if b.ArrivalTime != nil {
		fmt.Fprintf(out, "  Arrived:     %s\n", b.ArrivalTime.Local().Format("2006-01-02 15:04"))
	}
	if b.CancellationReason != "" {
		fmt.Fprintf(out, "  Cancelled:   %s\n", b.CancellationReason)
	}

	s := b.Summary
	fmt.Fprintf(out, "  Crates:      %d (%d reconciled)\n", s.TotalCrates, s.ReconciledCount)
	fmt.Fprintf(out, "  Weight:      %.2f kg\n", s.TotalWeight)
	if s.ReconciledCount > 0 {
		fmt.Fprintf(out, "  Loss:        %s\n", lossLabel(s.TotalWeightDifferential, s.WeightLossPercentage))
	}
}

func printCrates(out io.Writer, crates []dto.CrateResponse) {
	if len(crates) == 0 {
		fmt.Fprintln(out, "No crates in this batch.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QR CODE\tVARIETY\tGRADE\tWEIGHT\tARRIVAL\tDIFF")
	fmt.Fprintln(w, "-------\t-------\t-----\t------\t-------\t----")
	for _, c := range crates {
		arrival, diff := "-", "-"
		if c.ReconciledWeight != nil {
			arrival = fmt.Sprintf("%.2f", *c.ReconciledWeight)
		}
		if c.WeightDifferential != nil {
			diff = fmt.Sprintf("%+.2f", *c.WeightDifferential)
		}
		grade := c.QualityGrade
		if grade == "" {
			grade = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\n", c.QRCode, c.Variety, grade, c.Weight, arrival, diff)
	}
	w.Flush()
}
