package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

func auditCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report links whose visit counter differs from their click rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			_, err = auditVisits(cmd.Context(), repo, fix, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "reset drifted counters to the click count")
	return cmd
}

// auditVisits prints every drifted link and returns how many there were.
func auditVisits(ctx context.Context, repo ports.LinkRepository, fix bool, w io.Writer) (int, error) {
	drift, err := repo.FindVisitDrift(ctx)
	if err != nil {
		return 0, err
	}
	if len(drift) == 0 {
		fmt.Fprintln(w, "No drift found")
		return 0, nil
	}

	for _, d := range drift {
		fmt.Fprintf(w, "%s\tvisits=%d\tclicks=%d\n", d.Code, d.Visits, d.Clicks)
		if !fix {
			continue
		}
		if err := repo.SyncVisits(ctx, d.LinkID); err != nil {
			return len(drift), err
		}
	}
	if fix {
		fmt.Fprintf(w, "Fixed %d links\n", len(drift))
	}
	return len(drift), nil
}
