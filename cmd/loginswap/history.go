package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/loginswap/internal/history"
)

func newHistoryCommand(appFor appFactory) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [platform]",
		Short: "Show recent swaps and other changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.history == nil {
				return errors.New("history is unavailable, run with LOGINSWAP_DEBUG=1 for details")
			}

			platformID := ""
			if len(args) == 1 {
				spec, err := a.catalog.Get(args[0])
				if err != nil {
					return err
				}
				platformID = spec.ID
			}
			events, err := a.history.Recent(cmd.Context(), platformID, limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("no history yet"))
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tPLATFORM\tACTION\tLOGIN\tRESULT")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(ev.OccurredAt),
					ev.Platform,
					ev.Action,
					dash(ev.Identity),
					outcomeText(ev),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func outcomeText(ev history.Event) string {
	switch ev.Outcome {
	case history.OutcomeOK:
		return okStyle.Render("ok")
	case history.OutcomePartial:
		return warnStyle.Render("partial")
	default:
		if ev.Detail != "" {
			return errorStyle.Render("failed") + " " + ev.Detail
		}
		return errorStyle.Render("failed")
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
