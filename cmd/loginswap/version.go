package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/loginswap/internal/appupdate"
	"github.com/janekbaraniewski/loginswap/internal/version"
)

func newVersionCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version, optionally checking for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "loginswap "+version.String())
			if !check {
				return nil
			}

			res, err := appupdate.Check(cmd.Context(), appupdate.Options{CurrentVersion: version.Current()})
			if err != nil {
				return fmt.Errorf("checking for updates: %w", err)
			}
			switch {
			case res.CurrentVersion == "":
				fmt.Fprintln(out, dimStyle.Render("development build, not checking for updates"))
			case res.UpdateAvailable:
				fmt.Fprintln(out, warnStyle.Render("update available: ")+res.LatestVersion)
				fmt.Fprintln(out, labelStyle.Render("  upgrade: ")+res.UpgradeHint)
				if res.ReleaseURL != "" {
					fmt.Fprintln(out, labelStyle.Render("  notes:   ")+res.ReleaseURL)
				}
			default:
				fmt.Fprintln(out, okStyle.Render("up to date"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	return cmd
}
