package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/janekbaraniewski/loginswap/internal/core"
	"github.com/janekbaraniewski/loginswap/internal/platform"
)

func newListCommand(appFor appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list [platform]",
		Short: "List saved logins, marking the one that is signed in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			specs := a.catalog.For(runtime.GOOS)
			if len(args) == 1 {
				spec, err := a.catalog.Get(args[0])
				if err != nil {
					return err
				}
				specs = []platform.Spec{spec}
			}
			for i, spec := range specs {
				if i > 0 {
					fmt.Fprintln(a.out)
				}
				names, err := a.engine.List(spec.ID)
				if err != nil {
					return err
				}
				cur, ok, err := a.engine.Current(cmd.Context(), spec.ID)
				if err != nil {
					a.logger.Debug("could not resolve current login", zap.String("platform", spec.ID), zap.Error(err))
				}
				current := ""
				if ok {
					current = cur.DisplayName
				}
				renderAccounts(a.out, spec, names, current)
			}
			return nil
		},
	}
}

func renderAccounts(w io.Writer, spec platform.Spec, names []string, current string) {
	fmt.Fprintln(w, headerStyle.Render(spec.Name)+" "+dimStyle.Render("("+spec.ID+")"))
	if len(names) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  no saved logins"))
		return
	}
	for _, name := range names {
		if name == current {
			fmt.Fprintln(w, currentStyle.Render("  ● "+name))
			continue
		}
		fmt.Fprintln(w, valueStyle.Render("    "+name))
	}
}

func newSwapCommand(appFor appFactory) *cobra.Command {
	var launchArgs string

	cmd := &cobra.Command{
		Use:   "swap <platform> [name]",
		Short: "Switch a launcher to a saved login, or sign it out when no name is given",
		Long: "Closes the launcher, saves whoever is signed in, restores the selected login and starts the launcher again.\n" +
			"Without a name the launcher starts signed out so a new account can be added.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			target := ""
			if len(args) == 2 {
				target = args[1]
			}
			if err := a.engine.Swap(cmd.Context(), args[0], target, launchArgs); err != nil {
				return err
			}
			if target == "" {
				fmt.Fprintln(a.out, okStyle.Render("signed out"))
			} else {
				fmt.Fprintln(a.out, okStyle.Render("switched to ")+accentStyle.Render(target))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&launchArgs, "args", "", "extra arguments passed to the launcher")
	return cmd
}

func newSaveCommand(appFor appFactory) *cobra.Command {
	var imageURL string

	cmd := &cobra.Command{
		Use:   "save <platform> <name>",
		Short: "Save the login that is signed in right now under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.CaptureCurrent(cmd.Context(), args[0], args[1], imageURL); err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("saved ")+accentStyle.Render(args[1]))
			return nil
		},
	}
	cmd.Flags().StringVar(&imageURL, "image", "", "profile picture URL to download")
	return cmd
}

func newRenameCommand(appFor appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <platform> <old> <new>",
		Short: "Rename a saved login",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.Rename(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s → %s\n", okStyle.Render("renamed"), args[1], accentStyle.Render(args[2]))
			return nil
		},
	}
}

func newForgetCommand(appFor appFactory) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "forget <platform> <name>",
		Short: "Delete a saved login and its archived files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			spec, cfg, err := a.platformSettings(args[0])
			if err != nil {
				return err
			}
			if !yes && !cfg.ForgetAccountEnabled {
				return fmt.Errorf("forgetting deletes the saved files of %q; rerun with --yes or run `loginswap settings set %s forget_account_enabled true`", args[1], spec.ID)
			}
			if err := a.engine.Forget(cmd.Context(), spec.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("forgot ")+args[1])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation requirement")
	return cmd
}

func newOrderCommand(appFor appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "order <platform> <name>...",
		Short: "Set the display order of saved logins",
		Long:  "Names given come first, in the given order; the rest keep their current order after them.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.engine.List(args[0])
			if err != nil {
				return err
			}
			if err := a.engine.SaveOrder(cmd.Context(), args[0], frontOrder(args[1:], current)); err != nil {
				return err
			}
			names, err := a.engine.List(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, strings.Join(names, ", "))
			return nil
		},
	}
}

// frontOrder moves given to the front of current, keeping the relative
// order of everything else.
func frontOrder(given, current []string) []string {
	given = lo.Uniq(given)
	return append(given, lo.Without(current, given...)...)
}

func newCurrentCommand(appFor appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "current <platform>",
		Short: "Show who is signed in to a launcher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cur, ok, err := a.engine.Current(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, describeIdentity(cur, ok))
			return nil
		},
	}
}

func describeIdentity(id core.Identity, ok bool) string {
	switch {
	case !ok:
		return dimStyle.Render("nobody is signed in")
	case id.DisplayName == "":
		return warnStyle.Render("signed in, not saved yet") + dimStyle.Render(" (key "+shortKey(id.Key)+")")
	default:
		return currentStyle.Render(id.DisplayName)
	}
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12] + "…"
	}
	return key
}
