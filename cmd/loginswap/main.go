package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/loginswap/internal/config"
	"github.com/janekbaraniewski/loginswap/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		if errors.Is(err, core.ErrCorruptSettings) {
			fmt.Fprintln(os.Stderr, dimStyle.Render("details were written to the crash note in the data directory"))
		}
		os.Exit(1)
	}
}

// appFactory builds the app for a command once flags are parsed.
type appFactory func(cmd *cobra.Command) (*app, error)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "loginswap",
		Short:         "Switch between saved logins of desktop game launchers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath(), "path to the loginswap config file")

	var appFor appFactory = func(cmd *cobra.Command) (*app, error) {
		cfg, err := config.LoadFrom(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", configPath, err)
		}
		return newApp(cmd.Context(), cfg, cmd.OutOrStdout())
	}

	root.AddCommand(
		newListCommand(appFor),
		newSwapCommand(appFor),
		newSaveCommand(appFor),
		newRenameCommand(appFor),
		newForgetCommand(appFor),
		newOrderCommand(appFor),
		newCurrentCommand(appFor),
		newWatchCommand(appFor),
		newSettingsCommand(appFor),
		newHistoryCommand(appFor),
		newDetectCommand(appFor),
		newVersionCommand(),
	)
	return root
}
