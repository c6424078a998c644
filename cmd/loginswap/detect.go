package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/loginswap/internal/detect"
	"github.com/janekbaraniewski/loginswap/internal/platform"
)

func newDetectCommand(appFor appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Find installed launchers and saved logins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := detect.Detect(cmd.Context(), a.catalog.For(runtime.GOOS), detect.Options{
				Folder: func(spec platform.Spec) string {
					_, p, err := a.platformSettings(spec.ID)
					if err != nil {
						return spec.DefaultFolderPath()
					}
					return p.FolderPath
				},
				Running:   a.procs.Running,
				CacheRoot: a.cfg.CacheDir,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, res.Summary())
			return nil
		},
	}
}
