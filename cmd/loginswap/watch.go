package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/loginswap/internal/core"
	"github.com/janekbaraniewski/loginswap/internal/identity"
	"github.com/janekbaraniewski/loginswap/internal/watch"
)

func newWatchCommand(appFor appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <platform>",
		Short: "Print the signed-in login whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			spec, ks, err := a.engine.KeySource(args[0])
			if err != nil {
				return err
			}
			if ks == nil {
				return fmt.Errorf("%s has no way to tell who is signed in", spec.Name)
			}

			live := spec.LiveRootPath()
			dirs := []string{live}
			for _, rel := range spec.Layout.Folders {
				dirs = append(dirs, filepath.Join(live, filepath.FromSlash(rel)))
			}
			indexPath := filepath.Join(a.cacheDir(spec), identity.IndexFile)

			fmt.Fprintln(a.out, dimStyle.Render("watching "+live+", press Ctrl+C to stop"))
			w := watch.New(a.logger)
			return w.Run(cmd.Context(), dirs,
				func() (string, error) { return ks.Resolve(live) },
				func(c watch.Change) {
					id := core.Identity{Key: c.Key, Platform: spec.ID}
					if c.Key != "" {
						id.DisplayName = identity.LoadIndex(indexPath)[c.Key]
					}
					fmt.Fprintln(a.out, labelStyle.Render(c.At.Format("15:04:05")+" ")+describeIdentity(id, c.Key != ""))
				})
		},
	}
}
