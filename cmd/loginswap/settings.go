package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/janekbaraniewski/loginswap/internal/core"
	"github.com/janekbaraniewski/loginswap/internal/settings"
)

func newSettingsCommand(appFor appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change per-platform settings",
		Long: "Keys are top-level names such as `folder_path`, or dotted paths into nested objects.\n" +
			"Values are parsed as JSON when possible, so `true` and `3` keep their types.",
	}
	cmd.AddCommand(newSettingsGetCommand(appFor), newSettingsSetCommand(appFor))
	return cmd
}

func newSettingsGetCommand(appFor appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "get <platform> [key]",
		Short: "Print all settings of a platform, or one key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			spec, err := a.catalog.Get(args[0])
			if err != nil {
				return err
			}
			doc, err := a.settings.LoadDocument(spec.ID, a.engine.Defaults(spec))
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			if len(args) == 1 {
				fmt.Fprintln(a.out, string(data))
				return nil
			}
			v, err := getPath(data, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, v)
			return nil
		},
	}
}

func newSettingsSetCommand(appFor appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "set <platform> <key> <value>",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			spec, err := a.catalog.Get(args[0])
			if err != nil {
				return err
			}
			key, value := args[1], args[2]
			defaults := a.engine.Defaults(spec)
			if !strings.Contains(key, ".") {
				if err := a.settings.Set(spec.ID, defaults, key, value); err != nil {
					return err
				}
			} else {
				doc, err := a.settings.LoadDocument(spec.ID, defaults)
				if err != nil {
					return err
				}
				next, err := setPath(doc, key, value)
				if err != nil {
					return err
				}
				if err := settings.Save(a.settings.Path(spec.ID), next, false); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "%s %s = %s\n", okStyle.Render("set"), key, value)
			return nil
		},
	}
}

// getPath returns the value at a dotted path; strings are printed bare,
// everything else as JSON.
func getPath(data []byte, path string) (string, error) {
	r := gjson.GetBytes(data, path)
	if !r.Exists() {
		return "", fmt.Errorf("setting %q: %w", path, core.ErrNotFound)
	}
	if r.Type == gjson.String {
		return r.String(), nil
	}
	return r.Raw, nil
}

// setPath writes value at a dotted path of doc. value is stored as JSON
// when it parses as JSON and as a string otherwise.
func setPath(doc settings.Document, path, value string) (settings.Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if gjson.Valid(value) {
		data, err = sjson.SetRawBytes(data, path, []byte(value))
	} else {
		data, err = sjson.SetBytes(data, path, value)
	}
	if err != nil {
		return nil, fmt.Errorf("setting %q: %w", path, err)
	}
	var next settings.Document
	if err := json.Unmarshal(data, &next); err != nil {
		return nil, err
	}
	return next, nil
}
