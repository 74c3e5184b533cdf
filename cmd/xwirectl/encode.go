package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/xwire/internal/protocol/frame"
	"github.com/spf13/cobra"
)

func newEncodeCmd(a *app) *cobra.Command {
	var (
		valuesPath string
		sets       []string
		synthetic  bool
		outPath    string
	)
	cmd := &cobra.Command{
		Use:   "encode <definition>",
		Short: "Encode field values as one message and print its bytes",
		Long: `Encode field values given in a TOML file and/or --set flags.

Values use plain TOML: integers, booleans, strings, arrays and tables.
Optional resources accept "none", wildcard fields accept "any", and
variant tables name their member with variant = "Name".

Examples:
  xwirectl encode GrabServer
  xwirectl encode UngrabCursor --set time=any
  xwirectl encode SetFocus --values focus.toml --out focus.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			values, err := encodeValues(valuesPath, sets)
			if err != nil {
				return err
			}
			c, err := a.loadCatalog()
			if err != nil {
				return err
			}
			v, err := c.Coerce(name, values)
			if err != nil {
				return err
			}
			var b []byte
			if synthetic {
				b, err = c.EncodeEvent(name, v, true)
			} else {
				b, err = c.Encode(name, v)
			}
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := writePacketFile(outPath, b, a.limits()); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatHex(b))
			return nil
		},
	}
	cmd.Flags().StringVarP(&valuesPath, "values", "f", "", "TOML file holding the field values")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as key=value (TOML syntax, repeatable)")
	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "set the synthetic bit on an event")
	cmd.Flags().StringVar(&outPath, "out", "", "also write the raw bytes to this file")
	return cmd
}

// encodeValues merges the values file with --set overrides.
func encodeValues(path string, sets []string) (map[string]any, error) {
	values := make(map[string]any)
	if path != "" {
		if _, err := toml.DecodeFile(path, &values); err != nil {
			return nil, fmt.Errorf("values parse failed (%s): %w", path, err)
		}
	}
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", kv)
		}
		values[key] = parseSetValue(strings.TrimSpace(raw))
	}
	return values, nil
}

// parseSetValue reads raw as a TOML value, falling back to a bare string so
// that none and any need no quoting.
func parseSetValue(raw string) any {
	var doc map[string]any
	if _, err := toml.Decode("v = "+raw, &doc); err == nil {
		return doc["v"]
	}
	return raw
}

func writePacketFile(path string, b []byte, limits frame.Limits) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := frame.WritePacket(f, b, limits); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
