package main

import (
	"fmt"

	"github.com/danmuck/xwire/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var (
		kind   string
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config, schema or capture template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := output
			if target == "" {
				switch kind {
				case "config":
					target = "xwire.toml"
				case "schema":
					target = "extra.xwire"
				case "capture":
					target = "capture.toml"
				default:
					return fmt.Errorf("unknown template kind: %s", kind)
				}
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s template to %s\n", kind, target)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "config", "template kind: config|schema|capture")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (defaults per kind)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
