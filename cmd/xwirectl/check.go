package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/danmuck/xwire/internal/observability"
	"github.com/danmuck/xwire/internal/protocol"
	"github.com/danmuck/xwire/internal/protocol/layout"
	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compile the configured schemas and list every layout",
		Long: `Compile the core schema and every file matched by schema_paths.

With --watch the schemas are recompiled whenever a schema file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := a.check(out)
			if !watch {
				return err
			}
			if err != nil {
				fmt.Fprintf(out, "check failed: %v\n", err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return a.watch(ctx, out)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "recompile when schema files change")
	return cmd
}

func (a *app) check(out io.Writer) error {
	c, err := a.loadCatalog()
	if err != nil {
		return err
	}
	writePlanTable(out, c)
	fmt.Fprintf(out, "%d definitions ok\n", c.Len())
	return nil
}

func writePlanTable(out io.Writer, c *protocol.Catalog) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tROLE\tOPCODE\tSIZE")
	for _, p := range c.Plans() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name(), p.Role().Kind, opcodeColumn(p.Role()), sizeColumn(p))
	}
	tw.Flush()
}

func opcodeColumn(role schema.Role) string {
	switch role.Kind {
	case schema.RoleRequest:
		if role.HasMinor {
			return fmt.Sprintf("%d.%d", role.Major, role.Minor)
		}
		return strconv.Itoa(int(role.Major))
	case schema.RoleReply:
		return "for " + role.Request
	case schema.RoleEvent, schema.RoleError:
		return strconv.Itoa(int(role.Code))
	default:
		return "-"
	}
}

func sizeColumn(p *layout.Plan) string {
	if p.Role().Kind == schema.RoleError {
		return strconv.Itoa(protocol.ErrorPacketSize)
	}
	if n, ok := p.ConstantSize(); ok {
		return strconv.Itoa(n)
	}
	return "variable"
}

// watch recompiles on every change to a schema file until ctx is done.
func (a *app) watch(ctx context.Context, out io.Writer) error {
	logger := observability.Logger("check")
	files, err := a.cfg.SchemaFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("nothing to watch: schema_paths is empty")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dirs := make(map[string]bool)
	for _, f := range files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch directory: %w", err)
		}
	}
	logger.Info().Int("dirs", len(dirs)).Msg("watching schema files")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".xwire") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug().Str("event", event.Op.String()).Str("file", event.Name).Msg("schema changed")
			if err := a.check(out); err != nil {
				fmt.Fprintf(out, "check failed: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("schema watcher error")
		}
	}
}
