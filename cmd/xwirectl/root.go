package main

import (
	"fmt"

	"github.com/danmuck/xwire/internal/config"
	"github.com/danmuck/xwire/internal/logging"
	"github.com/danmuck/xwire/internal/observability"
	"github.com/danmuck/xwire/internal/protocol"
	"github.com/danmuck/xwire/internal/protocol/frame"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default()}
	root := &cobra.Command{
		Use:   "xwirectl",
		Short: "Compile X11 message schemas and encode or decode packets",
		Long: `xwirectl compiles X11 wire-format schemas and runs their codecs.

Examples:
  xwirectl init --kind config --output xwire.toml
  xwirectl check --config xwire.toml
  xwirectl encode GrabServer
  xwirectl decode --reply-for GetFocus "0101 0001 0000 0000 ..."
  xwirectl replay capture.toml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path (defaults apply when empty)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override: trace|debug|info|warn|error")

	root.AddCommand(
		newInitCmd(),
		newCheckCmd(a),
		newEncodeCmd(a),
		newDecodeCmd(a),
		newReplayCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	logging.ConfigureRuntimeWith(a.cfg.Log.Level, a.cfg.Log.NoColor)
	if a.logLevel != "" && !logging.SetLevel(a.logLevel) {
		return fmt.Errorf("unknown log level %q", a.logLevel)
	}
	return nil
}

func (a *app) loadCatalog(opts ...protocol.Option) (*protocol.Catalog, error) {
	files, err := a.cfg.SchemaFiles()
	if err != nil {
		return nil, err
	}
	return protocol.LoadCatalog(files, a.cfg.IncludeCore, opts...)
}

// loadMeasuredCatalog builds a catalog recording on a fresh registry when
// metrics are enabled. The registry is nil otherwise.
func (a *app) loadMeasuredCatalog() (*protocol.Catalog, *prometheus.Registry, error) {
	if !a.cfg.Metrics.Enabled {
		c, err := a.loadCatalog()
		return c, nil, err
	}
	reg := prometheus.NewRegistry()
	m, err := observability.NewCodecMetrics(reg)
	if err != nil {
		return nil, nil, err
	}
	c, err := a.loadCatalog(protocol.WithMetrics(m))
	return c, reg, err
}

func (a *app) limits() frame.Limits {
	return frame.Limits{
		MaxRequestBytes: a.cfg.Limits.MaxRequestBytes,
		MaxReplyBytes:   a.cfg.Limits.MaxReplyBytes,
	}
}
