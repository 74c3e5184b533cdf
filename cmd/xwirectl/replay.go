package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/xwire/internal/observability"
	"github.com/danmuck/xwire/internal/protocol"
	"github.com/danmuck/xwire/internal/protocol/frame"
	"github.com/danmuck/xwire/internal/protocol/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// capture is the file format read by replay.
type capture struct {
	Packets []capturedPacket `toml:"packet"`
}

type capturedPacket struct {
	From string `toml:"from"`
	Hex  string `toml:"hex"`
}

func newReplayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <capture.toml>",
		Short: "Decode every packet of a recorded client/server exchange",
		Long: `Replay a capture file. Client packets are split into requests and
numbered like a connection would number them; server packets are split into
replies, events and errors, and each reply or error is decoded as the answer
to the request whose sequence number it carries.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var capt capture
			if _, err := toml.DecodeFile(args[0], &capt); err != nil {
				return fmt.Errorf("capture parse failed (%s): %w", args[0], err)
			}
			c, reg, err := a.loadMeasuredCatalog()
			if err != nil {
				return err
			}
			r := &replayer{
				catalog: c,
				ledger:  session.NewLedger(),
				limits:  a.limits(),
				out:     cmd.OutOrStdout(),
			}
			if err := r.run(capt); err != nil {
				return err
			}
			return writeMetrics(cmd.OutOrStdout(), reg)
		},
	}
	return cmd
}

type replayer struct {
	catalog *protocol.Catalog
	ledger  *session.Ledger
	limits  frame.Limits
	out     io.Writer
	count   int
}

func (r *replayer) run(capt capture) error {
	for i, p := range capt.Packets {
		b, err := parseHex(p.Hex)
		if err != nil {
			return fmt.Errorf("packet %d: %w", i+1, err)
		}
		switch strings.ToLower(strings.TrimSpace(p.From)) {
		case "client":
			err = r.client(b)
		case "server":
			err = r.server(b)
		default:
			err = fmt.Errorf("unknown direction %q", p.From)
		}
		if err != nil {
			return fmt.Errorf("packet %d: %w", i+1, err)
		}
	}
	pending := r.ledger.Pending()
	fmt.Fprintf(r.out, "pending: %d\n", len(pending))
	for _, p := range pending {
		fmt.Fprintf(r.out, "  seq=%d %s\n", p.Sequence, p.Request)
	}
	return nil
}

func (r *replayer) client(b []byte) error {
	stream := bytes.NewReader(b)
	for {
		req, err := frame.ReadRequest(stream, r.limits)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		start := time.Now()
		msg, err := r.catalog.DecodeRequest(req)
		if err != nil {
			return err
		}
		seq := r.ledger.Record(msg.Name, r.catalog.ExpectsReply(msg.Name))
		observability.LogCodec(observability.Logger("replay"), "decode", msg.Name, len(req), time.Since(start), nil)
		r.count++
		fmt.Fprintf(r.out, "#%d client  seq=%d %s\n", r.count, seq, msg.Name)
	}
}

func (r *replayer) server(b []byte) error {
	stream := bytes.NewReader(b)
	for {
		p, err := frame.ReadServerPacket(stream, r.limits)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		hint := ""
		seq, hasSeq := p.Sequence()
		if hasSeq {
			pending, ok := r.ledger.Resolve(seq)
			if !ok {
				return fmt.Errorf("%s for unknown sequence %d", p.Kind, seq)
			}
			hint = pending.Request
		}
		start := time.Now()
		msg, err := r.catalog.DecodeServerPacket(p.Bytes, hint)
		if err != nil {
			return err
		}
		observability.LogCodec(observability.Logger("replay"), "decode", msg.Name, len(p.Bytes), time.Since(start), nil)
		r.count++
		switch p.Kind {
		case frame.KindEvent:
			suffix := ""
			if msg.Synthetic {
				suffix = " (synthetic)"
			}
			fmt.Fprintf(r.out, "#%d server  event %s%s\n", r.count, msg.Name, suffix)
		default:
			r.ledger.Complete(seq)
			fmt.Fprintf(r.out, "#%d server  seq=%d %s %s (%s)\n", r.count, seq, p.Kind, msg.Name, hint)
		}
	}
}

// writeMetrics prints the codec counters gathered during the replay.
func writeMetrics(out io.Writer, reg *prometheus.Registry) error {
	if reg == nil {
		return nil
	}
	samples, err := observability.Gather(reg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "metrics:")
	for _, s := range samples {
		fmt.Fprintf(out, "  %s{%s} %g\n", s.Name, s.Labels, s.Value)
	}
	return nil
}
