package main

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/xwire/internal/protocol"
	"github.com/danmuck/xwire/internal/protocol/layout"
	"github.com/spf13/cobra"
)

func newDecodeCmd(a *app) *cobra.Command {
	var (
		as       string
		replyFor string
		server   bool
		inPath   string
	)
	cmd := &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode one message and print its fields as TOML",
		Long: `Decode one message given as hex (or raw bytes with --in).

Without flags the bytes are a client request picked by opcode. --server
decodes an event, --reply-for decodes a reply or error answering the named
request, and --as decodes the bytes as any named definition.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := decodeInput(args, inPath)
			if err != nil {
				return err
			}
			c, err := a.loadCatalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case as != "":
				v, err := c.Decode(as, b)
				if err != nil {
					return err
				}
				return writeTOML(out, as, v)
			case replyFor != "" || server:
				msg, err := c.DecodeServerPacket(b, replyFor)
				if err != nil {
					return err
				}
				if msg.Err != nil {
					return writeTOML(out, msg.Name+" error", errorTable(msg.Err))
				}
				label := msg.Name
				if msg.Synthetic {
					label += " (synthetic)"
				}
				return writeTOML(out, label, msg.Value)
			default:
				msg, err := c.DecodeRequest(b)
				if err != nil {
					return err
				}
				return writeTOML(out, msg.Name, msg.Value)
			}
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "decode as this definition")
	cmd.Flags().StringVar(&replyFor, "reply-for", "", "decode a server packet answering this request")
	cmd.Flags().BoolVar(&server, "server", false, "decode a server event")
	cmd.Flags().StringVar(&inPath, "in", "", "read raw bytes from this file instead of hex")
	cmd.MarkFlagsMutuallyExclusive("as", "reply-for", "server")
	return cmd
}

func decodeInput(args []string, inPath string) ([]byte, error) {
	switch {
	case inPath != "" && len(args) > 0:
		return nil, fmt.Errorf("give either hex or --in, not both")
	case inPath != "":
		return os.ReadFile(inPath)
	case len(args) == 1:
		return parseHex(args[0])
	default:
		return nil, fmt.Errorf("missing hex input")
	}
}

// writeTOML prints a comment naming the definition followed by the fields.
func writeTOML(out io.Writer, name string, v any) error {
	fmt.Fprintf(out, "# %s\n", name)
	return toml.NewEncoder(out).Encode(layout.Export(v))
}

func errorTable(e *protocol.RequestError) map[string]any {
	return map[string]any{
		"request":   e.Request,
		"kind":      e.Kind.String(),
		"name":      e.Name(),
		"code":      e.Code,
		"sequence":  e.Sequence,
		"bad_value": e.BadValue,
		"major":     e.Major,
		"minor":     e.Minor,
	}
}
