package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "config":
		return configTemplate, nil
	case "schema":
		return schemaTemplate, nil
	case "capture":
		return captureTemplate, nil
	default:
		return "", fmt.Errorf("unknown template kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const configTemplate = `# xwirectl configuration
include_core = true
schema_paths = ["schema/*.xwire"]

[log]
level = "info"
no_color = false

[limits]
max_request_bytes = 262140
max_reply_bytes = 16777216

[metrics]
enabled = true
`

const schemaTemplate = `// Extra message layouts compiled next to the core schema.
record Point { x: i16  y: i16 }

request ExampleDraw(200, minor = 1) {
    drawable: u32
    let count: u16 = len(points)
    _[2]
    @context(count) points: list<Point>
}
`

const captureTemplate = `# Packets replayed by "xwirectl replay". Hex may contain spaces and
# several back-to-back packets.

[[packet]]
from = "client"
hex = "2b00 0001"

[[packet]]
from = "server"
hex = """
0101 0001 0000 0000 0040 0001 0000 0000
0000 0000 0000 0000 0000 0000 0000 0000
"""
`
