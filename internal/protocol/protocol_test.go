package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/danmuck/xwire/internal/config"
	"github.com/danmuck/xwire/internal/observability"
	"github.com/danmuck/xwire/internal/protocol/frame"
	"github.com/danmuck/xwire/internal/protocol/layout"
	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/danmuck/xwire/internal/protocol/wire"
	"github.com/danmuck/xwire/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus"
)

func loadCore(t *testing.T, opts ...Option) *Catalog {
	t.Helper()
	c, err := LoadCore(opts...)
	if err != nil {
		t.Fatalf("load core: %v", err)
	}
	return c
}

func errorPacket(code uint8, seq uint16, bad uint32, major uint8) []byte {
	b := make([]byte, ErrorPacketSize)
	b[1] = code
	binary.BigEndian.PutUint16(b[2:4], seq)
	binary.BigEndian.PutUint32(b[4:8], bad)
	b[10] = major
	return b
}

func withMinor(b []byte, minor uint16) []byte {
	binary.BigEndian.PutUint16(b[8:10], minor)
	return b
}

// checkLaws verifies the alignment and length-unit laws for one encoding.
func checkLaws(t *testing.T, c *Catalog, name string, b []byte) {
	t.Helper()
	if len(b)%4 != 0 {
		t.Fatalf("%s: %d bytes is not 4-aligned", name, len(b))
	}
	p, _ := c.Plan(name)
	switch p.Role().Kind {
	case schema.RoleRequest:
		if units := int(binary.BigEndian.Uint16(b[2:4])); units*4 != len(b) {
			t.Fatalf("%s: length field %d for %d bytes", name, units, len(b))
		}
	case schema.RoleReply:
		if units := int(binary.BigEndian.Uint32(b[4:8])); units*4 != len(b)-32 {
			t.Fatalf("%s: length field %d for %d bytes", name, units, len(b))
		}
	}
}

func TestCoreCatalogLoads(t *testing.T) {
	testlog.Start(t)

	c := loadCore(t)
	for _, name := range []string{"GrabCursor", "GrabCursorReply", "UngrabCursor", "GrabButton", "AllowEvents",
		"GrabServer", "SetFocus", "GetFocus", "GetFocusReply", "QueryExtension", "QueryExtensionReply",
		"ListExtensions", "ListExtensionsReply", "BigReqEnable", "KeyPress", "FocusIn", "KeymapNotify"} {
		if _, ok := c.Plan(name); !ok {
			t.Fatalf("core catalog missing %s", name)
		}
	}
	if !c.ExpectsReply("GetFocus") || c.ExpectsReply("GrabServer") || c.ExpectsReply("KeyPress") {
		t.Fatalf("unexpected reply expectations")
	}
	if name, ok := c.ErrorName(3); !ok || name != "Window" {
		t.Fatalf("unexpected error name for 3: %q", name)
	}
	if !bytes.Contains(CoreSource(), []byte("request GrabServer(36);")) {
		t.Fatalf("core source missing GrabServer")
	}
}

func TestEncodeLooseGrabCursor(t *testing.T) {
	testlog.Start(t)

	c := loadCore(t)
	raw := map[string]any{
		"owner_events":      true,
		"grab_window":       int64(0x200),
		"event_mask":        int64(4),
		"cursor_freeze":     int64(1),
		"keyboard_freeze":   int64(1),
		"confine_to":        "none",
		"cursor_appearance": "none",
		"time":              "any",
	}
	got, err := c.EncodeLoose("GrabCursor", raw)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		0x1a, 0x01, 0x00, 0x06,
		0x00, 0x00, 0x02, 0x00,
		0x00, 0x04, 0x01, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("bytes mismatch:\n got=%x\nwant=%x", got, want)
	}
	checkLaws(t, c, "GrabCursor", got)

	size, err := c.EncodedSize("GrabCursor", mustCoerce(t, c, "GrabCursor", raw))
	if err != nil || size != len(got) {
		t.Fatalf("encoded size=%d err=%v", size, err)
	}

	msg, err := c.DecodeRequest(got)
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	fields := msg.Value.(layout.Fields)
	if msg.Name != "GrabCursor" || fields["grab_window"] != wire.Window(0x200) || fields["owner_events"] != true {
		t.Fatalf("unexpected request: %+v", msg)
	}
	if fields["confine_to"] != wire.None[wire.Window]() || fields["time"] != wire.Any[wire.Timestamp]() {
		t.Fatalf("unexpected sentinel fields: %+v", fields)
	}
}

func mustCoerce(t *testing.T, c *Catalog, name string, raw any) any {
	t.Helper()
	v, err := c.Coerce(name, raw)
	if err != nil {
		t.Fatalf("coerce %s: %v", name, err)
	}
	return v
}

func TestCoreRoundTrips(t *testing.T) {
	testlog.Start(t)

	c := loadCore(t)
	cases := []struct {
		name  string
		value any
		want  []byte
	}{
		{name: "GrabServer", value: layout.Fields(nil), want: []byte{0x24, 0x00, 0x00, 0x01}},
		{name: "UngrabCursor", value: layout.Fields{"time": wire.Specific(wire.Timestamp(7))}, want: []byte{0x1b, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x07}},
		{name: "BigReqEnable", value: layout.Fields(nil), want: []byte{0x85, 0x00, 0x00, 0x01}},
		{name: "QueryExtension", value: layout.Fields{"name": "BIG-REQUESTS"}},
		{name: "SetFocus", value: layout.Fields{
			"revert_to": uint8(2),
			"focus":     wire.Some(wire.Window(0x400001)),
			"time":      wire.Any[wire.Timestamp](),
		}},
		{name: "ListExtensionsReply", value: layout.Fields{
			"sequence": uint16(9),
			"names":    []any{"BIG-REQUESTS", "XKEYBOARD", "RENDER"},
		}},
		{name: "GrabCursor", value: layout.Fields{
			"owner_events": false, "grab_window": wire.Window(0x200), "event_mask": uint16(0x44),
			"cursor_freeze": uint8(1), "keyboard_freeze": uint8(0), "confine_to": wire.Some(wire.Window(0x201)),
			"cursor_appearance": wire.Some(wire.Cursor(9)), "time": wire.Specific(wire.Timestamp(42)),
		}},
		{name: "GrabCursorReply", value: layout.Fields{"status": uint8(1), "sequence": uint16(5)},
			want: append([]byte{0x01, 0x01, 0x00, 0x05, 0, 0, 0, 0}, make([]byte, 24)...)},
		{name: "GrabButton", value: layout.Fields{
			"owner_events": true, "grab_window": wire.Window(0x400001), "event_mask": uint16(4),
			"cursor_freeze": uint8(1), "keyboard_freeze": uint8(1), "confine_to": wire.None[wire.Window](),
			"cursor_appearance": wire.None[wire.Cursor](), "button": wire.Any[wire.Button](), "modifiers": uint16(0x8000),
		}, want: []byte{
			0x1c, 0x01, 0x00, 0x06, 0x00, 0x40, 0x00, 0x01, 0x00, 0x04, 0x01, 0x01,
			0, 0, 0, 0, 0, 0, 0, 0, 0x00, 0x00, 0x80, 0x00,
		}},
		{name: "AllowEvents", value: layout.Fields{"mode": uint8(3), "time": wire.Any[wire.Timestamp]()}},
		{name: "GetFocus", value: layout.Fields(nil), want: []byte{0x2b, 0x00, 0x00, 0x01}},
		{name: "GetFocusReply", value: layout.Fields{
			"revert_to": uint8(1), "sequence": uint16(8), "focus": wire.Some(wire.Window(0x400001)),
		}},
		{name: "QueryExtensionReply", value: layout.Fields{
			"sequence": uint16(3), "present": true, "major_opcode": uint8(133), "first_event": uint8(0), "first_error": uint8(0),
		}, want: append([]byte{0x01, 0x00, 0x00, 0x03, 0, 0, 0, 0, 0x01, 0x85, 0x00, 0x00}, make([]byte, 20)...)},
		{name: "ListExtensions", value: layout.Fields(nil), want: []byte{0x63, 0x00, 0x00, 0x01}},
		{name: "BigReqEnableReply", value: layout.Fields{"sequence": uint16(4), "max_request_length": uint32(0x3fffff)},
			want: append([]byte{0x01, 0x00, 0x00, 0x04, 0, 0, 0, 0, 0x00, 0x3f, 0xff, 0xff}, make([]byte, 20)...)},
		{name: "FocusIn", value: layout.Fields{
			"detail": uint8(3), "sequence": uint16(11), "event": wire.Window(0x400001), "mode": uint8(0),
		}},
		{name: "KeymapNotify", value: layout.Fields{"keys": bytes.Repeat([]byte{0x10}, 31)},
			want: append([]byte{11}, bytes.Repeat([]byte{0x10}, 31)...)},
		{name: "KeyPress", value: layout.Fields{
			"detail": wire.Keycode(38), "sequence": uint16(3), "time": wire.Timestamp(1000),
			"root": wire.Window(1), "event": wire.Window(2), "child": wire.None[wire.Window](),
			"root_x": int16(-5), "root_y": int16(6), "event_x": int16(7), "event_y": int16(8),
			"state": uint16(1), "same_screen": true,
		}},
	}
	for _, tc := range cases {
		got, err := c.Encode(tc.name, tc.value)
		if err != nil {
			t.Fatalf("encode %s: %v", tc.name, err)
		}
		if tc.want != nil && !bytes.Equal(got, tc.want) {
			t.Fatalf("%s bytes mismatch:\n got=%x\nwant=%x", tc.name, got, tc.want)
		}
		checkLaws(t, c, tc.name, got)
		size, err := c.EncodedSize(tc.name, tc.value)
		if err != nil || size != len(got) {
			t.Fatalf("%s encoded size=%d len=%d err=%v", tc.name, size, len(got), err)
		}
		out, err := c.Decode(tc.name, got)
		if err != nil {
			t.Fatalf("decode %s: %v", tc.name, err)
		}
		if !reflect.DeepEqual(out, tc.value) {
			t.Fatalf("%s round trip mismatch:\n got=%#v\nwant=%#v", tc.name, out, tc.value)
		}
	}
}

func TestEncodeToAppendsOrRollsBack(t *testing.T) {
	testlog.Start(t)

	c := loadCore(t)
	w := wire.NewWriter(0)
	if err := c.EncodeTo(w, "GrabServer", nil); err != nil {
		t.Fatalf("encode GrabServer: %v", err)
	}
	if err := c.EncodeTo(w, "UngrabCursor", layout.Fields{"time": "later"}); err == nil {
		t.Fatalf("expected bad time value to fail")
	}
	if err := c.EncodeTo(w, "GetFocus", nil); err != nil {
		t.Fatalf("encode GetFocus: %v", err)
	}
	want := []byte{0x24, 0x00, 0x00, 0x01, 0x2b, 0x00, 0x00, 0x01}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("writer holds %x, want %x", w.Bytes(), want)
	}
}

func TestDecodeRequestDispatchesMinorOpcodes(t *testing.T) {
	testlog.Start(t)

	c := loadCore(t)
	msg, err := c.DecodeRequest([]byte{0x85, 0x00, 0x00, 0x01})
	if err != nil || msg.Name != "BigReqEnable" {
		t.Fatalf("unexpected dispatch: %+v err=%v", msg, err)
	}
	if _, err := c.DecodeRequest([]byte{0x85, 0x01, 0x00, 0x01}); !errors.Is(err, ErrUnknownRequest) {
		t.Fatalf("expected ErrUnknownRequest for unknown minor, got %v", err)
	}
	if _, err := c.DecodeRequest([]byte{0x7f, 0x00, 0x00, 0x01}); !errors.Is(err, ErrUnknownRequest) {
		t.Fatalf("expected ErrUnknownRequest, got %v", err)
	}
	if _, err := c.DecodeRequest([]byte{0x24, 0x00, 0x00, 0x02, 0, 0, 0, 0}); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestDecodeReplyUsesRequestHint(t *testing.T) {
	testlog.Start(t)

	c := loadCore(t)
	b := make([]byte, 32)
	b[0], b[1], b[3] = 1, 1, 1
	binary.BigEndian.PutUint32(b[8:12], 0x00400001)

	msg, err := c.DecodeReply("GetFocus", b)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	want := layout.Fields{
		"revert_to": uint8(1),
		"sequence":  uint16(1),
		"focus":     wire.Some(wire.Window(0x00400001)),
	}
	if msg.Name != "GetFocusReply" || !reflect.DeepEqual(msg.Value, want) {
		t.Fatalf("unexpected reply: %+v", msg)
	}

	if _, err := c.DecodeReply("", b); !errors.Is(err, ErrNoTypeHint) {
		t.Fatalf("expected ErrNoTypeHint, got %v", err)
	}
	if _, err := c.DecodeReply("GrabServer", b); !errors.Is(err, ErrNoReply) {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
	if _, err := c.DecodeReply("KeyPress", b); !errors.Is(err, ErrRoleMismatch) {
		t.Fatalf("expected ErrRoleMismatch, got %v", err)
	}
	if _, err := c.DecodeReply("Nope", b); !errors.Is(err, ErrUnknownDefinition) {
		t.Fatalf("expected ErrUnknownDefinition, got %v", err)
	}
	if _, err := c.DecodeReply("GetFocus", b[:20]); !errors.Is(err, wire.ErrInvalidData) {
		t.Fatalf("expected short reply to fail with ErrInvalidData, got %v", err)
	}
}

func TestDecodeEventSyntheticBit(t *testing.T) {
	testlog.Start(t)

	c := loadCore(t)
	v := layout.Fields{"detail": uint8(3), "sequence": uint16(12), "event": wire.Window(0x77), "mode": uint8(0)}
	b, err := c.EncodeEvent("FocusIn", v, true)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	if b[0] != 0x89 || len(b) != 32 {
		t.Fatalf("unexpected event bytes %x", b)
	}
	ev, err := c.DecodeEvent(b)
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Name != "FocusIn" || !ev.Synthetic || !reflect.DeepEqual(ev.Value, v) {
		t.Fatalf("unexpected event: %+v", ev)
	}

	b[0] = 0x09
	ev, err = c.DecodeEvent(b)
	if err != nil || ev.Synthetic {
		t.Fatalf("expected plain event, got %+v err=%v", ev, err)
	}
	if _, err := c.DecodeEvent([]byte{0x7e}); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
	if _, err := c.EncodeEvent("GrabServer", nil, false); !errors.Is(err, ErrRoleMismatch) {
		t.Fatalf("expected ErrRoleMismatch, got %v", err)
	}
}

func TestDecodeErrorUnion(t *testing.T) {
	testlog.Start(t)

	c := loadCore(t)
	cases := []struct {
		request string
		packet  []byte
		kind    ErrorKind
		other   string
		err     error
	}{
		{request: "SetFocus", packet: errorPacket(3, 7, 0x200, 42), kind: ErrorOther, other: "Window"},
		{request: "GrabServer", packet: errorPacket(16, 2, 0, 36), kind: ErrorLength},
		{request: "GrabServer", packet: errorPacket(11, 2, 0, 36), kind: ErrorAlloc},
		{request: "GrabServer", packet: errorPacket(17, 2, 0, 36), kind: ErrorImplementation},
		{request: "GrabServer", packet: errorPacket(3, 2, 0, 36), err: ErrUnexpectedError},
		{request: "SetFocus", packet: errorPacket(10, 2, 0, 42), err: ErrUnexpectedError},
		{request: "SetFocus", packet: errorPacket(3, 2, 0, 36), err: ErrOpcodeMismatch},
		{request: "SetFocus", packet: withMinor(errorPacket(3, 2, 0, 42), 5), kind: ErrorOther, other: "Window"},
		{request: "BigReqEnable", packet: withMinor(errorPacket(16, 2, 0, 133), 0), kind: ErrorLength},
		{request: "BigReqEnable", packet: withMinor(errorPacket(16, 2, 0, 133), 1), err: ErrOpcodeMismatch},
		{request: "", packet: errorPacket(3, 2, 0, 42), err: ErrNoTypeHint},
		{request: "SetFocus", packet: errorPacket(3, 2, 0, 42)[:20], err: wire.ErrInvalidData},
	}
	for _, tc := range cases {
		re, err := c.DecodeError(tc.request, tc.packet)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%s: expected %v, got %v", tc.request, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: decode error: %v", tc.request, err)
		}
		if re.Kind != tc.kind || re.Other != tc.other || re.Request != tc.request {
			t.Fatalf("%s: unexpected error value %+v", tc.request, re)
		}
	}

	re, err := c.DecodeError("SetFocus", errorPacket(3, 7, 0x200, 42))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if re.Sequence != 7 || re.BadValue != 0x200 || re.Major != 42 || re.Name() != "Window" {
		t.Fatalf("unexpected header fields: %+v", re)
	}

	notError := errorPacket(3, 7, 0, 42)
	notError[0] = 1
	if _, err := c.DecodeError("SetFocus", notError); !errors.Is(err, ErrNotError) {
		t.Fatalf("expected ErrNotError, got %v", err)
	}
}

func TestDecodeServerPacket(t *testing.T) {
	testlog.Start(t)

	c := loadCore(t)
	keymap := make([]byte, 32)
	keymap[0] = 11
	keymap[1] = 0xff
	msg, err := c.DecodeServerPacket(keymap, "")
	if err != nil {
		t.Fatalf("decode keymap: %v", err)
	}
	if msg.Kind != frame.KindEvent || msg.Name != "KeymapNotify" || msg.Sequence != 0 {
		t.Fatalf("unexpected keymap message: %+v", msg)
	}
	keys := msg.Value.(layout.Fields)["keys"].([]byte)
	if len(keys) != 31 || keys[0] != 0xff {
		t.Fatalf("unexpected keys %x", keys)
	}

	msg, err = c.DecodeServerPacket(errorPacket(16, 5, 0, 43), "GetFocus")
	if err != nil || msg.Kind != frame.KindError || msg.Err.Kind != ErrorLength || msg.Sequence != 5 {
		t.Fatalf("unexpected error message: %+v err=%v", msg, err)
	}

	reply := make([]byte, 32)
	reply[0] = 1
	reply[3] = 4
	msg, err = c.DecodeServerPacket(reply, "QueryExtension")
	if err != nil || msg.Kind != frame.KindReply || msg.Name != "QueryExtensionReply" || msg.Sequence != 4 {
		t.Fatalf("unexpected reply message: %+v err=%v", msg, err)
	}
	if _, err := c.DecodeServerPacket(reply, ""); !errors.Is(err, ErrNoTypeHint) {
		t.Fatalf("expected ErrNoTypeHint, got %v", err)
	}
}

func TestCatalogMetrics(t *testing.T) {
	testlog.Start(t)

	reg := prometheus.NewRegistry()
	m, err := observability.NewCodecMetrics(reg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	c := loadCore(t, WithMetrics(m))
	if _, err := c.Encode("GrabServer", nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode("GrabServer", []byte{0x24}); err == nil {
		t.Fatalf("expected short decode to fail")
	}

	samples, err := observability.Gather(reg)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := make(map[string]float64)
	for _, s := range samples {
		got[s.Name+"|"+s.Labels] = s.Value
	}
	if got["xwire_codec_messages_total|definition=GrabServer,op=encode,result=ok"] != 1 {
		t.Fatalf("missing encode sample: %+v", samples)
	}
	if got["xwire_codec_messages_total|definition=GrabServer,op=decode,result=error"] != 1 {
		t.Fatalf("missing decode error sample: %+v", samples)
	}
	if got["xwire_schema_plans|"] != float64(c.Len()) {
		t.Fatalf("unexpected plan gauge: %+v", samples)
	}
}

func TestLoadCatalogWithExtraSchema(t *testing.T) {
	testlog.Start(t)

	src, err := config.Template("schema")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	path := filepath.Join(t.TempDir(), "extra.xwire")
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	c, err := LoadCatalog([]string{path}, true)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	v := layout.Fields{
		"drawable": uint32(0x10),
		"points": []any{
			layout.Fields{"x": int16(1), "y": int16(2)},
			layout.Fields{"x": int16(-1), "y": int16(-2)},
		},
	}
	b, err := c.Encode("ExampleDraw", v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	checkLaws(t, c, "ExampleDraw", b)
	if b[0] != 200 || b[1] != 1 || len(b) != 20 {
		t.Fatalf("unexpected ExampleDraw bytes %x", b)
	}
	msg, err := c.DecodeRequest(b)
	if err != nil || msg.Name != "ExampleDraw" || !reflect.DeepEqual(msg.Value, v) {
		t.Fatalf("unexpected decode: %+v err=%v", msg, err)
	}

	if _, err := LoadCatalog([]string{path, path}, false); err == nil {
		t.Fatalf("expected duplicate definitions to fail")
	}
	var verr schema.ValidationError
	_, err = LoadCatalog([]string{path, path}, false)
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}
