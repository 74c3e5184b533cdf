package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/xwire/internal/testutil/testlog"
)

const listExtensions = `
request ListExtensions(99);
reply ListExtensionsReply for ListExtensions {
    @sequence sequence: u16
    @metabyte let names_len: u8 = len(names)
    _[24]
    @context(names_len) names: list<str8>
    _[pad(names)]
}
`

func mustParse(t *testing.T, src string) []*Definition {
	t.Helper()
	defs, err := Parse("test.xwire", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return defs
}

func TestParseRequestAndReply(t *testing.T) {
	testlog.Start(t)
	defs := mustParse(t, listExtensions)
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	req, rep := defs[0], defs[1]
	if req.Role.Kind != RoleRequest || req.Role.Major != 99 || len(req.Items) != 0 {
		t.Fatalf("unexpected request: %+v", req.Role)
	}
	if rep.Role.Kind != RoleReply || rep.Role.Request != "ListExtensions" {
		t.Fatalf("unexpected reply role: %+v", rep.Role)
	}
	if len(rep.Items) != 5 {
		t.Fatalf("expected 5 reply items, got %d", len(rep.Items))
	}
	meta := MetabyteItem(rep.Items)
	if meta == nil || meta.Kind != ItemLet || meta.Name != "names_len" {
		t.Fatalf("unexpected metabyte item: %+v", meta)
	}
	if seq := SequenceItem(rep.Items); seq == nil || seq.Name != "sequence" {
		t.Fatalf("missing sequence item")
	}
	names := rep.Items[3]
	if names.Type.String() != "list<str8>" || names.Context.String() != "names_len" {
		t.Fatalf("unexpected list item: type=%s ctx=%v", names.Type, names.Context)
	}
	if got := rep.Items[4].Source.String(); got != "pad(names)" {
		t.Fatalf("unexpected pad formula %q", got)
	}

	if err := Validate(defs); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.Role.Reply != "ListExtensionsReply" {
		t.Fatalf("validate did not link reply, got %q", req.Role.Reply)
	}
}

func TestParseRequestHeaderForms(t *testing.T) {
	testlog.Start(t)
	defs := mustParse(t, `
error Value(2);
error Window(3);
request SetFocus(42) errors(Value, Window) { @metabyte revert_to: u8  focus: option<window>, time: any<timestamp> }
request BigReqEnable(133, minor = 0) -> BigReqEnableReply;
reply BigReqEnableReply for BigReqEnable { @sequence sequence: u16; max: u32; _[20] }
`)
	set := defs[2]
	if got := strings.Join(set.Role.Errors, ","); got != "Value,Window" {
		t.Fatalf("unexpected error set %q", got)
	}
	if set.Items[1].Type.Arg == nil || set.Items[1].Type.Arg.Name != "window" {
		t.Fatalf("option argument not parsed: %+v", set.Items[1].Type)
	}
	big := defs[3]
	if !big.Role.HasMinor || big.Role.Minor != 0 || big.Role.Major != 133 || big.Role.Reply != "BigReqEnableReply" {
		t.Fatalf("unexpected extension role: %+v", big.Role)
	}
	if err := Validate(defs); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestParseFixedArrays(t *testing.T) {
	testlog.Start(t)
	defs := mustParse(t, `event KeymapNotify(11) { keys: bytes[31] }  record Grid { @context(2) rows: list<u16[4]> }`)
	keys := defs[0].Items[0].Type
	if keys.Name != "bytes" || keys.Count != 31 || keys.String() != "bytes[31]" {
		t.Fatalf("unexpected array type %+v", keys)
	}
	rows := defs[1].Items[0].Type
	if rows.Arg == nil || rows.Arg.Count != 4 || rows.String() != "list<u16[4]>" {
		t.Fatalf("unexpected nested array type %s", rows)
	}
}

func TestParseVariantDiscriminants(t *testing.T) {
	testlog.Start(t)
	defs := mustParse(t, `variant Shape { Circle { radius: u16 }  Rect = 5 { w: u16 h: u16 }  Empty }`)
	vs := defs[0].Variants
	want := []uint8{0, 5, 6}
	for i, v := range vs {
		if v.Discriminant != want[i] {
			t.Fatalf("variant %s discriminant=%d want %d", v.Name, v.Discriminant, want[i])
		}
	}
	if len(vs[2].Items) != 0 {
		t.Fatalf("empty variant has items")
	}
}

func TestParseFormulaPrecedence(t *testing.T) {
	testlog.Start(t)
	defs := mustParse(t, `record R { n: u8  _[n * 4 + 2 - (n % 3)]  }`)
	got := defs[0].Items[1].Source.String()
	if got != "(((n * 4) + 2) - (n % 3))" {
		t.Fatalf("unexpected formula tree %s", got)
	}
}

func TestParseRejects(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"two metabytes", `request R(1) { @metabyte a: u8  @metabyte b: u8 }`, "more than one @metabyte"},
		{"sequence in request", `request R(1) { @sequence s: u16 }`, "@sequence outside"},
		{"metabyte in plain record", `record R { @metabyte a: u8 }`, "@metabyte outside"},
		{"metabyte in event without sequence", `event E(5) { @metabyte a: u8 }`, "without a @sequence"},
		{"metabyte with minor opcode", `request R(130, minor = 1) { @metabyte a: u8 }`, "minor opcode"},
		{"metabyte on unused", `request R(1) { @metabyte _ }`, "unused item"},
		{"forward context", `record R { @context(n) s: string8  n: u8 }`, "forward reference"},
		{"undeclared context", `record R { @context(m) s: string8 }`, "undeclared name"},
		{"forward unused", `record R { _[pad(s)]  s: str8 }`, "forward reference"},
		{"pad in let", `record R { let n: u8 = pad()  s: str8 }`, "pad() inside let"},
		{"let references later let", `record R { let a: u8 = b  let b: u8 = 1 }`, "later let"},
		{"duplicate names", `record R { a: u8  a: u16 }`, "duplicate item name"},
		{"reply without sequence", `request Q(1); reply R for Q { a: u8 }`, "without a @sequence"},
		{"duplicate discriminant", `variant V { A = 1  B = 1 }`, "share discriminant"},
		{"discriminant overflow", `variant V { A = 255  B }`, "exceeds 255"},
		{"discriminant out of range", `variant V { A = 256 }`, "out of range"},
		{"unknown function", `record R { n: u8  _[max(n)] }`, "unknown formula function"},
		{"unknown keyword", `struct R { }`, "declaration keyword"},
		{"bad character", `record R { a: u8 $ }`, "unexpected character"},
		{"event synthetic bit", `event E(200);`, "synthetic bit"},
		{"event code of an error", `event E(0);`, "reserved for errors and replies"},
		{"event code of a reply", `event E(1) { a: u8 }`, "reserved for errors and replies"},
		{"zero array length", `record R { a: u8[0] }`, "out of range"},
		{"array length not a number", `record R { n: u8  a: u8[n] }`, "expected array length"},
		{"empty variant set", `variant V { }`, "no variants"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("bad.xwire", []byte(tc.src))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if !strings.Contains(pe.Msg, tc.want) {
				t.Fatalf("error %q does not mention %q", pe.Msg, tc.want)
			}
		})
	}
}

func TestParseErrorReportsDeclarationPosition(t *testing.T) {
	testlog.Start(t)
	_, err := Parse("pos.xwire", []byte("record Ok { a: u8 }\n\n  record Bad { a: u8  a: u8 }"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Pos.Line != 3 || pe.Pos.Col != 3 || pe.Definition != "Bad" {
		t.Fatalf("unexpected position %s in %s", pe.Pos, pe.Definition)
	}
}

func TestLetMayReferenceLaterField(t *testing.T) {
	testlog.Start(t)
	mustParse(t, `record R { let n: u16 = len(s)  _[2]  @context(n) s: string8  _[pad(s)] }`)
}

func TestValidateRejects(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"duplicate definition", `record A { }  record A { }`, "duplicate definition"},
		{"duplicate opcode", `request A(1);  request B(1);`, "opcode already used"},
		{"duplicate event code", `event A(2);  event B(2);`, "event code already used"},
		{"reply for unknown request", `reply R for Missing { @sequence s: u16 }`, "unknown request"},
		{"unknown error in set", `request A(1) errors(Nope);`, "unknown error"},
		{"reply arrow mismatch", `request A(1) -> Other;  record Other { }`, "not declared for this request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defs := mustParse(t, tc.src)
			err := Validate(defs)
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(ve.Reason, tc.want) {
				t.Fatalf("reason %q does not mention %q", ve.Reason, tc.want)
			}
		})
	}
}

type mapEnv struct {
	values map[string]int64
	offset int64
}

func (m mapEnv) Value(name string) (int64, error) { return m.values[name], nil }
func (m mapEnv) Len(name string) (int64, error)   { return m.values[name], nil }
func (m mapEnv) Size(name string) (int64, error)  { return m.values[name], nil }
func (m mapEnv) Offset() int64                    { return m.offset }

func TestEvalFormulas(t *testing.T) {
	testlog.Start(t)
	env := mapEnv{values: map[string]int64{"a": 5, "b": 2}, offset: 9}
	cases := map[string]int64{
		"a + b * 3":   11,
		"(a + b) * 3": 21,
		"a / b":       2,
		"a % b":       1,
		"pad(a)":      3,
		"pad(a, b)":   1,
		"pad()":       3,
		"len(a) - 1":  4,
	}
	for src, want := range cases {
		defs := mustParse(t, "record R { a: u8  b: u8  _[a]  _["+src+"] }")
		got, err := Eval(defs[0].Items[3].Source, env)
		if err != nil {
			t.Fatalf("eval %s: %v", src, err)
		}
		if got != want {
			t.Fatalf("eval %s = %d want %d", src, got, want)
		}
	}
}

func TestEvalDivideByZero(t *testing.T) {
	testlog.Start(t)
	defs := mustParse(t, "record R { a: u8  _[a / 0] }")
	_, err := Eval(defs[0].Items[1].Source, mapEnv{values: map[string]int64{"a": 1}})
	if !errors.Is(err, ErrDivideByZero) {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
}
