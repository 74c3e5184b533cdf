package schema

import (
	"errors"
	"strconv"
	"strings"
)

var ErrDivideByZero = errors.New("schema: division by zero in formula")

// Expr is a formula over the names of sibling items.
type Expr interface {
	String() string
}

type Num struct {
	Value int64
}

type Ref struct {
	Name string
}

// Call is one of len(x), size(x), pad(x, ...) or pad().
type Call struct {
	Func string
	Args []*Ref
}

type Binary struct {
	Op    byte
	Left  Expr
	Right Expr
}

func (n *Num) String() string { return strconv.FormatInt(n.Value, 10) }

func (r *Ref) String() string { return r.Name }

func (c *Call) String() string {
	names := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		names = append(names, a.Name)
	}
	return c.Func + "(" + strings.Join(names, ", ") + ")"
}

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + string(b.Op) + " " + b.Right.String() + ")"
}

// Walk calls fn for e and every sub-expression, depth first.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch x := e.(type) {
	case *Call:
		for _, a := range x.Args {
			Walk(a, fn)
		}
	case *Binary:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	}
}

// Env resolves names while a formula is evaluated.
type Env interface {
	// Value is the integer value of a field or let.
	Value(name string) (int64, error)
	// Len is the element count of a list or the byte length of text or bytes.
	Len(name string) (int64, error)
	// Size is the encoded byte size of an item.
	Size(name string) (int64, error)
	// Offset is the running byte count of the current block.
	Offset() int64
}

// Eval evaluates e against env.
func Eval(e Expr, env Env) (int64, error) {
	switch x := e.(type) {
	case *Num:
		return x.Value, nil
	case *Ref:
		return env.Value(x.Name)
	case *Call:
		return evalCall(x, env)
	case *Binary:
		l, err := Eval(x.Left, env)
		if err != nil {
			return 0, err
		}
		r, err := Eval(x.Right, env)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case '+':
			return l + r, nil
		case '-':
			return l - r, nil
		case '*':
			return l * r, nil
		case '/':
			if r == 0 {
				return 0, ErrDivideByZero
			}
			return l / r, nil
		case '%':
			if r == 0 {
				return 0, ErrDivideByZero
			}
			return l % r, nil
		}
	}
	return 0, errors.New("schema: malformed formula")
}

func evalCall(c *Call, env Env) (int64, error) {
	switch c.Func {
	case "len":
		return env.Len(c.Args[0].Name)
	case "size":
		return env.Size(c.Args[0].Name)
	case "pad":
		if len(c.Args) == 0 {
			return pad4(env.Offset()), nil
		}
		var sum int64
		for _, a := range c.Args {
			n, err := env.Size(a.Name)
			if err != nil {
				return 0, err
			}
			sum += n
		}
		return pad4(sum), nil
	}
	return 0, errors.New("schema: unknown formula function " + c.Func)
}

func pad4(n int64) int64 {
	return (4 - n%4) % 4
}
