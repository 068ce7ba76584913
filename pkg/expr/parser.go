package expr

import (
	"fmt"

	"github.com/TheBestAstroNOT/stencil/pkg/types"
)

// node is an evaluated expression tree node.
type node interface {
	eval(values types.Values) bool
	refs(out map[string]struct{})
}

// operand is a value-producing leaf: an option reference or a literal.
// The second return reports presence; absent references poison the
// enclosing comparison to false.
type operand interface {
	value(values types.Values) (types.Value, bool)
	refs(out map[string]struct{})
}

type litOperand struct {
	v types.Value
}

func (l litOperand) value(types.Values) (types.Value, bool) { return l.v, true }
func (l litOperand) refs(map[string]struct{})               {}

type refOperand struct {
	name string
}

func (r refOperand) value(values types.Values) (types.Value, bool) {
	return values.Lookup(r.name)
}

func (r refOperand) refs(out map[string]struct{}) { out[r.name] = struct{}{} }

// truthNode treats a bare operand as a boolean: true only when the
// operand is present and holds boolean true.
type truthNode struct {
	op operand
}

func (n truthNode) eval(values types.Values) bool {
	v, ok := n.op.value(values)
	if !ok {
		return false
	}
	return v.Kind() == types.KindBool && v.Bool()
}

func (n truthNode) refs(out map[string]struct{}) { n.op.refs(out) }

// cmpNode compares two operands. Either side absent makes the whole
// comparison false, for == and != alike.
type cmpNode struct {
	lhs, rhs operand
	negate   bool
}

func (n cmpNode) eval(values types.Values) bool {
	lv, lok := n.lhs.value(values)
	rv, rok := n.rhs.value(values)
	if !lok || !rok {
		return false
	}
	if n.negate {
		return !lv.Equal(rv)
	}
	return lv.Equal(rv)
}

func (n cmpNode) refs(out map[string]struct{}) {
	n.lhs.refs(out)
	n.rhs.refs(out)
}

type notNode struct {
	child node
}

func (n notNode) eval(values types.Values) bool { return !n.child.eval(values) }
func (n notNode) refs(out map[string]struct{})  { n.child.refs(out) }

type andNode struct {
	lhs, rhs node
}

func (n andNode) eval(values types.Values) bool { return n.lhs.eval(values) && n.rhs.eval(values) }

func (n andNode) refs(out map[string]struct{}) {
	n.lhs.refs(out)
	n.rhs.refs(out)
}

type orNode struct {
	lhs, rhs node
}

func (n orNode) eval(values types.Values) bool { return n.lhs.eval(values) || n.rhs.eval(values) }

func (n orNode) refs(out map[string]struct{}) {
	n.lhs.refs(out)
	n.rhs.refs(out)
}

// parser is a recursive descent parser over the lexed token stream.
//
//	or      := and ( ("||" | "or") and )*
//	and     := unary ( ("&&" | "and") unary )*
//	unary   := ("!" | "not") unary | primary
//	primary := "(" or ")" | operand ( ("==" | "!=") operand )?
//	operand := ident | string | "true" | "false"
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (node, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = orNode{lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = andNode{lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokNot {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.peek().kind == tokLParen {
		open := p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("unbalanced parentheses: '(' at offset %d is never closed", open.pos)
		}
		p.next()
		return inner, nil
	}

	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	switch p.peek().kind {
	case tokEq, tokNeq:
		op := p.next()
		rhs, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return cmpNode{lhs: lhs, rhs: rhs, negate: op.kind == tokNeq}, nil
	default:
		return truthNode{op: lhs}, nil
	}
}

func (p *parser) parseOperand() (operand, error) {
	t := p.peek()
	switch t.kind {
	case tokIdent:
		p.next()
		return refOperand{name: t.text}, nil
	case tokString:
		p.next()
		return litOperand{v: types.StringValue(t.text)}, nil
	case tokTrue:
		p.next()
		return litOperand{v: types.BoolValue(true)}, nil
	case tokFalse:
		p.next()
		return litOperand{v: types.BoolValue(false)}, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression at offset %d", t.pos)
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
	}
}
