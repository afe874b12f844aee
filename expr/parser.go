package expr

import (
	"log/slog"

	"github.com/legutierr/blocktags/pkg"
	"github.com/legutierr/blocktags/token"
)

// compareOps maps comparison token types to operand spellings.
var compareOps = map[token.Type]string{
	token.Eq:   "eq",
	token.Ne:   "ne",
	token.Lt:   "lt",
	token.LtEq: "lteq",
	token.Gt:   "gt",
	token.GtEq: "gteq",
}

// Parser builds expression trees from a token stream. It consumes only
// the tokens of one expression, so a caller may interleave it with other
// grammar over the same stream.
type Parser struct {
	stream *token.Stream
}

// NewParser creates a parser over the given stream.
func NewParser(stream *token.Stream) *Parser {
	return &Parser{stream: stream}
}

// Parse parses one full expression from the stream, leaving any
// remaining tokens in place.
func Parse(stream *token.Stream) (Node, error) {
	return NewParser(stream).ParseExpression(true)
}

// ParseExpression parses an expression. Conditional (`a if t else b`)
// parsing can be suppressed, which tuple parsing uses to keep `if`
// available as a delimiter.
func (p *Parser) ParseExpression(withCondExpr bool) (Node, error) {
	if withCondExpr {
		return p.parseCondExpr()
	}

	return p.parseOr()
}

func (p *Parser) parseCondExpr() (Node, error) {
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	for p.stream.SkipIf("name:if") {
		test, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		var elseExpr Node

		if p.stream.SkipIf("name:else") {
			elseExpr, err = p.parseCondExpr()
			if err != nil {
				return nil, err
			}
		}

		expr = &CondExpr{Test: test, True: expr, Else: elseExpr}
	}

	return expr, nil
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.stream.SkipIf("name:or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &Or{Left: left, Right: right}
	}

	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.stream.SkipIf("name:and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		left = &And{Left: left, Right: right}
	}

	return left, nil
}

func (p *Parser) parseNot() (Node, error) {
	if p.stream.SkipIf("name:not") {
		node, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		return &Not{Node: node}, nil
	}

	return p.parseCompare()
}

func (p *Parser) parseCompare() (Node, error) {
	expr, err := p.parseAdd()
	if err != nil {
		return nil, err
	}

	var ops []Operand

	for {
		current := p.stream.Current()

		op, isCompare := compareOps[current.Type]

		if current.Type == token.Assign {
			// '=' survives as a deprecated alias of '=='.
			op, isCompare = "eq", true

			slog.Warn("operator '=' is deprecated, use '==' instead",
				slog.Int("line", current.Line))
		}

		switch {
		case isCompare:
			p.stream.Next()
		case p.stream.SkipIf("name:in"):
			op = "in"
		case current.Test("name:not") && p.stream.Look().Test("name:in"):
			p.stream.Skip(2)
			op = "notin"
		default:
			if ops == nil {
				return expr, nil
			}

			return &Compare{Expr: expr, Ops: ops}, nil
		}

		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}

		ops = append(ops, Operand{Op: op, Expr: right})
	}
}

func (p *Parser) parseAdd() (Node, error) {
	return p.parseBinary(token.Add, p.parseSub,
		func(l, r Node) Node { return &Add{Left: l, Right: r} })
}

func (p *Parser) parseSub() (Node, error) {
	return p.parseBinary(token.Sub, p.parseConcat,
		func(l, r Node) Node { return &Sub{Left: l, Right: r} })
}

func (p *Parser) parseConcat() (Node, error) {
	first, err := p.parseMul()
	if err != nil {
		return nil, err
	}

	items := []Node{first}

	for p.stream.Current().Type == token.Tilde {
		p.stream.Next()

		next, err := p.parseMul()
		if err != nil {
			return nil, err
		}

		items = append(items, next)
	}

	if len(items) == 1 {
		return items[0], nil
	}

	return &Concat{Items: items}, nil
}

func (p *Parser) parseMul() (Node, error) {
	return p.parseBinary(token.Mul, p.parseDiv,
		func(l, r Node) Node { return &Mul{Left: l, Right: r} })
}

func (p *Parser) parseDiv() (Node, error) {
	return p.parseBinary(token.Div, p.parseFloorDiv,
		func(l, r Node) Node { return &Div{Left: l, Right: r} })
}

func (p *Parser) parseFloorDiv() (Node, error) {
	return p.parseBinary(token.FloorDiv, p.parseMod,
		func(l, r Node) Node { return &FloorDiv{Left: l, Right: r} })
}

func (p *Parser) parseMod() (Node, error) {
	return p.parseBinary(token.Mod, p.parsePow,
		func(l, r Node) Node { return &Mod{Left: l, Right: r} })
}

func (p *Parser) parsePow() (Node, error) {
	return p.parseBinary(token.Pow, func() (Node, error) { return p.parseUnary(true) },
		func(l, r Node) Node { return &Pow{Left: l, Right: r} })
}

// parseBinary is the shared left-folding loop of one precedence level.
func (p *Parser) parseBinary(op token.Type, next func() (Node, error),
	build func(l, r Node) Node,
) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}

	for p.stream.Current().Type == op {
		p.stream.Next()

		right, err := next()
		if err != nil {
			return nil, err
		}

		left = build(left, right)
	}

	return left, nil
}

func (p *Parser) parseUnary(withFilter bool) (Node, error) {
	var (
		node Node
		err  error
	)

	switch p.stream.Current().Type {
	case token.Sub:
		p.stream.Next()

		inner, err := p.parseUnary(false)
		if err != nil {
			return nil, err
		}

		node = &Neg{Node: inner}
	case token.Add:
		p.stream.Next()

		inner, err := p.parseUnary(false)
		if err != nil {
			return nil, err
		}

		node = &Pos{Node: inner}
	default:
		node, err = p.parsePrimary()
		if err != nil {
			return nil, err
		}
	}

	node, err = p.parsePostfix(node)
	if err != nil {
		return nil, err
	}

	if withFilter {
		return p.parseFilterExpr(node)
	}

	return node, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	current := p.stream.Current()

	switch current.Type {
	case token.Name:
		name := current.ValueString()

		switch name {
		case "true", "True", "false", "False":
			p.stream.Next()

			return &Const{Value: name == "true" || name == "True"}, nil
		case "none", "None":
			p.stream.Next()

			return &Const{Value: nil}, nil
		case "and", "or":
			return nil, pkg.ErrReservedName.
				Wrapf("%q cannot be used as a variable or function name", name).
				With(slog.Int("line", current.Line))
		}

		p.stream.Next()

		return &Name{Name: name}, nil
	case token.String, token.Integer, token.Float:
		p.stream.Next()

		return &Const{Value: current.Value}, nil
	case token.LParen:
		p.stream.Next()

		node, err := p.parseTuple(true, nil, true)
		if err != nil {
			return nil, err
		}

		if _, err := p.stream.Expect("rparen"); err != nil {
			return nil, err
		}

		return node, nil
	case token.LBracket:
		return p.parseList()
	case token.LBrace:
		return p.parseDict()
	}

	return nil, pkg.ErrExprSyntax.
		Wrapf("unexpected %q", token.Describe(current)).
		With(slog.Int("line", current.Line))
}

// ParseTuple parses comma-delimited expressions. Without a comma the
// single expression is returned bare. Tuples have no delimiters of their
// own, so extraEndRules names the token expressions that end one (for
// example "name:in"); explicitParens permits the empty tuple.
func (p *Parser) ParseTuple(withCondExpr bool, extraEndRules []string,
	explicitParens bool,
) (Node, error) {
	return p.parseTuple(withCondExpr, extraEndRules, explicitParens)
}

func (p *Parser) parseTuple(withCondExpr bool, extraEndRules []string,
	explicitParens bool,
) (Node, error) {
	var (
		items   []Node
		isTuple bool
	)

	for {
		if len(items) > 0 {
			if _, err := p.stream.Expect("comma"); err != nil {
				return nil, err
			}
		}

		if p.isTupleEnd(extraEndRules) {
			break
		}

		item, err := p.ParseExpression(withCondExpr)
		if err != nil {
			return nil, err
		}

		items = append(items, item)

		if p.stream.Current().Type != token.Comma {
			break
		}

		isTuple = true
	}

	if !isTuple {
		if len(items) > 0 {
			return items[0], nil
		}

		// Nothing at all in expression position only means the empty
		// tuple inside explicit parentheses.
		if !explicitParens {
			return nil, pkg.ErrExprSyntax.
				Wrapf("expected an expression, got %q", token.Describe(p.stream.Current()))
		}
	}

	return &Tuple{Items: items}, nil
}

func (p *Parser) isTupleEnd(extraEndRules []string) bool {
	current := p.stream.Current()

	if current.Type == token.EOF || current.Type == token.RParen {
		return true
	}

	return len(extraEndRules) > 0 && current.TestAny(extraEndRules...)
}

func (p *Parser) parseList() (Node, error) {
	if _, err := p.stream.Expect("lbracket"); err != nil {
		return nil, err
	}

	var items []Node

	for p.stream.Current().Type != token.RBracket {
		if len(items) > 0 {
			if _, err := p.stream.Expect("comma"); err != nil {
				return nil, err
			}
		}

		if p.stream.Current().Type == token.RBracket {
			break
		}

		item, err := p.ParseExpression(true)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	if _, err := p.stream.Expect("rbracket"); err != nil {
		return nil, err
	}

	return &List{Items: items}, nil
}

func (p *Parser) parseDict() (Node, error) {
	if _, err := p.stream.Expect("lbrace"); err != nil {
		return nil, err
	}

	var items []*Pair

	for p.stream.Current().Type != token.RBrace {
		if len(items) > 0 {
			if _, err := p.stream.Expect("comma"); err != nil {
				return nil, err
			}
		}

		if p.stream.Current().Type == token.RBrace {
			break
		}

		key, err := p.ParseExpression(true)
		if err != nil {
			return nil, err
		}

		if _, err := p.stream.Expect("colon"); err != nil {
			return nil, err
		}

		value, err := p.ParseExpression(true)
		if err != nil {
			return nil, err
		}

		items = append(items, &Pair{Key: key, Value: value})
	}

	if _, err := p.stream.Expect("rbrace"); err != nil {
		return nil, err
	}

	return &Dict{Items: items}, nil
}

func (p *Parser) parsePostfix(node Node) (Node, error) {
	var err error

	for {
		switch p.stream.Current().Type {
		case token.Dot, token.LBracket:
			node, err = p.parseSubscript(node)
		case token.LParen:
			node, err = p.parseCall(node)
		default:
			return node, nil
		}

		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseFilterExpr(node Node) (Node, error) {
	var err error

	for {
		current := p.stream.Current()

		switch {
		case current.Type == token.Pipe:
			node, err = p.parseFilter(node)
		case current.Test("name:is"):
			node, err = p.parseTest(node)
		case current.Type == token.LParen:
			// Calls are valid after filters and tests too.
			node, err = p.parseCall(node)
		default:
			return node, nil
		}

		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseSubscript(node Node) (Node, error) {
	opener := p.stream.Next()

	if opener.Type == token.Dot {
		attr := p.stream.Next()

		switch attr.Type {
		case token.Name:
			return &Getattr{Target: node, Attr: attr.ValueString()}, nil
		case token.Integer:
			return &Getitem{Target: node, Arg: &Const{Value: attr.Value}}, nil
		}

		return nil, pkg.ErrExprSyntax.
			Wrapf("expected name or number after '.', got %q", token.Describe(attr)).
			With(slog.Int("line", attr.Line))
	}

	// opener is '['.
	var args []Node

	for p.stream.Current().Type != token.RBracket {
		if len(args) > 0 {
			if _, err := p.stream.Expect("comma"); err != nil {
				return nil, err
			}
		}

		arg, err := p.parseSubscribed()
		if err != nil {
			return nil, err
		}

		args = append(args, arg)
	}

	if _, err := p.stream.Expect("rbracket"); err != nil {
		return nil, err
	}

	if len(args) == 1 {
		return &Getitem{Target: node, Arg: args[0]}, nil
	}

	return &Getitem{Target: node, Arg: &Tuple{Items: args}}, nil
}

// parseSubscribed parses one element of a subscript, which may be a
// start:stop:step slice with any part omitted.
func (p *Parser) parseSubscribed() (Node, error) {
	var parts [3]Node

	if p.stream.Current().Type != token.Colon {
		node, err := p.ParseExpression(true)
		if err != nil {
			return nil, err
		}

		if p.stream.Current().Type != token.Colon {
			return node, nil
		}

		parts[0] = node
	}

	p.stream.Next()

	if t := p.stream.Current().Type; t != token.Colon && t != token.RBracket && t != token.Comma {
		node, err := p.ParseExpression(true)
		if err != nil {
			return nil, err
		}

		parts[1] = node
	}

	if p.stream.SkipIf("colon") {
		if t := p.stream.Current().Type; t != token.RBracket && t != token.Comma {
			node, err := p.ParseExpression(true)
			if err != nil {
				return nil, err
			}

			parts[2] = node
		}
	}

	return &Slice{Start: parts[0], Stop: parts[1], Step: parts[2]}, nil
}

func (p *Parser) parseCall(target Node) (Node, error) {
	args, kwargs, dynArgs, dynKwargs, err := p.parseCallArgs()
	if err != nil {
		return nil, err
	}

	return &Call{
		Target: target, Args: args, Kwargs: kwargs,
		DynArgs: dynArgs, DynKwargs: dynKwargs,
	}, nil
}

// parseCallArgs parses a parenthesized argument list: positional
// arguments, name=value keywords, at most one *args, and at most one
// **kwargs. Positional arguments may not follow keywords.
func (p *Parser) parseCallArgs() (args []Node, kwargs []*Keyword,
	dynArgs, dynKwargs Node, err error,
) {
	opener, err := p.stream.Expect("lparen")
	if err != nil {
		return nil, nil, nil, nil, err
	}

	fail := func() error {
		return pkg.ErrExprSyntax.
			Wrapf("invalid syntax for function call expression").
			With(slog.Int("line", opener.Line))
	}

	requireComma := false

	for p.stream.Current().Type != token.RParen {
		if requireComma {
			if _, err := p.stream.Expect("comma"); err != nil {
				return nil, nil, nil, nil, err
			}

			// Trailing comma.
			if p.stream.Current().Type == token.RParen {
				break
			}
		}

		switch {
		case p.stream.Current().Type == token.Mul:
			if dynArgs != nil || dynKwargs != nil {
				return nil, nil, nil, nil, fail()
			}

			p.stream.Next()

			if dynArgs, err = p.ParseExpression(true); err != nil {
				return nil, nil, nil, nil, err
			}
		case p.stream.Current().Type == token.Pow:
			if dynKwargs != nil {
				return nil, nil, nil, nil, fail()
			}

			p.stream.Next()

			if dynKwargs, err = p.ParseExpression(true); err != nil {
				return nil, nil, nil, nil, err
			}
		default:
			if dynArgs != nil || dynKwargs != nil {
				return nil, nil, nil, nil, fail()
			}

			if p.stream.Current().Type == token.Name &&
				p.stream.Look().Type == token.Assign {
				key := p.stream.Current().ValueString()
				p.stream.Skip(2)

				value, err := p.ParseExpression(true)
				if err != nil {
					return nil, nil, nil, nil, err
				}

				kwargs = append(kwargs, &Keyword{Key: key, Value: value})
			} else {
				if len(kwargs) > 0 {
					return nil, nil, nil, nil, fail()
				}

				arg, err := p.ParseExpression(true)
				if err != nil {
					return nil, nil, nil, nil, err
				}

				args = append(args, arg)
			}
		}

		requireComma = true
	}

	if _, err := p.stream.Expect("rparen"); err != nil {
		return nil, nil, nil, nil, err
	}

	return args, kwargs, dynArgs, dynKwargs, nil
}

func (p *Parser) parseFilter(node Node) (Node, error) {
	for p.stream.Current().Type == token.Pipe {
		p.stream.Next()

		name, err := p.parseDottedName()
		if err != nil {
			return nil, err
		}

		filter := &Filter{Node: node, Name: name}

		switch p.stream.Current().Type {
		case token.LParen:
			filter.Args, filter.Kwargs, filter.DynArgs, filter.DynKwargs, err = p.parseCallArgs()
			if err != nil {
				return nil, err
			}
		case token.Colon:
			p.stream.Next()

			// The colon form takes a single unfiltered operand, so the
			// rest of the chain still applies to this filter's result.
			arg, err := p.parseUnary(false)
			if err != nil {
				return nil, err
			}

			filter.Args = []Node{arg}
		}

		node = filter
	}

	return node, nil
}

func (p *Parser) parseTest(node Node) (Node, error) {
	p.stream.Next() // 'is'

	negated := p.stream.SkipIf("name:not")

	name, err := p.parseDottedName()
	if err != nil {
		return nil, err
	}

	test := &Test{Node: node, Name: name}

	current := p.stream.Current()

	switch {
	case current.Type == token.LParen:
		test.Args, test.Kwargs, test.DynArgs, test.DynKwargs, err = p.parseCallArgs()
		if err != nil {
			return nil, err
		}
	case argStart(current) && !current.TestAny("name:else", "name:or", "name:and"):
		if current.Test("name:is") {
			return nil, pkg.ErrExprSyntax.
				Wrapf("cannot chain multiple tests with 'is'").
				With(slog.Int("line", current.Line))
		}

		arg, err := p.ParseExpression(true)
		if err != nil {
			return nil, err
		}

		test.Args = []Node{arg}
	}

	if negated {
		return &Not{Node: test}, nil
	}

	return test, nil
}

// argStart reports whether a token can begin a bare test argument.
func argStart(t token.Token) bool {
	switch t.Type {
	case token.Name, token.String, token.Integer, token.Float,
		token.LParen, token.LBracket, token.LBrace:
		return true
	}

	return false
}

func (p *Parser) parseDottedName() (string, error) {
	first, err := p.stream.Expect("name")
	if err != nil {
		return "", err
	}

	name := first.ValueString()

	for p.stream.SkipIf("dot") {
		part, err := p.stream.Expect("name")
		if err != nil {
			return "", err
		}

		name += "." + part.ValueString()
	}

	return name, nil
}
