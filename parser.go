package planilha

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// AST enables dependency extraction and error reporting through tree
// traversal rather than regex/string manipulation. Eval never returns a Go
// error: evaluation failures are *CellError values that propagate through
// any expression referencing them.
type ASTNode interface {
	Eval(e *Engine) Primitive
	GetPosition() NodePosition
	ToString() string
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) Eval(e *Engine) Primitive {
	return n.Value
}

func (n *StringNode) GetPosition() NodePosition {
	return n.Position
}

func (n *StringNode) ToString() string {
	escaped := strings.ReplaceAll(n.Value, "\"", "\"\"")
	return fmt.Sprintf("\"%s\"", escaped)
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(e *Engine) Primitive {
	return n.Value
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	// format without unnecessary decimals
	if n.Value == float64(int64(n.Value)) {
		return fmt.Sprintf("%d", int64(n.Value))
	}
	return fmt.Sprintf("%g", n.Value)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) Eval(e *Engine) Primitive {
	return n.Value
}

func (n *BooleanNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "VERDADEIRO"
	}
	return "FALSO"
}

// CellRefNode represents an absolute cell reference
type CellRefNode struct {
	Addr     CellAddress
	Position NodePosition
}

func (n *CellRefNode) Eval(e *Engine) Primitive {
	// empty or never-written cells read as nil, coerced downstream
	return e.valueAt(n.Addr)
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	return n.Addr.String()
}

// RangeNode represents a rectangular range of cells
type RangeNode struct {
	Range    CellRange
	Position NodePosition
}

func (n *RangeNode) Eval(e *Engine) Primitive {
	// ranges are only meaningful as function arguments; scalar contexts
	// reject the RangeValue with #VALUE!
	return &RangeValue{rng: n.Range, engine: e}
}

func (n *RangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeNode) ToString() string {
	return n.Range.String()
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(e *Engine) Primitive {
	leftVal := n.Left.Eval(e)
	if err := asCellError(leftVal); err != nil {
		return err
	}
	rightVal := n.Right.Eval(e)
	if err := asCellError(rightVal); err != nil {
		return err
	}

	// ranges never participate in scalar operators
	if _, ok := leftVal.(*RangeValue); ok {
		return NewCellError(ErrorCodeValue, "range used as a scalar operand")
	}
	if _, ok := rightVal.(*RangeValue); ok {
		return NewCellError(ErrorCodeValue, "range used as a scalar operand")
	}

	switch n.Op {
	case BinOpAdd, BinOpSubtract, BinOpMultiply, BinOpDivide, BinOpPower:
		leftNum, leftOk := toNumber(leftVal)
		rightNum, rightOk := toNumber(rightVal)
		if !leftOk || !rightOk {
			return NewCellError(ErrorCodeValue, "arithmetic requires numeric values")
		}
		switch n.Op {
		case BinOpAdd:
			return leftNum + rightNum
		case BinOpSubtract:
			return leftNum - rightNum
		case BinOpMultiply:
			return leftNum * rightNum
		case BinOpDivide:
			if rightNum == 0 {
				return NewCellError(ErrorCodeDiv0, "division by zero")
			}
			return leftNum / rightNum
		case BinOpPower:
			return math.Pow(leftNum, rightNum)
		}

	case BinOpConcat:
		return toString(leftVal) + toString(rightVal)

	case BinOpEqual:
		return comparePrimitives(leftVal, rightVal) == 0

	case BinOpNotEqual:
		return comparePrimitives(leftVal, rightVal) != 0

	case BinOpLess, BinOpLessEqual, BinOpGreater, BinOpGreaterEqual:
		cmp := comparePrimitives(leftVal, rightVal)
		if cmp == -2 {
			return NewCellError(ErrorCodeValue, "cannot compare these values")
		}
		switch n.Op {
		case BinOpLess:
			return cmp < 0
		case BinOpLessEqual:
			return cmp <= 0
		case BinOpGreater:
			return cmp > 0
		case BinOpGreaterEqual:
			return cmp >= 0
		}
	}

	return NewCellError(ErrorCodeValue, "unknown operator")
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	opStr := ""
	switch n.Op {
	case BinOpAdd:
		opStr = "+"
	case BinOpSubtract:
		opStr = "-"
	case BinOpMultiply:
		opStr = "*"
	case BinOpDivide:
		opStr = "/"
	case BinOpPower:
		opStr = "^"
	case BinOpConcat:
		opStr = "&"
	case BinOpEqual:
		opStr = "="
	case BinOpNotEqual:
		opStr = "<>"
	case BinOpLess:
		opStr = "<"
	case BinOpLessEqual:
		opStr = "<="
	case BinOpGreater:
		opStr = ">"
	case BinOpGreaterEqual:
		opStr = ">="
	}
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), opStr, n.Right.ToString())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(e *Engine) Primitive {
	val := n.Operand.Eval(e)
	if err := asCellError(val); err != nil {
		return err
	}

	num, ok := toNumber(val)
	if !ok {
		return NewCellError(ErrorCodeValue, "unary operator requires a numeric value")
	}

	switch n.Op {
	case UnaryOpPlus:
		return num
	case UnaryOpMinus:
		return -num
	case UnaryOpPercent:
		return num / 100.0
	default:
		return NewCellError(ErrorCodeValue, "unknown unary operator")
	}
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	switch n.Op {
	case UnaryOpMinus:
		return fmt.Sprintf("-%s", n.Operand.ToString())
	case UnaryOpPercent:
		return fmt.Sprintf("(%s%%)", n.Operand.ToString())
	}
	return fmt.Sprintf("+%s", n.Operand.ToString())
}

// FunctionCallNode represents a function call. Fn is resolved at parse time
// through the closed built-in table; unresolved names keep FuncUnknown and
// evaluate to #NAME?.
type FunctionCallNode struct {
	Fn       Func
	Name     string // name as typed, for display and #NAME? messages
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) Eval(e *Engine) Primitive {
	if n.Fn == FuncUnknown {
		return NewCellError(ErrorCodeName, fmt.Sprintf("unknown function %q", n.Name))
	}

	spec := funcTable[n.Fn]

	// lazy functions receive unevaluated argument nodes and pick which to
	// evaluate (SE evaluates only the taken branch)
	if spec.lazy {
		return e.funcs.CallLazy(e, n.Fn, n.Args)
	}

	args := make([]Primitive, len(n.Args))
	for i, argNode := range n.Args {
		args[i] = argNode.Eval(e)
	}
	return e.funcs.Call(n.Fn, args)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ";"))
}

// Parser parses a token stream into an AST
type Parser struct {
	input  string
	tokens []Token
	pos    int
}

// parseFormula lexes and parses a full formula (leading '=' included)
func parseFormula(input string) (ASTNode, *ParseError) {
	tokens, lexErr := NewLexer(input).Tokenize()
	if lexErr != nil {
		return nil, lexErr
	}
	return (&Parser{input: input, tokens: tokens}).Parse()
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, *ParseError) {
	if len(p.tokens) == 0 {
		return nil, p.errAt(0, "empty formula")
	}

	// expect and skip the equals prefix
	if p.tokens[p.pos].Type != TokenEquals {
		return nil, p.errAt(p.tokens[p.pos].Pos, "formula must start with '='")
	}
	p.pos++

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	// all tokens but EOF must be consumed
	if p.tokens[p.pos].Type != TokenEOF {
		return nil, p.errAt(p.tokens[p.pos].Pos,
			fmt.Sprintf("unexpected token after expression: %s", p.tokens[p.pos].Value))
	}

	return node, nil
}

func (p *Parser) errAt(pos int, message string) *ParseError {
	return &ParseError{Input: p.input, Pos: pos, Message: message}
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (ASTNode, *ParseError) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "=":
			op = BinOpEqual
		case "<>":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseConcatenation handles string concatenation
func (p *Parser) parseConcatenation() (ASTNode, *ParseError) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp || tok.Value != "&" {
			break
		}

		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       BinOpConcat,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (ASTNode, *ParseError) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (ASTNode, *ParseError) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parsePower handles exponentiation
func (p *Parser) parsePower() (ASTNode, *ParseError) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	// right-associative
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenBinaryOp && p.tokens[p.pos].Value == "^" {
		p.pos++
		right, err := p.parsePower() // recursive for right-associativity
		if err != nil {
			return nil, err
		}

		return &BinaryOpNode{
			Op:       BinOpPower,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}, nil
	}

	return left, nil
}

// parseUnary handles prefix operators
func (p *Parser) parseUnary() (ASTNode, *ParseError) {
	if p.pos >= len(p.tokens) {
		return nil, p.errAt(len([]rune(p.input)), "unexpected end of expression")
	}

	tok := p.tokens[p.pos]

	if tok.Type == TokenUnaryPrefixOp {
		var op UnaryOp
		switch tok.Value {
		case "+":
			op = UnaryOpPlus
		case "-":
			op = UnaryOpMinus
		default:
			return nil, p.errAt(tok.Pos, "unexpected operator: "+tok.Value)
		}

		startPos := tok.Pos
		p.pos++
		operand, err := p.parseUnary() // recurse for chained unary operators
		if err != nil {
			return nil, err
		}

		return &UnaryOpNode{
			Op:       op,
			Operand:  operand,
			Position: NodePosition{Start: startPos, End: operand.GetPosition().End},
		}, nil
	}

	return p.parsePostfix()
}

// parsePostfix handles the postfix percent operator
func (p *Parser) parsePostfix() (ASTNode, *ParseError) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenUnaryPostfixOp {
		endPos := p.tokens[p.pos].Pos + 1
		p.pos++

		return &UnaryOpNode{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: endPos},
		}, nil
	}

	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses)
func (p *Parser) parsePrimary() (ASTNode, *ParseError) {
	if p.pos >= len(p.tokens) {
		return nil, p.errAt(len([]rune(p.input)), "unexpected end of expression")
	}

	tok := p.tokens[p.pos]

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errAt(tok.Pos, fmt.Sprintf("invalid number: %s", tok.Value))
		}
		return &NumberNode{
			Value:    val,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenString:
		p.pos++
		return &StringNode{
			Value:    tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value)) + 2}, // +2 for quotes
		}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{
			Value:    tok.Value == "VERDADEIRO",
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenCell:
		p.pos++
		addr, err := ParseAddress(tok.Value)
		if err != nil {
			return nil, p.errAt(tok.Pos, fmt.Sprintf("invalid cell reference: %s", tok.Value))
		}
		return &CellRefNode{
			Addr:     addr,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenRange:
		p.pos++
		rng, err := ParseRange(tok.Value)
		if err != nil {
			return nil, p.errAt(tok.Pos, fmt.Sprintf("invalid range: %s", tok.Value))
		}
		return &RangeNode{
			Range:    rng,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenRightParen {
			return nil, p.errAt(tok.Pos, "expected closing parenthesis")
		}
		p.pos++

		return node, nil

	default:
		return nil, p.errAt(tok.Pos, fmt.Sprintf("unexpected token: %s", tok.Value))
	}
}

// parseFunctionCall parses a function call
func (p *Parser) parseFunctionCall() (ASTNode, *ParseError) {
	funcTok := p.tokens[p.pos]
	funcName := funcTok.Value
	startPos := funcTok.Pos
	p.pos++

	// expect opening parenthesis
	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenLeftParen {
		return nil, p.errAt(funcTok.Pos, "expected '(' after function name")
	}
	p.pos++

	fn := lookupFunc(funcName)

	args := []ASTNode{}

	// empty argument list: only legal for arg-less functions like HOJE()
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRightParen {
		endPos := p.tokens[p.pos].Pos + 1
		p.pos++
		if fn != FuncUnknown && funcTable[fn].minArgs > 0 {
			return nil, p.errAt(startPos,
				fmt.Sprintf("%s requires at least %d argument(s)", funcName, funcTable[fn].minArgs))
		}
		return &FunctionCallNode{
			Fn:       fn,
			Name:     funcName,
			Args:     args,
			Position: NodePosition{Start: startPos, End: endPos},
		}, nil
	}

	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.pos >= len(p.tokens) {
			return nil, p.errAt(len([]rune(p.input)), "unexpected end in function arguments")
		}

		if p.tokens[p.pos].Type == TokenRightParen {
			p.pos++
			break
		}

		if p.tokens[p.pos].Type != TokenSemicolon {
			return nil, p.errAt(p.tokens[p.pos].Pos, "expected ';' or ')' in function arguments")
		}
		p.pos++
	}

	return &FunctionCallNode{
		Fn:       fn,
		Name:     funcName,
		Args:     args,
		Position: NodePosition{Start: startPos, End: p.tokens[p.pos-1].Pos + 1},
	}, nil
}
