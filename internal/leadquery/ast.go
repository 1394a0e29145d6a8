package leadquery

// Expr is implemented by every node in the predicate tree.
type Expr interface {
	exprNode()
}

// BinaryLogicExpr represents "expr and expr" or "expr or expr".
type BinaryLogicExpr struct {
	Op    LogicOp
	Left  Expr
	Right Expr
}

// LogicOp is AND or OR.
type LogicOp int

const (
	LogicAnd LogicOp = iota
	LogicOr
)

func (*BinaryLogicExpr) exprNode() {}

// NotExpr represents "not expr".
type NotExpr struct {
	Expr Expr
}

func (*NotExpr) exprNode() {}

// ComparisonExpr represents "field op value".
type ComparisonExpr struct {
	Field string
	Op    CompOp
	Value Literal
}

// CompOp is a comparison operator.
type CompOp int

const (
	CompEQ CompOp = iota
	CompNEQ
	CompGT
	CompLT
	CompGTE
	CompLTE
)

func (op CompOp) String() string {
	switch op {
	case CompEQ:
		return "="
	case CompNEQ:
		return "!="
	case CompGT:
		return ">"
	case CompLT:
		return "<"
	case CompGTE:
		return ">="
	case CompLTE:
		return "<="
	default:
		return "?"
	}
}

func (*ComparisonExpr) exprNode() {}

// InExpr represents "field in [val1, val2, ...]".
type InExpr struct {
	Field  string
	Values []Literal
}

func (*InExpr) exprNode() {}

// Literal is a constant value in a filter expression.
type Literal struct {
	Type LiteralType
	Raw  string
}

// LiteralType classifies a Literal's underlying value.
type LiteralType int

const (
	LitString LiteralType = iota
	LitInt
	LitFloat
	LitBool
)
