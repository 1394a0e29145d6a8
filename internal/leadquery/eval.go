package leadquery

import (
	"strconv"
	"strings"

	"github.com/heatline/core/internal/types"
)

// Eval reports whether lead satisfies expr. A nil expr always matches —
// callers use this to apply leadquery filters as a second pass over
// whatever store.ListLeads already narrowed down by status/assignment.
// Only the status, assigned_to, source and priority fields are evaluated
// (IN lists: status, source and assigned_to); a condition on any other
// field never matches.
func Eval(expr Expr, lead types.Lead) bool {
	if expr == nil {
		return true
	}
	switch e := expr.(type) {
	case *BinaryLogicExpr:
		if e.Op == LogicAnd {
			return Eval(e.Left, lead) && Eval(e.Right, lead)
		}
		return Eval(e.Left, lead) || Eval(e.Right, lead)
	case *NotExpr:
		return !Eval(e.Expr, lead)
	case *ComparisonExpr:
		return evalComparison(e, lead)
	case *InExpr:
		return evalIn(e, lead)
	default:
		return false
	}
}

func evalComparison(e *ComparisonExpr, lead types.Lead) bool {
	switch strings.ToLower(e.Field) {
	case "status":
		return compareString(string(lead.Status), e.Op, e.Value.Raw)
	case "assigned_to":
		if lead.AssignedTo == nil {
			return e.Op == CompNEQ
		}
		return compareString(*lead.AssignedTo, e.Op, e.Value.Raw)
	case "source":
		return compareString(lead.Source, e.Op, e.Value.Raw)
	case "priority":
		return compareInt(lead.Priority, e.Op, e.Value.Raw)
	default:
		return false
	}
}

func evalIn(e *InExpr, lead types.Lead) bool {
	var actual string
	switch strings.ToLower(e.Field) {
	case "status":
		actual = string(lead.Status)
	case "source":
		actual = lead.Source
	case "assigned_to":
		if lead.AssignedTo == nil {
			return false
		}
		actual = *lead.AssignedTo
	default:
		return false
	}
	for _, v := range e.Values {
		if v.Raw == actual {
			return true
		}
	}
	return false
}

func compareString(actual string, op CompOp, raw string) bool {
	switch op {
	case CompEQ:
		return actual == raw
	case CompNEQ:
		return actual != raw
	default:
		return false
	}
}

func compareInt(actual int, op CompOp, raw string) bool {
	want, err := strconv.Atoi(raw)
	if err != nil {
		return false
	}
	switch op {
	case CompEQ:
		return actual == want
	case CompNEQ:
		return actual != want
	case CompGT:
		return actual > want
	case CompLT:
		return actual < want
	case CompGTE:
		return actual >= want
	case CompLTE:
		return actual <= want
	default:
		return false
	}
}
