package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bf2ms/queryserver/pkg/schema"
)

// Compile parses and validates a canonical predicate string produced by
// Normalize. A nil node with nil error means "match all" (empty filter).
// Any error here is an EvaluatorError per the spec: the caller should log it
// alongside the offending filter and fall back to match-all for the query.
func Compile(canonical string) (*node, error) {
	n, err := Parse(canonical)
	if err != nil {
		return nil, fmt.Errorf("parsing filter: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	if err := check(n); err != nil {
		return nil, err
	}
	return n, nil
}

// check walks the AST verifying every identifier referenced — either as the
// left-hand field of a comparison or as a field-typed right-hand operand —
// is a known, filterable schema field.
func check(n *node) error {
	if n == nil {
		return nil
	}
	switch n.kind {
	case nodeAnd, nodeOr:
		if err := check(n.left); err != nil {
			return err
		}
		return check(n.right)
	case nodeNot:
		return check(n.sub)
	case nodeCompare:
		if !schema.IsFilterable(n.field) {
			return fmt.Errorf("not a filterable property: %q", n.field)
		}
		if n.rhs.isField && !schema.IsFilterable(n.rhs.field) {
			return fmt.Errorf("not a filterable property: %q", n.rhs.field)
		}
		return nil
	}
	return fmt.Errorf("unknown predicate node")
}

// Eval evaluates a pre-compiled predicate against one server. A nil node
// (empty filter / "match all") always matches.
func Eval(n *node, s *schema.GameServer) bool {
	if n == nil {
		return true
	}
	switch n.kind {
	case nodeAnd:
		return Eval(n.left, s) && Eval(n.right, s)
	case nodeOr:
		return Eval(n.left, s) || Eval(n.right, s)
	case nodeNot:
		return !Eval(n.sub, s)
	case nodeCompare:
		return evalCompare(n, s)
	}
	return false
}

func evalCompare(n *node, s *schema.GameServer) bool {
	fd, ok := schema.Lookup(n.field)
	if !ok {
		return false
	}
	lhs := fd.Get(s)

	if n.op == "like" {
		return wildMatchCI(operandString(n.rhs, s), fmt.Sprintf("%v", lhs))
	}

	switch fd.Kind {
	case schema.KindBool:
		rhsBool, ok := operandBool(n.rhs, s)
		if !ok {
			return false
		}
		lb, _ := lhs.(bool)
		return compareBool(n.op, lb, rhsBool)
	case schema.KindInt:
		rhsInt, ok := operandInt(n.rhs, s)
		if !ok {
			return false
		}
		li, _ := lhs.(int)
		return compareInt(n.op, li, rhsInt)
	default:
		rhsStr := operandString(n.rhs, s)
		ls, _ := lhs.(string)
		return compareString(n.op, ls, rhsStr)
	}
}

func operandString(o operand, s *schema.GameServer) string {
	if o.isField {
		if fd, ok := schema.Lookup(o.field); ok {
			return fmt.Sprintf("%v", fd.Get(s))
		}
		return ""
	}
	return o.literal
}

func operandInt(o operand, s *schema.GameServer) (int, bool) {
	if o.isField {
		if fd, ok := schema.Lookup(o.field); ok {
			if v, ok := fd.Get(s).(int); ok {
				return v, true
			}
		}
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(o.literal))
	if err != nil {
		return 0, false
	}
	return v, true
}

func operandBool(o operand, s *schema.GameServer) (bool, bool) {
	if o.isField {
		if fd, ok := schema.Lookup(o.field); ok {
			if v, ok := fd.Get(s).(bool); ok {
				return v, true
			}
		}
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(o.literal)) {
	case "1", "true":
		return true, true
	case "0", "false":
		return false, true
	}
	return false, false
}

func compareBool(op string, l, r bool) bool {
	switch op {
	case "=":
		return l == r
	case "!=":
		return l != r
	}
	return false
}

func compareInt(op string, l, r int) bool {
	switch op {
	case "=":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case ">":
		return l > r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	}
	return false
}

func compareString(op string, l, r string) bool {
	switch op {
	case "=":
		return strings.EqualFold(l, r)
	case "!=":
		return !strings.EqualFold(l, r)
	case "<":
		return l < r
	case ">":
		return l > r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	}
	return false
}

// wildMatchCI performs case-insensitive glob matching with SQL-style
// wildcards: '%' matches any run of characters, '_' matches exactly one.
func wildMatchCI(pattern, str string) bool {
	return globMatch(strings.ToLower(pattern), strings.ToLower(str))
}

func globMatch(pattern, str string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '%':
			for i := len(str); i >= 0; i-- {
				if globMatch(pattern[1:], str[i:]) {
					return true
				}
			}
			return false
		case '_':
			if len(str) == 0 {
				return false
			}
			pattern = pattern[1:]
			str = str[1:]
		default:
			if len(str) == 0 || pattern[0] != str[0] {
				return false
			}
			pattern = pattern[1:]
			str = str[1:]
		}
	}
	return len(str) == 0
}
