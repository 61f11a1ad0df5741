package server

import (
	"udptime/pkg/xmsg"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"
)

var (
	errBadOperator = errors.New("invalid operator")
	errDivByZero   = errors.New("division by zero")
	errNotFinite   = errors.New("not a finite number")
)

// calculator evaluates "lhs <op> rhs" for the four binary operators.
// Expressions are compiled once and evaluated with parameters.
type calculator struct {
	exprs map[string]*govaluate.EvaluableExpression
}

func newCalculator() (*calculator, error) {
	c := &calculator{exprs: make(map[string]*govaluate.EvaluableExpression)}
	for _, op := range []string{"+", "-", "*", "/"} {
		expr, err := govaluate.NewEvaluableExpression("lhs " + op + " rhs")
		if err != nil {
			return nil, errors.Wrapf(err, "compile operator %q", op)
		}
		c.exprs[op] = expr
	}
	return c, nil
}

func (c *calculator) eval(lhs float64, op string, rhs float64) (float64, error) {
	expr, ok := c.exprs[op]
	if !ok {
		return 0, errors.Wrap(errBadOperator, op)
	}
	if !xmsg.IsFinite(lhs) || !xmsg.IsFinite(rhs) {
		return 0, errNotFinite
	}
	// govaluate 对除零返回Inf, 这里显式拒绝
	if op == "/" && rhs == 0 {
		return 0, errDivByZero
	}
	out, err := expr.Evaluate(map[string]interface{}{"lhs": lhs, "rhs": rhs})
	if err != nil {
		return 0, errors.Wrap(err, "evaluate")
	}
	v, ok := out.(float64)
	if !ok {
		return 0, errors.Errorf("unexpected result type %T", out)
	}
	// 溢出
	if !xmsg.IsFinite(v) {
		return 0, errors.Wrapf(errNotFinite, "%v %s %v", lhs, op, rhs)
	}
	return v, nil
}
