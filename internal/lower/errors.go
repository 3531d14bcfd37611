package lower

import (
	"errors"
	"fmt"

	"vmc/internal/diag"
)

// ErrDynamicShape is returned by ConstPool.internShape when a tensor's
// shape carries a dynamic axis, which cannot be materialized as a constant.
var ErrDynamicShape = errors.New("lower: cannot synthesize a shape constant for a dynamic axis")

// Error is the LoweringError this package raises when a Module cannot be
// compiled into a VMProgram: a binding is missing, a callee is malformed,
// or a compile-engine invocation failed.
type Error struct {
	Code diag.Code
	At   diag.Loc
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.At, e.Msg)
}

func newError(code diag.Code, fn, node, msg string) *Error {
	return &Error{Code: code, At: diag.Loc{Function: fn, Node: node}, Msg: msg}
}
