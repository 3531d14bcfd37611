package passes

import (
	"fmt"

	"vmc/internal/diag"
)

// Error is the LoweringError this pipeline's four passes raise. It always
// names the pass and the node the pass was visiting when it gave up.
type Error struct {
	Pass string
	At   diag.Loc
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pass, e.At, e.Msg)
}

func newError(pass, node, msg string) *Error {
	return &Error{Pass: pass, At: diag.Loc{Node: node}, Msg: msg}
}
