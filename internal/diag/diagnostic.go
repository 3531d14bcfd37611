package diag

// Loc identifies where in the compiled program a diagnostic applies. This
// compiler consumes IR handed to it by an upstream frontend, not source
// text, so there is no file/line to point at — only the function and node
// the pass was visiting when it failed.
type Loc struct {
	Function string // global var name; empty for module-level diagnostics
	Node     string // short description of the offending node/instruction
}

func (l Loc) String() string {
	if l.Function == "" {
		return l.Node
	}
	if l.Node == "" {
		return l.Function
	}
	return l.Function + ": " + l.Node
}

type Note struct {
	At  Loc
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Loc
	Notes    []Note
}
