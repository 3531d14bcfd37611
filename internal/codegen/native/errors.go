package native

import "errors"

var (
	// ErrUnknownFormat is returned by GetSource/SaveToFile for a format
	// that is neither a recognized extension nor an explicit argument.
	ErrUnknownFormat = errors.New("native: unrecognized emission format")

	// ErrDataLayoutMismatch is the fatal condition the source compiler
	// raises when a module's data layout does not agree with the host's:
	// running JIT-compiled code with the wrong layout corrupts memory
	// silently, so this is treated as unrecoverable rather than a
	// warning.
	ErrDataLayoutMismatch = errors.New("native: module data layout does not match the JIT execution engine's")

	// ErrArchMismatch is the fatal condition raised when a module's
	// target architecture does not match the host architecture the JIT
	// would execute it on.
	ErrArchMismatch = errors.New("native: module target architecture does not match the host architecture")

	// ErrMissingSymbol is returned when a Handle's symbol cannot be
	// resolved in the JIT-loaded shared object.
	ErrMissingSymbol = errors.New("native: symbol not found in JIT-compiled module")
)
