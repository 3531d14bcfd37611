package diag

// Code identifies a class of diagnostic. Ranges are grouped by the stage
// that raises them, mirroring the pass pipeline: normalization, lowering,
// bytecode validation, then native codegen.
type Code uint16

const (
	UnknownCode Code = 0

	// Normalization passes: ANF conversion, primitive inlining, lambda lifting.
	NormInfo               Code = 1000
	NormUnsupportedNode    Code = 1001 // e.g. Match, which this pipeline refuses
	NormNotIdempotent      Code = 1002
	NormInlineCycle        Code = 1003
	NormLambdaLiftFailed   Code = 1004

	// Lowering (module -> VMProgram).
	LowerInfo              Code = 2000
	LowerMissingBinding    Code = 2001 // LoadConst/shape lookup miss
	LowerUnboundGlobal     Code = 2002 // Call to a GlobalVar absent from GlobalMap
	LowerBadArity          Code = 2003
	LowerUnsupportedCallee Code = 2004
	LowerRegisterOverflow  Code = 2005
	LowerKernelLowerFailed Code = 2006 // compile-engine returned an error

	// Bytecode validation (§8 invariants).
	BytecodeInfo               Code = 3000
	BytecodeRegisterOutOfRange Code = 3001
	BytecodeBadJumpOffset      Code = 3002
	BytecodeBadPackedArity     Code = 3003
	BytecodeBadConstIndex      Code = 3004
	BytecodeBadGlobalIndex     Code = 3005
	BytecodeNonDeterministic   Code = 3006

	// Native codegen (module build / JIT / emission).
	CodegenInfo                Code = 4000
	CodegenUnknownFormat       Code = 4001
	CodegenDataLayoutMismatch  Code = 4002
	CodegenArchMismatch        Code = 4003
	CodegenMissingSymbol       Code = 4004
	CodegenJITInitFailed       Code = 4005
	CodegenToolchainFailed     Code = 4006 // clang/llc invocation failed
	CodegenPerfMapWriteFailed  Code = 4007
)

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

var codeNames = map[Code]string{
	UnknownCode:                "UNKNOWN",
	NormInfo:                   "NORM1000",
	NormUnsupportedNode:        "NORM1001",
	NormNotIdempotent:          "NORM1002",
	NormInlineCycle:            "NORM1003",
	NormLambdaLiftFailed:       "NORM1004",
	LowerInfo:                  "LOWER2000",
	LowerMissingBinding:        "LOWER2001",
	LowerUnboundGlobal:         "LOWER2002",
	LowerBadArity:              "LOWER2003",
	LowerUnsupportedCallee:     "LOWER2004",
	LowerRegisterOverflow:      "LOWER2005",
	LowerKernelLowerFailed:     "LOWER2006",
	BytecodeInfo:               "BC3000",
	BytecodeRegisterOutOfRange: "BC3001",
	BytecodeBadJumpOffset:      "BC3002",
	BytecodeBadPackedArity:     "BC3003",
	BytecodeBadConstIndex:      "BC3004",
	BytecodeBadGlobalIndex:     "BC3005",
	BytecodeNonDeterministic:   "BC3006",
	CodegenInfo:                "CG4000",
	CodegenUnknownFormat:       "CG4001",
	CodegenDataLayoutMismatch:  "CG4002",
	CodegenArchMismatch:        "CG4003",
	CodegenMissingSymbol:       "CG4004",
	CodegenJITInitFailed:       "CG4005",
	CodegenToolchainFailed:     "CG4006",
	CodegenPerfMapWriteFailed:  "CG4007",
}
