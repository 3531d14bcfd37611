package bytecode

import (
	"errors"
	"fmt"
)

// Validate checks prog against the invariants a well-formed lowering must
// satisfy: every register an instruction reads or writes is within the
// owning function's register file, every constant/global/packed-func
// index is in range, and every jump offset lands on a real instruction.
// It accumulates every violation it finds rather than stopping at the
// first, matching the accumulate-then-report style used elsewhere in this
// codebase's validators.
func Validate(prog *VMProgram) error {
	var errs []error
	for _, fn := range prog.Functions {
		errs = append(errs, validateFunc(prog, fn)...)
	}
	return errors.Join(errs...)
}

func validateFunc(prog *VMProgram, fn VMFunction) []error {
	var errs []error
	inRange := func(r Reg) bool { return uint32(r) < fn.NumRegs }
	checkReg := func(idx int, r Reg, field string) {
		if !inRange(r) {
			errs = append(errs, fmt.Errorf("%s[%d]: %s register %d out of range (NumRegs=%d)", fn.Name, idx, field, r, fn.NumRegs))
		}
	}

	for i, in := range fn.Instrs {
		switch in.Op {
		case OpLoadConst:
			checkReg(i, in.Dst, "dst")
			if int(in.ConstIndex) >= len(prog.Constants) {
				errs = append(errs, fmt.Errorf("%s[%d]: LoadConst const index %d out of range (%d constants)", fn.Name, i, in.ConstIndex, len(prog.Constants)))
			}
		case OpAllocTensor:
			checkReg(i, in.Dst, "dst")
			if int(in.ShapeIndex) >= len(prog.Constants) {
				errs = append(errs, fmt.Errorf("%s[%d]: AllocTensor shape index %d out of range", fn.Name, i, in.ShapeIndex))
			}
		case OpAllocDatatype:
			checkReg(i, in.Dst, "dst")
			for _, f := range in.Fields {
				checkReg(i, f, "field")
			}
		case OpAllocClosure:
			checkReg(i, in.Dst, "dst")
			if int(in.GlobalIndex) >= len(prog.Functions) {
				errs = append(errs, fmt.Errorf("%s[%d]: AllocClosure global index %d out of range", fn.Name, i, in.GlobalIndex))
			}
			for _, f := range in.FreeVars {
				checkReg(i, f, "freevar")
			}
		case OpGetField:
			checkReg(i, in.Dst, "dst")
			checkReg(i, in.Object, "object")
		case OpMove:
			checkReg(i, in.Dst, "dst")
			checkReg(i, in.Src, "src")
		case OpInvoke:
			checkReg(i, in.Dst, "dst")
			if int(in.GlobalIndex) >= len(prog.Functions) {
				errs = append(errs, fmt.Errorf("%s[%d]: Invoke global index %d out of range", fn.Name, i, in.GlobalIndex))
			}
			for _, a := range in.Args {
				checkReg(i, a, "arg")
			}
		case OpInvokeClosure:
			checkReg(i, in.Dst, "dst")
			checkReg(i, in.ClosureReg, "closure")
			for _, a := range in.Args {
				checkReg(i, a, "arg")
			}
		case OpInvokePacked:
			if int(in.PackedIndex) >= len(prog.PackedFuncs) {
				errs = append(errs, fmt.Errorf("%s[%d]: InvokePacked packed index %d out of range", fn.Name, i, in.PackedIndex))
			}
			if uint32(len(in.PackedArgs)) != in.Arity {
				errs = append(errs, fmt.Errorf("%s[%d]: InvokePacked arity %d does not match %d packed_args", fn.Name, i, in.Arity, len(in.PackedArgs)))
			}
			if in.ReturnCount > in.Arity {
				errs = append(errs, fmt.Errorf("%s[%d]: InvokePacked return_count %d exceeds arity %d", fn.Name, i, in.ReturnCount, in.Arity))
			}
			for _, a := range in.PackedArgs {
				checkReg(i, a, "packed_arg")
			}
		case OpSelect:
			checkReg(i, in.Dst, "dst")
			checkReg(i, in.Cond, "cond")
			checkReg(i, in.IfTrue, "if_true")
			checkReg(i, in.IfFalse, "if_false")
		case OpIf:
			checkReg(i, in.CondReg, "cond")
			checkJumpTarget(&errs, fn, i, i+int(in.TrueOffset), "true")
			checkJumpTarget(&errs, fn, i, i+int(in.FalseOffset), "false")
		case OpGoto:
			checkJumpTarget(&errs, fn, i, i+int(in.Offset), "goto")
		case OpRet:
			checkReg(i, in.Result, "result")
		default:
			errs = append(errs, fmt.Errorf("%s[%d]: invalid opcode %d", fn.Name, i, in.Op))
		}
	}

	if len(fn.Instrs) == 0 || fn.Instrs[len(fn.Instrs)-1].Op != OpRet {
		errs = append(errs, fmt.Errorf("%s: function must end in Ret", fn.Name))
	}

	return errs
}

func checkJumpTarget(errs *[]error, fn VMFunction, from, target int, which string) {
	if target < 0 || target >= len(fn.Instrs) {
		*errs = append(*errs, fmt.Errorf("%s[%d]: %s branch target %d out of range (%d instructions)", fn.Name, from, which, target, len(fn.Instrs)))
	}
}
