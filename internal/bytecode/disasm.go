package bytecode

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Disassemble renders prog as a human-readable instruction listing, one
// VMFunction per section, the way a compiler's -dump-bytecode flag would.
// The header counts (constants, packed funcs, functions, params,
// registers) and the instruction-index column are formatted with a
// golang.org/x/text message.Printer so large counts stay readable in
// wide dumps; instruction operands are formatted with plain fmt.
func Disassemble(prog *VMProgram) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	p.Fprintf(&b, "; constants: %d, packed funcs: %d, functions: %d\n\n",
		len(prog.Constants), len(prog.PackedFuncs), len(prog.Functions))

	for i, pf := range prog.PackedFuncs {
		p.Fprintf(&b, "; packed[%d] = %s @ %s\n", i, pf.Name, pf.Target)
	}
	if len(prog.PackedFuncs) > 0 {
		b.WriteString("\n")
	}

	for _, fn := range prog.Functions {
		p.Fprintf(&b, "def %s(params=%d, regs=%d):\n", fn.Name, fn.ParamCount, fn.NumRegs)
		for i, in := range fn.Instrs {
			p.Fprintf(&b, "  %4d: %s\n", i, disasmInstr(in))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func disasmInstr(in Instruction) string {
	switch in.Op {
	case OpLoadConst:
		return fmt.Sprintf("%s <- LoadConst const[%d]", regName(in.Dst), in.ConstIndex)
	case OpAllocTensor:
		return fmt.Sprintf("%s <- AllocTensor shape[%d]", regName(in.Dst), in.ShapeIndex)
	case OpAllocDatatype:
		return fmt.Sprintf("%s <- AllocDatatype tag=%d fields=%s", regName(in.Dst), in.Tag, regList(in.Fields))
	case OpAllocClosure:
		return fmt.Sprintf("%s <- AllocClosure global[%d] free=%s", regName(in.Dst), in.GlobalIndex, regList(in.FreeVars))
	case OpGetField:
		return fmt.Sprintf("%s <- GetField %s[%d]", regName(in.Dst), regName(in.Object), in.Index)
	case OpMove:
		return fmt.Sprintf("%s <- Move %s", regName(in.Dst), regName(in.Src))
	case OpInvoke:
		return fmt.Sprintf("%s <- Invoke global[%d] args=%s", regName(in.Dst), in.GlobalIndex, regList(in.Args))
	case OpInvokeClosure:
		return fmt.Sprintf("%s <- InvokeClosure %s args=%s", regName(in.Dst), regName(in.ClosureReg), regList(in.Args))
	case OpInvokePacked:
		return fmt.Sprintf("%s <- InvokePacked packed[%d] arity=%d returns=%d args=%s",
			regName(in.Dst), in.PackedIndex, in.Arity, in.ReturnCount, regList(in.PackedArgs))
	case OpSelect:
		return fmt.Sprintf("%s <- Select %s ? %s : %s", regName(in.Dst), regName(in.Cond), regName(in.IfTrue), regName(in.IfFalse))
	case OpIf:
		return fmt.Sprintf("If %s true=%+d false=%+d", regName(in.CondReg), in.TrueOffset, in.FalseOffset)
	case OpGoto:
		return fmt.Sprintf("Goto %+d", in.Offset)
	case OpRet:
		return fmt.Sprintf("Ret %s", regName(in.Result))
	default:
		return "Invalid"
	}
}

func regName(r Reg) string {
	if r == RegVoid {
		return "void"
	}
	return fmt.Sprintf("r%d", r)
}

func regList(rs []Reg) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = regName(r)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
