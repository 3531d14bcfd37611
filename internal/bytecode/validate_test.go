package bytecode

import "testing"

func validProgram() *VMProgram {
	return &VMProgram{
		Constants: []Constant{{Kind: ConstData, Bytes: []byte{1, 2, 3, 4}}},
		Functions: []VMFunction{{
			Name:       "main",
			ParamCount: 1,
			NumRegs:    2,
			Instrs: []Instruction{
				{Op: OpLoadConst, Dst: 1, ConstIndex: 0},
				{Op: OpRet, Result: 1},
			},
		}},
		GlobalMap: map[string]uint32{"main": 0},
	}
}

func TestValidateAcceptsWellFormedProgram(t *testing.T) {
	if err := Validate(validProgram()); err != nil {
		t.Fatalf("expected a well-formed program to validate, got: %v", err)
	}
}

func TestValidateCatchesRegisterOutOfRange(t *testing.T) {
	prog := validProgram()
	prog.Functions[0].Instrs[0].Dst = 99
	if err := Validate(prog); err == nil {
		t.Fatalf("expected an out-of-range register to be reported")
	}
}

func TestValidateCatchesBadConstIndex(t *testing.T) {
	prog := validProgram()
	prog.Functions[0].Instrs[0].ConstIndex = 7
	if err := Validate(prog); err == nil {
		t.Fatalf("expected an out-of-range constant index to be reported")
	}
}

func TestValidateCatchesMissingRet(t *testing.T) {
	prog := validProgram()
	prog.Functions[0].Instrs = prog.Functions[0].Instrs[:1]
	if err := Validate(prog); err == nil {
		t.Fatalf("expected a function not ending in Ret to be reported")
	}
}

func TestValidateCatchesBadJumpOffset(t *testing.T) {
	prog := validProgram()
	fn := &prog.Functions[0]
	fn.Instrs = []Instruction{
		{Op: OpGoto, Offset: 10},
		{Op: OpRet, Result: 0},
	}
	if err := Validate(prog); err == nil {
		t.Fatalf("expected an out-of-range jump target to be reported")
	}
}

func TestValidateCatchesInvokePackedArityMismatch(t *testing.T) {
	prog := validProgram()
	prog.PackedFuncs = []PackedFunc{{Name: "add", Target: "llvm"}}
	prog.Functions[0].Instrs = []Instruction{
		{Op: OpInvokePacked, PackedIndex: 0, Arity: 3, ReturnCount: 1, PackedArgs: []Reg{0, 1}},
		{Op: OpRet, Result: 1},
	}
	if err := Validate(prog); err == nil {
		t.Fatalf("expected an arity/packed_args length mismatch to be reported")
	}
}

func TestLastRegisterForInvokePacked(t *testing.T) {
	in := Instruction{Op: OpInvokePacked, Arity: 3, PackedArgs: []Reg{0, 1, 2}}
	last, ok := in.LastRegister()
	if !ok || last != 2 {
		t.Fatalf("expected last register 2, got %d ok=%v", last, ok)
	}
}
