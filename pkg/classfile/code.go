package classfile

import "fmt"

// Opcodes that carry a constant-pool operand or need special length handling.
const (
	OpBipush          = 0x10
	OpSipush          = 0x11
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpIload           = 0x15
	OpAload           = 0x19
	OpIstore          = 0x36
	OpAstore          = 0x3A
	OpIinc            = 0x84
	OpIfeq            = 0x99
	OpGoto            = 0xA7
	OpJsr             = 0xA8
	OpRet             = 0xA9
	OpTableswitch     = 0xAA
	OpLookupswitch    = 0xAB
	OpGetstatic       = 0xB2
	OpPutstatic       = 0xB3
	OpGetfield        = 0xB4
	OpPutfield        = 0xB5
	OpInvokevirtual   = 0xB6
	OpInvokespecial   = 0xB7
	OpInvokestatic    = 0xB8
	OpInvokeinterface = 0xB9
	OpInvokedynamic   = 0xBA
	OpNew             = 0xBB
	OpNewarray        = 0xBC
	OpAnewarray       = 0xBD
	OpCheckcast       = 0xC0
	OpInstanceof      = 0xC1
	OpWide            = 0xC4
	OpMultianewarray  = 0xC5
	OpIfnull          = 0xC6
	OpIfnonnull       = 0xC7
	OpGotoW           = 0xC8
	OpJsrW            = 0xC9
)

// InstructionKind classifies what an instruction's constant-pool operand
// refers to.
type InstructionKind int

const (
	KindOther InstructionKind = iota
	KindField
	KindMethod
	KindType
	KindConstant
)

// Instruction is one decoded bytecode instruction. Index is the
// constant-pool operand for field, method, type and ldc instructions.
type Instruction struct {
	PC     int
	Opcode byte
	Length int
	Kind   InstructionKind
	Index  uint16
}

// opcodeLengths holds the total length of fixed-size instructions.
// Zero marks an opcode that is unassigned or variable-length.
var opcodeLengths = func() [256]int {
	var l [256]int
	for op := 0x00; op <= 0xC9; op++ {
		l[op] = 1
	}
	for _, op := range []int{OpBipush, OpLdc, OpNewarray, OpRet} {
		l[op] = 2
	}
	for op := OpIload; op <= OpAload; op++ {
		l[op] = 2
	}
	for op := OpIstore; op <= OpAstore; op++ {
		l[op] = 2
	}
	for _, op := range []int{OpSipush, OpLdcW, OpLdc2W, OpIinc, OpGetstatic, OpPutstatic,
		OpGetfield, OpPutfield, OpInvokevirtual, OpInvokespecial, OpInvokestatic,
		OpNew, OpAnewarray, OpCheckcast, OpInstanceof, OpIfnull, OpIfnonnull} {
		l[op] = 3
	}
	for op := OpIfeq; op <= OpJsr; op++ {
		l[op] = 3
	}
	l[OpMultianewarray] = 4
	for _, op := range []int{OpInvokeinterface, OpInvokedynamic, OpGotoW, OpJsrW} {
		l[op] = 5
	}
	l[OpTableswitch] = 0
	l[OpLookupswitch] = 0
	l[OpWide] = 0
	return l
}()

// codeReader walks a method body the way a frame walks its code.
type codeReader struct {
	code []byte
	pc   int
}

func (r *codeReader) u16(at int) uint16 {
	return uint16(r.code[at])<<8 | uint16(r.code[at+1])
}

func (r *codeReader) i32(at int) int32 {
	return int32(uint32(r.code[at])<<24 | uint32(r.code[at+1])<<16 | uint32(r.code[at+2])<<8 | uint32(r.code[at+3]))
}

func (r *codeReader) need(at, n int) error {
	if at+n > len(r.code) {
		return fmt.Errorf("truncated instruction at pc %d", r.pc)
	}
	return nil
}

// Instructions decodes a method body into its instruction sequence.
func Instructions(code []byte) ([]Instruction, error) {
	r := &codeReader{code: code}
	var insns []Instruction
	for r.pc < len(code) {
		op := code[r.pc]
		length, err := r.length(op)
		if err != nil {
			return nil, err
		}
		if err := r.need(r.pc, length); err != nil {
			return nil, err
		}
		insn := Instruction{PC: r.pc, Opcode: op, Length: length}
		switch op {
		case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield:
			insn.Kind, insn.Index = KindField, r.u16(r.pc+1)
		case OpInvokevirtual, OpInvokespecial, OpInvokestatic, OpInvokeinterface:
			insn.Kind, insn.Index = KindMethod, r.u16(r.pc+1)
		case OpNew, OpAnewarray, OpCheckcast, OpInstanceof, OpMultianewarray:
			insn.Kind, insn.Index = KindType, r.u16(r.pc+1)
		case OpLdc:
			insn.Kind, insn.Index = KindConstant, uint16(code[r.pc+1])
		case OpLdcW:
			insn.Kind, insn.Index = KindConstant, r.u16(r.pc+1)
		}
		insns = append(insns, insn)
		r.pc += length
	}
	return insns, nil
}

func (r *codeReader) length(op byte) (int, error) {
	switch op {
	case OpTableswitch:
		base := r.pc + 1 + (3-r.pc%4+4)%4
		if err := r.need(base, 12); err != nil {
			return 0, err
		}
		low, high := r.i32(base+4), r.i32(base+8)
		if high < low {
			return 0, fmt.Errorf("tableswitch at pc %d: high %d < low %d", r.pc, high, low)
		}
		return base - r.pc + 12 + 4*int(int64(high)-int64(low)+1), nil
	case OpLookupswitch:
		base := r.pc + 1 + (3-r.pc%4+4)%4
		if err := r.need(base, 8); err != nil {
			return 0, err
		}
		npairs := r.i32(base + 4)
		if npairs < 0 {
			return 0, fmt.Errorf("lookupswitch at pc %d: negative npairs %d", r.pc, npairs)
		}
		return base - r.pc + 8 + 8*int(npairs), nil
	case OpWide:
		if err := r.need(r.pc, 2); err != nil {
			return 0, err
		}
		if r.code[r.pc+1] == OpIinc {
			return 6, nil
		}
		return 4, nil
	}
	if l := opcodeLengths[op]; l > 0 {
		return l, nil
	}
	return 0, fmt.Errorf("unknown opcode 0x%02X at pc %d", op, r.pc)
}
