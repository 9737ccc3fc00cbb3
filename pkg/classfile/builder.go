package classfile

import "fmt"

// Builder assembles a class file in memory. Errors are sticky and reported
// by Build.
type Builder struct {
	cf      *ClassFile
	methods []*MethodBuilder
	err     error
}

// MethodBuilder appends bytecode to one method of a Builder.
type MethodBuilder struct {
	b    *Builder
	info *MethodInfo
	code []byte
	vars []LocalVariable
	eh   []ExceptionHandler
}

// NewBuilder starts a class named name extending super. An empty super
// produces a class without a superclass (java/lang/Object itself).
func NewBuilder(name, super string, interfaces ...string) *Builder {
	b := &Builder{cf: &ClassFile{
		MajorVersion: 52,
		AccessFlags:  AccPublic | AccSuper,
		ConstantPool: []ConstantPoolEntry{nil},
	}}
	b.cf.ThisClass = b.class(name)
	if super != "" {
		b.cf.SuperClass = b.class(super)
	}
	for _, itf := range interfaces {
		b.cf.Interfaces = append(b.cf.Interfaces, b.class(itf))
	}
	return b
}

func (b *Builder) keep(idx uint16, err error) uint16 {
	if err != nil && b.err == nil {
		b.err = err
	}
	return idx
}

func (b *Builder) class(name string) uint16 {
	return b.keep(b.cf.ClassIndex(name))
}

// Flags sets the class access flags.
func (b *Builder) Flags(flags uint16) *Builder {
	b.cf.AccessFlags = flags
	return b
}

// Field declares a field.
func (b *Builder) Field(flags uint16, name, desc string) *Builder {
	b.cf.Fields = append(b.cf.Fields, FieldInfo{AccessFlags: flags, Name: name, Descriptor: desc})
	return b
}

// Long adds a CONSTANT_Long, which occupies two pool slots.
func (b *Builder) Long(v int64) uint16 {
	idx := b.keep(b.cf.appendEntry(&ConstantLong{Value: v}))
	b.keep(b.cf.appendEntry(nil))
	return idx
}

// String adds a CONSTANT_String.
func (b *Builder) String(s string) uint16 {
	utf8 := b.keep(b.cf.Utf8Index(s))
	return b.keep(b.cf.appendEntry(&ConstantString{StringIndex: utf8}))
}

// Attribute adds a raw class attribute.
func (b *Builder) Attribute(name string, data []byte) *Builder {
	b.cf.Attributes = append(b.cf.Attributes, AttributeInfo{Name: name, Data: data})
	return b
}

// Method declares a method with a Code attribute.
func (b *Builder) Method(flags uint16, name, desc string) *MethodBuilder {
	b.cf.Methods = append(b.cf.Methods, MethodInfo{AccessFlags: flags, Name: name, Descriptor: desc})
	m := &MethodBuilder{b: b}
	b.methods = append(b.methods, m)
	return m
}

// Abstract declares a method without code.
func (b *Builder) Abstract(name, desc string) *Builder {
	b.cf.Methods = append(b.cf.Methods, MethodInfo{AccessFlags: AccPublic | AccAbstract, Name: name, Descriptor: desc})
	b.methods = append(b.methods, nil)
	return b
}

// Build finishes every method with a return and returns the class file.
func (b *Builder) Build() (*ClassFile, error) {
	if b.err != nil {
		return nil, b.err
	}
	for i, m := range b.methods {
		if m == nil {
			continue
		}
		code := append(append([]byte(nil), m.code...), 0xB1) // return
		for j := range m.vars {
			m.vars[j].Length = uint16(len(code))
		}
		info := &b.cf.Methods[i]
		info.Code = &CodeAttribute{
			MaxStack:          8,
			MaxLocals:         8,
			Code:              code,
			ExceptionHandlers: m.eh,
			LocalVariables:    m.vars,
		}
		info.Attributes = []AttributeInfo{{Name: attrCode}}
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.cf, nil
}

// Bytes builds and encodes the class.
func (b *Builder) Bytes() ([]byte, error) {
	cf, err := b.Build()
	if err != nil {
		return nil, err
	}
	return cf.Encode()
}

func (m *MethodBuilder) emit(op byte, idx uint16) *MethodBuilder {
	m.code = append(m.code, op, byte(idx>>8), byte(idx))
	return m
}

// Op appends raw bytecode.
func (m *MethodBuilder) Op(code ...byte) *MethodBuilder {
	m.code = append(m.code, code...)
	return m
}

// Invoke appends an invoke instruction.
func (m *MethodBuilder) Invoke(op byte, owner, name, desc string) *MethodBuilder {
	tag := uint8(TagMethodref)
	if op == OpInvokeinterface {
		tag = TagInterfaceMethodref
	}
	idx := m.b.keep(m.b.cf.MemberRefIndex(tag, owner, name, desc))
	m.emit(op, idx)
	if op == OpInvokeinterface {
		args, _, err := ParseMethodDescriptor(desc)
		if err != nil {
			m.b.keep(0, err)
		}
		m.code = append(m.code, byte(len(args)+1), 0)
	}
	return m
}

// Field appends a get/put field instruction.
func (m *MethodBuilder) Field(op byte, owner, name, desc string) *MethodBuilder {
	return m.emit(op, m.b.keep(m.b.cf.MemberRefIndex(TagFieldref, owner, name, desc)))
}

// Type appends new, checkcast, instanceof, anewarray or multianewarray.
func (m *MethodBuilder) Type(op byte, name string) *MethodBuilder {
	m.emit(op, m.b.class(name))
	if op == OpMultianewarray {
		dims, _ := ArrayElement(name)
		m.code = append(m.code, byte(dims))
	}
	return m
}

// LdcClass appends a class literal load, using ldc when the index fits.
func (m *MethodBuilder) LdcClass(name string) *MethodBuilder {
	return m.ldc(m.b.class(name))
}

// LdcString appends a string constant load.
func (m *MethodBuilder) LdcString(s string) *MethodBuilder {
	return m.ldc(m.b.String(s))
}

func (m *MethodBuilder) ldc(idx uint16) *MethodBuilder {
	if idx <= 0xFF {
		m.code = append(m.code, OpLdc, byte(idx))
		return m
	}
	return m.emit(OpLdcW, idx)
}

// Local declares a LocalVariableTable entry spanning the whole method.
func (m *MethodBuilder) Local(index uint16, name, desc string) *MethodBuilder {
	m.vars = append(m.vars, LocalVariable{Name: name, Descriptor: desc, Index: index})
	return m
}

// Catch adds an exception handler over the current code with the given
// catch type; an empty type catches everything.
func (m *MethodBuilder) Catch(typ string) *MethodBuilder {
	var idx uint16
	if typ != "" {
		idx = m.b.class(typ)
	}
	if len(m.code) == 0 {
		m.b.keep(0, fmt.Errorf("catch over empty code"))
		return m
	}
	m.eh = append(m.eh, ExceptionHandler{StartPC: 0, EndPC: uint16(len(m.code)), HandlerPC: 0, CatchType: idx})
	return m
}

// End returns the owning builder.
func (m *MethodBuilder) End() *Builder {
	return m.b
}
