package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes the class file. Names and descriptors held as strings
// are interned into the constant pool first, so the pool written out is the
// pool after every rename.
func (cf *ClassFile) Encode() ([]byte, error) {
	var body bytes.Buffer
	w := &writer{cf: cf, buf: &body}

	w.u16(cf.AccessFlags)
	w.u16(cf.ThisClass)
	w.u16(cf.SuperClass)
	w.count(len(cf.Interfaces), "interfaces")
	for _, idx := range cf.Interfaces {
		w.u16(idx)
	}

	w.count(len(cf.Fields), "fields")
	for i := range cf.Fields {
		f := &cf.Fields[i]
		w.u16(f.AccessFlags)
		w.utf8(f.Name)
		w.utf8(f.Descriptor)
		w.attributes(f.Attributes, nil)
	}

	w.count(len(cf.Methods), "methods")
	for i := range cf.Methods {
		m := &cf.Methods[i]
		w.u16(m.AccessFlags)
		w.utf8(m.Name)
		w.utf8(m.Descriptor)
		w.attributes(m.Attributes, m.Code)
	}

	w.attributes(cf.Attributes, nil)
	if w.err != nil {
		return nil, fmt.Errorf("encoding class body: %w", w.err)
	}

	// The pool is complete only after the body interned its strings.
	var out bytes.Buffer
	hw := &writer{cf: cf, buf: &out}
	hw.u32(classMagic)
	hw.u16(cf.MinorVersion)
	hw.u16(cf.MajorVersion)
	hw.constantPool()
	if hw.err != nil {
		return nil, fmt.Errorf("encoding constant pool: %w", hw.err)
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

type writer struct {
	cf  *ClassFile
	buf *bytes.Buffer
	err error
}

func (w *writer) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) count(n int, what string) {
	if n > math.MaxUint16 && w.err == nil {
		w.err = fmt.Errorf("too many %s: %d", what, n)
	}
	w.u16(uint16(n))
}

func (w *writer) utf8(s string) {
	idx, err := w.cf.Utf8Index(s)
	if err != nil && w.err == nil {
		w.err = err
	}
	w.u16(idx)
}

func (w *writer) attributes(attrs []AttributeInfo, code *CodeAttribute) {
	w.count(len(attrs), "attributes")
	for _, a := range attrs {
		data := a.Data
		if a.Name == attrCode && code != nil {
			data = w.codeAttribute(code)
		}
		w.utf8(a.Name)
		w.u32(uint32(len(data)))
		w.buf.Write(data)
	}
}

func (w *writer) codeAttribute(code *CodeAttribute) []byte {
	var buf bytes.Buffer
	cw := &writer{cf: w.cf, buf: &buf}
	cw.u16(code.MaxStack)
	cw.u16(code.MaxLocals)
	cw.u32(uint32(len(code.Code)))
	buf.Write(code.Code)
	cw.count(len(code.ExceptionHandlers), "exception handlers")
	for _, h := range code.ExceptionHandlers {
		cw.u16(h.StartPC)
		cw.u16(h.EndPC)
		cw.u16(h.HandlerPC)
		cw.u16(h.CatchType)
	}

	attrs := code.Attributes
	if len(code.LocalVariables) > 0 && !hasAttribute(attrs, attrLocalVariableTable) {
		attrs = append(attrs[:len(attrs):len(attrs)], AttributeInfo{Name: attrLocalVariableTable})
	}
	cw.count(len(attrs), "Code attributes")
	for _, a := range attrs {
		data := a.Data
		if a.Name == attrLocalVariableTable {
			data = cw.localVariables(code.LocalVariables)
		}
		cw.utf8(a.Name)
		cw.u32(uint32(len(data)))
		buf.Write(data)
	}
	if cw.err != nil && w.err == nil {
		w.err = cw.err
	}
	return buf.Bytes()
}

func (w *writer) localVariables(vars []LocalVariable) []byte {
	var buf bytes.Buffer
	lw := &writer{cf: w.cf, buf: &buf}
	lw.count(len(vars), "local variables")
	for _, v := range vars {
		lw.u16(v.StartPC)
		lw.u16(v.Length)
		lw.utf8(v.Name)
		lw.utf8(v.Descriptor)
		lw.u16(v.Index)
	}
	if lw.err != nil && w.err == nil {
		w.err = lw.err
	}
	return buf.Bytes()
}

func hasAttribute(attrs []AttributeInfo, name string) bool {
	for _, a := range attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (w *writer) constantPool() {
	pool := w.cf.ConstantPool
	if len(pool) == 0 {
		pool = []ConstantPoolEntry{nil}
	}
	w.count(len(pool), "constant pool entries")
	for i := 1; i < len(pool); i++ {
		e := pool[i]
		if e == nil {
			// second slot of a long or double
			continue
		}
		w.u8(e.Tag())
		switch c := e.(type) {
		case *ConstantUtf8:
			w.u16(uint16(len(c.Value)))
			w.buf.WriteString(c.Value)
		case *ConstantInteger:
			w.u32(uint32(c.Value))
		case *ConstantFloat:
			w.u32(math.Float32bits(c.Value))
		case *ConstantLong:
			w.u32(uint32(uint64(c.Value) >> 32))
			w.u32(uint32(c.Value))
		case *ConstantDouble:
			bits := math.Float64bits(c.Value)
			w.u32(uint32(bits >> 32))
			w.u32(uint32(bits))
		case *ConstantClass:
			w.u16(c.NameIndex)
		case *ConstantString:
			w.u16(c.StringIndex)
		case *ConstantFieldref:
			w.u16(c.ClassIndex)
			w.u16(c.NameAndTypeIndex)
		case *ConstantMethodref:
			w.u16(c.ClassIndex)
			w.u16(c.NameAndTypeIndex)
		case *ConstantInterfaceMethodref:
			w.u16(c.ClassIndex)
			w.u16(c.NameAndTypeIndex)
		case *ConstantNameAndType:
			w.u16(c.NameIndex)
			w.u16(c.DescriptorIndex)
		case *ConstantRaw:
			w.buf.Write(c.Data)
		default:
			if w.err == nil {
				w.err = fmt.Errorf("unsupported constant pool entry at index %d (tag=%d)", i, e.Tag())
			}
		}
	}
}
