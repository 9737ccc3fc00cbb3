package remap

import (
	"fmt"
	"strings"

	"github.com/apex/log"

	"github.com/daimatz/jremap/pkg/classfile"
	"github.com/daimatz/jremap/pkg/mapping"
)

// StructuralPass applies the class, field and method renames of the
// structural mapping table, resolving inherited members through the class
// hierarchy and fixing every descriptor that mentions a renamed class.
type StructuralPass struct{}

func (StructuralPass) Name() string { return "structural" }

func (StructuralPass) Apply(cf *classfile.ClassFile, r *Resolver, guard Guard) (bool, error) {
	s := &structural{
		cf:      cf,
		r:       r,
		guard:   guard,
		log:     r.Logger(),
		classes: make(map[uint16]*mapping.ClassMapping),
		members: make(refSet),
	}
	if err := s.run(); err != nil {
		return false, err
	}
	return s.changed, nil
}

// structural is the state of one StructuralPass over one class.
type structural struct {
	cf    *classfile.ClassFile
	r     *Resolver
	guard Guard
	log   log.Interface
	self  *mapping.ClassMapping

	// classes memoizes the mapping each CONSTANT_Class entry resolved to;
	// presence means the entry has been rewritten.
	classes map[uint16]*mapping.ClassMapping
	members refSet
	changed bool
}

func (s *structural) run() error {
	name, err := s.cf.ClassName()
	if err != nil {
		return err
	}
	s.log = s.log.WithField("class", name)

	if err := s.hierarchy(name); err != nil {
		return err
	}
	if err := s.fields(); err != nil {
		return err
	}
	if err := s.methods(); err != nil {
		return err
	}
	for i := range s.cf.Methods {
		m := &s.cf.Methods[i]
		if m.Code == nil {
			continue
		}
		if err := s.code(m.Code); err != nil {
			return fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
		}
	}

	// Class constants no instruction reaches: stack map frames, inner
	// class records, annotations' enclosing types.
	n := len(s.cf.ConstantPool)
	for i := 1; i < n; i++ {
		if _, ok := s.cf.ConstantPool[i].(*classfile.ConstantClass); ok {
			if _, err := s.class(uint16(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// hierarchy renames this, super and interface entries and makes sure the
// class has a mapping whose parent and interfaces are known.
func (s *structural) hierarchy(name string) error {
	table := s.r.Table()
	s.self = table.Find(name)
	s.classes[s.cf.ThisClass] = s.self
	if s.self != nil && s.self.Name != name {
		if err := s.rename(s.cf.ThisClass, s.self.Name); err != nil {
			return err
		}
	}

	var parent *mapping.ClassMapping
	if s.cf.SuperClass != 0 {
		var err error
		if parent, err = s.class(s.cf.SuperClass); err != nil {
			return err
		}
		if parent == nil {
			s.log.WithField("super", s.cf.SuperClassName()).Debug("missing superclass")
		}
	}

	var interfaces []*mapping.ClassMapping
	for _, idx := range s.cf.Interfaces {
		itf, err := s.class(idx)
		if err != nil {
			return err
		}
		if itf != nil {
			interfaces = append(interfaces, itf)
		}
	}

	switch {
	case s.self == nil:
		s.self = table.AddIdentity(name, parent, interfaces)
		s.classes[s.cf.ThisClass] = s.self
	case s.self.Parent == nil && len(s.self.Interfaces) == 0:
		s.self.Parent = parent
		s.self.Interfaces = interfaces
	}
	return nil
}

func (s *structural) fields() error {
	for i := range s.cf.Fields {
		f := &s.cf.Fields[i]
		if m, ok := s.self.FindField(f.Name, "", true, false); ok {
			s.log.Debugf("field %s -> %s", f.Name, m.Name)
			s.set(&f.Name, m.Name)
			if m.Desc != "" {
				s.set(&f.Descriptor, m.Desc)
			}
		}
		desc, err := s.fieldType(f.Descriptor)
		if err != nil {
			return err
		}
		s.set(&f.Descriptor, desc)
	}
	return nil
}

func (s *structural) methods() error {
	for i := range s.cf.Methods {
		m := &s.cf.Methods[i]
		if mm, ok := s.self.FindMethod(m.Name, m.Descriptor, true, true); ok {
			s.log.Debugf("method %s%s -> %s%s", m.Name, m.Descriptor, mm.Name, mm.Desc)
			s.set(&m.Name, mm.Name)
			s.set(&m.Descriptor, mm.Desc)
		}
		desc, err := s.methodType(m.Descriptor)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		s.set(&m.Descriptor, desc)

		if m.Code == nil {
			continue
		}
		for j := range m.Code.LocalVariables {
			lv := &m.Code.LocalVariables[j]
			desc, err := s.fieldType(lv.Descriptor)
			if err != nil {
				return err
			}
			s.set(&lv.Descriptor, desc)
		}
	}
	return nil
}

func (s *structural) code(code *classfile.CodeAttribute) error {
	insns, err := classfile.Instructions(code.Code)
	if err != nil {
		return err
	}
	for _, insn := range insns {
		switch insn.Kind {
		case classfile.KindMethod:
			err = s.methodRef(insn.Index)
		case classfile.KindField:
			err = s.fieldRef(insn.Index)
		case classfile.KindType:
			_, err = s.class(insn.Index)
		case classfile.KindConstant:
			if s.cf.ClassRef(insn.Index) != nil {
				_, err = s.class(insn.Index)
			}
		}
		if err != nil {
			return fmt.Errorf("pc %d: %w", insn.PC, err)
		}
	}
	for _, h := range code.ExceptionHandlers {
		if h.CatchType == 0 {
			continue
		}
		if _, err := s.class(h.CatchType); err != nil {
			return err
		}
	}
	return nil
}

// owner resolves the owner of a member reference.
func (s *structural) owner(ref *classfile.MemberRef) (*mapping.ClassMapping, error) {
	if ref.Owner == s.self.Name || ref.Owner == s.self.ObfuscatedName {
		if _, err := s.class(ref.ClassIndex); err != nil {
			return nil, err
		}
		return s.self, nil
	}
	return s.class(ref.ClassIndex)
}

func (s *structural) methodRef(index uint16) error {
	if !s.members.visit(index) {
		return nil
	}
	ref, err := s.cf.MemberRef(index)
	if err != nil {
		return err
	}
	owner, err := s.owner(ref)
	if err != nil {
		return err
	}
	name, desc := ref.Name, ref.Descriptor
	if owner != nil {
		if m, ok := owner.FindMethod(name, desc, true, true); ok {
			name, desc = m.Name, m.Desc
		}
	}
	if desc, err = s.methodType(desc); err != nil {
		return err
	}
	return s.retarget(index, ref, name, desc)
}

// fieldRef renames a field reference by name only: mapping tables do not
// reliably carry field types, so the descriptor is fixed independently.
// Only the owner's own dictionary is consulted. A field declared by the
// owner hides a mapped field of the same name further up, and the owner's
// mapping does not know the fields its bytecode declares.
func (s *structural) fieldRef(index uint16) error {
	if !s.members.visit(index) {
		return nil
	}
	ref, err := s.cf.MemberRef(index)
	if err != nil {
		return err
	}
	desc, err := s.fieldType(ref.Descriptor)
	if err != nil {
		return err
	}
	owner, err := s.owner(ref)
	if err != nil {
		return err
	}
	name := ref.Name
	if owner != nil {
		if m, ok := owner.FindField(name, "", true, false); ok {
			name = m.Name
			if m.Desc != "" {
				desc = m.Desc
			}
		}
	}
	return s.retarget(index, ref, name, desc)
}

func (s *structural) retarget(index uint16, ref *classfile.MemberRef, name, desc string) error {
	if name == ref.Name && desc == ref.Descriptor {
		return nil
	}
	s.changed = true
	return s.cf.SetMemberNameAndType(index, name, desc)
}

// class resolves and renames the CONSTANT_Class entry at index. Array
// classes are renamed through their element type and resolve to nil.
func (s *structural) class(index uint16) (*mapping.ClassMapping, error) {
	if m, ok := s.classes[index]; ok {
		return m, nil
	}
	s.classes[index] = nil
	name, err := classfile.GetClassName(s.cf.ConstantPool, index)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(name, "[") {
		desc, err := s.fieldType(name)
		if err != nil {
			return nil, err
		}
		if desc != name {
			return nil, s.rename(index, desc)
		}
		return nil, nil
	}
	m, err := s.r.Resolve(name, s.guard)
	if err != nil {
		return nil, err
	}
	s.classes[index] = m
	if m != nil && m.Name != name {
		return m, s.rename(index, m.Name)
	}
	return m, nil
}

func (s *structural) rename(index uint16, name string) error {
	s.changed = true
	return s.cf.SetClassName(index, name)
}

// set assigns v to *dst, recording a change.
func (s *structural) set(dst *string, v string) {
	if *dst != v {
		*dst = v
		s.changed = true
	}
}

// fieldType rewrites the object type of a field descriptor, keeping array
// dimensions and primitive types as they are.
func (s *structural) fieldType(desc string) (string, error) {
	if !classfile.ValidFieldDescriptor(desc) {
		return "", fmt.Errorf("malformed field descriptor %q", desc)
	}
	dims, elem := classfile.ArrayElement(desc)
	name, ok := classfile.ObjectTypeName(elem)
	if !ok {
		return desc, nil
	}
	m, err := s.r.Resolve(name, s.guard)
	if err != nil || m == nil || m.Name == name {
		return desc, err
	}
	return strings.Repeat("[", dims) + "L" + m.Name + ";", nil
}

// methodType rewrites every argument and the return type of a method
// descriptor.
func (s *structural) methodType(desc string) (string, error) {
	args, ret, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return "", err
	}
	for i, a := range args {
		if args[i], err = s.fieldType(a); err != nil {
			return "", err
		}
	}
	if ret != "V" {
		if ret, err = s.fieldType(ret); err != nil {
			return "", err
		}
	}
	return classfile.MethodDescriptor(args, ret), nil
}
