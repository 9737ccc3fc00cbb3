package remap

import (
	"fmt"

	"github.com/daimatz/jremap/pkg/classfile"
	"github.com/daimatz/jremap/pkg/mapping"
)

// SubstitutionPass replaces generated identifiers (func_70071_h_,
// field_70170_p, p_70029_1_) with the human names of the
// identifier-substitution tables. It never consults the hierarchy.
type SubstitutionPass struct {
	names *mapping.Names
	ids   *mapping.IDs
}

// NewSubstitutionPass returns a pass over names. ids memoizes id
// extraction and should live as long as one remap operation.
func NewSubstitutionPass(names *mapping.Names, ids *mapping.IDs) *SubstitutionPass {
	return &SubstitutionPass{names: names, ids: ids}
}

func (p *SubstitutionPass) Name() string { return "substitution" }

func (p *SubstitutionPass) Apply(cf *classfile.ClassFile, _ *Resolver, _ Guard) (bool, error) {
	changed := false
	rename := func(table map[int]string, name *string) {
		if n, ok := p.lookup(table, *name); ok {
			*name = n
			changed = true
		}
	}

	for i := range cf.Fields {
		rename(p.names.Fields, &cf.Fields[i].Name)
	}
	seen := make(refSet)
	for i := range cf.Methods {
		m := &cf.Methods[i]
		rename(p.names.Methods, &m.Name)
		if m.Code == nil {
			continue
		}
		for j := range m.Code.LocalVariables {
			lv := &m.Code.LocalVariables[j]
			if n, ok := p.names.Params[lv.Name]; ok && n != lv.Name {
				lv.Name = n
				changed = true
			}
		}

		insns, err := classfile.Instructions(m.Code.Code)
		if err != nil {
			return false, fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
		}
		for _, insn := range insns {
			var table map[int]string
			switch insn.Kind {
			case classfile.KindField:
				table = p.names.Fields
			case classfile.KindMethod:
				table = p.names.Methods
			default:
				continue
			}
			if !seen.visit(insn.Index) {
				continue
			}
			ref, err := cf.MemberRef(insn.Index)
			if err != nil {
				return false, err
			}
			n, ok := p.lookup(table, ref.Name)
			if !ok {
				continue
			}
			if err := cf.SetMemberNameAndType(insn.Index, n, ref.Descriptor); err != nil {
				return false, err
			}
			changed = true
		}
	}
	return changed, nil
}

func (p *SubstitutionPass) lookup(table map[int]string, name string) (string, bool) {
	id := p.ids.Of(name)
	if id < 0 {
		return "", false
	}
	n, ok := table[id]
	return n, ok && n != name
}
