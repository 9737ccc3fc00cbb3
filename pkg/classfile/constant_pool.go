package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// maxPoolSize is the largest constant_pool_count the format can express.
const maxPoolSize = math.MaxUint16

// ErrPoolOverflow is returned when appending to a full constant pool.
var ErrPoolOverflow = errors.New("constant pool overflow")

// parseConstantPool reads constant_pool_count-1 entries from the reader.
// The returned slice is 1-indexed: index 0 is nil.
func parseConstantPool(r io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)
	// pool[0] is unused (constant pool is 1-indexed)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, err)
		}

		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, fmt.Errorf("reading Utf8 length at index %d: %w", i, err)
			}
			bytes := make([]byte, length)
			if _, err := io.ReadFull(r, bytes); err != nil {
				return nil, fmt.Errorf("reading Utf8 bytes at index %d: %w", i, err)
			}
			pool[i] = &ConstantUtf8{Value: string(bytes)}

		case TagInteger:
			var val int32
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, fmt.Errorf("reading Integer at index %d: %w", i, err)
			}
			pool[i] = &ConstantInteger{Value: val}

		case TagFloat:
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Float at index %d: %w", i, err)
			}
			pool[i] = &ConstantFloat{Value: math.Float32frombits(bits)}

		case TagLong:
			var val int64
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, fmt.Errorf("reading Long at index %d: %w", i, err)
			}
			pool[i] = &ConstantLong{Value: val}
			i++ // long takes 2 slots

		case TagDouble:
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Double at index %d: %w", i, err)
			}
			pool[i] = &ConstantDouble{Value: math.Float64frombits(bits)}
			i++ // double takes 2 slots

		case TagClass:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading Class at index %d: %w", i, err)
			}
			pool[i] = &ConstantClass{NameIndex: nameIndex}

		case TagString:
			var stringIndex uint16
			if err := binary.Read(r, binary.BigEndian, &stringIndex); err != nil {
				return nil, fmt.Errorf("reading String at index %d: %w", i, err)
			}
			pool[i] = &ConstantString{StringIndex: stringIndex}

		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			var classIndex, natIndex uint16
			if err := binary.Read(r, binary.BigEndian, &classIndex); err != nil {
				return nil, fmt.Errorf("reading member ref class_index at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &natIndex); err != nil {
				return nil, fmt.Errorf("reading member ref name_and_type_index at index %d: %w", i, err)
			}
			switch tag {
			case TagFieldref:
				pool[i] = &ConstantFieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}
			case TagMethodref:
				pool[i] = &ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}
			default:
				pool[i] = &ConstantInterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}
			}

		case TagNameAndType:
			var nameIndex, descIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading NameAndType name_index at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
				return nil, fmt.Errorf("reading NameAndType descriptor_index at index %d: %w", i, err)
			}
			pool[i] = &ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}

		case TagMethodHandle, TagMethodType, TagDynamic, TagInvokeDynamic, TagModule, TagPackage:
			data := make([]byte, rawEntrySize(tag))
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("reading constant (tag=%d) at index %d: %w", tag, i, err)
			}
			pool[i] = &ConstantRaw{tag: tag, Data: data}

		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
	}

	return pool, nil
}

func rawEntrySize(tag uint8) int {
	switch tag {
	case TagMethodHandle:
		// reference_kind (u1) + reference_index (u2)
		return 3
	case TagMethodType, TagModule, TagPackage:
		return 2
	default:
		// bootstrap_method_attr_index (u2) + name_and_type_index (u2)
		return 4
	}
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", index)
	}
	utf8, ok := pool[index].(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, pool[index].Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	if int(classIndex) >= len(pool) || pool[classIndex] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", classIndex)
	}
	class, ok := pool[classIndex].(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// MemberRef is a resolved Fieldref, Methodref or InterfaceMethodref entry.
type MemberRef struct {
	Tag        uint8
	ClassIndex uint16
	Owner      string
	Name       string
	Descriptor string
}

// MemberRef resolves the field or method reference at index.
func (cf *ClassFile) MemberRef(index uint16) (*MemberRef, error) {
	pool := cf.ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	var classIndex, natIndex uint16
	switch ref := pool[index].(type) {
	case *ConstantFieldref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	default:
		return nil, fmt.Errorf("constant pool index %d is not a member ref (tag=%d)", index, pool[index].Tag())
	}

	owner, err := GetClassName(pool, classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member ref class: %w", err)
	}
	if int(natIndex) >= len(pool) || pool[natIndex] == nil {
		return nil, fmt.Errorf("invalid NameAndType index %d", natIndex)
	}
	nat, ok := pool[natIndex].(*ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not NameAndType", natIndex)
	}
	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member name: %w", err)
	}
	desc, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member descriptor: %w", err)
	}

	return &MemberRef{
		Tag:        pool[index].Tag(),
		ClassIndex: classIndex,
		Owner:      owner,
		Name:       name,
		Descriptor: desc,
	}, nil
}

// SetMemberNameAndType points the member ref at index to a NameAndType entry
// for name and desc. Shared NameAndType entries are never modified in place.
func (cf *ClassFile) SetMemberNameAndType(index uint16, name, desc string) error {
	nat, err := cf.NameAndTypeIndex(name, desc)
	if err != nil {
		return err
	}
	switch ref := cf.ConstantPool[index].(type) {
	case *ConstantFieldref:
		ref.NameAndTypeIndex = nat
	case *ConstantMethodref:
		ref.NameAndTypeIndex = nat
	case *ConstantInterfaceMethodref:
		ref.NameAndTypeIndex = nat
	default:
		return fmt.Errorf("constant pool index %d is not a member ref", index)
	}
	return nil
}

// ClassRef returns the CONSTANT_Class entry at index, or nil.
func (cf *ClassFile) ClassRef(index uint16) *ConstantClass {
	if int(index) >= len(cf.ConstantPool) {
		return nil
	}
	c, _ := cf.ConstantPool[index].(*ConstantClass)
	return c
}

// SetClassName renames the CONSTANT_Class entry at index. Every reference to
// that entry observes the new name; the old Utf8 entry is left untouched.
func (cf *ClassFile) SetClassName(index uint16, name string) error {
	c := cf.ClassRef(index)
	if c == nil {
		return fmt.Errorf("constant pool index %d is not Class", index)
	}
	utf8, err := cf.Utf8Index(name)
	if err != nil {
		return err
	}
	c.NameIndex = utf8
	return nil
}

// Utf8Index returns the index of a Utf8 entry holding s, appending one when
// the pool has none.
func (cf *ClassFile) Utf8Index(s string) (uint16, error) {
	if cf.utf8Index == nil {
		cf.utf8Index = make(map[string]uint16)
		for i, e := range cf.ConstantPool {
			if u, ok := e.(*ConstantUtf8); ok {
				if _, seen := cf.utf8Index[u.Value]; !seen {
					cf.utf8Index[u.Value] = uint16(i)
				}
			}
		}
	}
	if idx, ok := cf.utf8Index[s]; ok {
		return idx, nil
	}
	if len(s) > math.MaxUint16 {
		return 0, fmt.Errorf("Utf8 constant too long: %d bytes", len(s))
	}
	idx, err := cf.appendEntry(&ConstantUtf8{Value: s})
	if err != nil {
		return 0, err
	}
	cf.utf8Index[s] = idx
	return idx, nil
}

// NameAndTypeIndex returns the index of a NameAndType entry for name and
// desc, appending one when needed.
func (cf *ClassFile) NameAndTypeIndex(name, desc string) (uint16, error) {
	nameIdx, err := cf.Utf8Index(name)
	if err != nil {
		return 0, err
	}
	descIdx, err := cf.Utf8Index(desc)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		if nat, ok := e.(*ConstantNameAndType); ok && nat.NameIndex == nameIdx && nat.DescriptorIndex == descIdx {
			return uint16(i), nil
		}
	}
	return cf.appendEntry(&ConstantNameAndType{NameIndex: nameIdx, DescriptorIndex: descIdx})
}

func (cf *ClassFile) appendEntry(e ConstantPoolEntry) (uint16, error) {
	if len(cf.ConstantPool) == 0 {
		cf.ConstantPool = []ConstantPoolEntry{nil}
	}
	if len(cf.ConstantPool) >= maxPoolSize {
		return 0, ErrPoolOverflow
	}
	cf.ConstantPool = append(cf.ConstantPool, e)
	return uint16(len(cf.ConstantPool) - 1), nil
}

// ClassIndex returns the index of a CONSTANT_Class entry for name,
// appending one when needed.
func (cf *ClassFile) ClassIndex(name string) (uint16, error) {
	nameIdx, err := cf.Utf8Index(name)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		if c, ok := e.(*ConstantClass); ok && c.NameIndex == nameIdx {
			return uint16(i), nil
		}
	}
	return cf.appendEntry(&ConstantClass{NameIndex: nameIdx})
}

// MemberRefIndex returns the index of a member ref entry of the given tag,
// appending one when needed.
func (cf *ClassFile) MemberRefIndex(tag uint8, owner, name, desc string) (uint16, error) {
	classIdx, err := cf.ClassIndex(owner)
	if err != nil {
		return 0, err
	}
	natIdx, err := cf.NameAndTypeIndex(name, desc)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		if e == nil || e.Tag() != tag {
			continue
		}
		ref, err := cf.MemberRef(uint16(i))
		if err == nil && ref.ClassIndex == classIdx && cf.natOf(uint16(i)) == natIdx {
			return uint16(i), nil
		}
	}
	switch tag {
	case TagFieldref:
		return cf.appendEntry(&ConstantFieldref{ClassIndex: classIdx, NameAndTypeIndex: natIdx})
	case TagMethodref:
		return cf.appendEntry(&ConstantMethodref{ClassIndex: classIdx, NameAndTypeIndex: natIdx})
	case TagInterfaceMethodref:
		return cf.appendEntry(&ConstantInterfaceMethodref{ClassIndex: classIdx, NameAndTypeIndex: natIdx})
	}
	return 0, fmt.Errorf("tag %d is not a member ref", tag)
}

func (cf *ClassFile) natOf(index uint16) uint16 {
	switch ref := cf.ConstantPool[index].(type) {
	case *ConstantFieldref:
		return ref.NameAndTypeIndex
	case *ConstantMethodref:
		return ref.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		return ref.NameAndTypeIndex
	}
	return 0
}
