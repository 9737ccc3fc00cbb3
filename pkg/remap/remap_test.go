package remap

import (
	"archive/zip"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jremap/pkg/archive"
	"github.com/daimatz/jremap/pkg/classfile"
	"github.com/daimatz/jremap/pkg/mapping"
)

const testSRG = `PK: . net
CL: a net/Entity
CL: b net/World
CL: i net/Renderable
FD: a/c net/Entity/health
MD: a/d (Lb;)V net/Entity/setWorld (Lnet/World;)V
MD: i/e ()V net/Renderable/render ()V
`

const (
	aload0 = 0x2A
	pop    = 0x57
)

func loadTable(t *testing.T, srg string) *mapping.Table {
	t.Helper()
	tbl := mapping.NewTable()
	require.NoError(t, mapping.LoadSRG(strings.NewReader(srg), tbl))
	return tbl
}

func build(t *testing.T, b *classfile.Builder) archive.Class {
	t.Helper()
	cf, err := b.Build()
	require.NoError(t, err)
	name, err := cf.ClassName()
	require.NoError(t, err)
	data, err := cf.Encode()
	require.NoError(t, err)
	return archive.Class{Name: name, Data: data}
}

func decode(t *testing.T, c archive.Class) *classfile.ClassFile {
	t.Helper()
	cf, err := classfile.ParseBytes(c.Data)
	require.NoError(t, err)
	name, err := cf.ClassName()
	require.NoError(t, err)
	require.Equal(t, c.Name, name, "entry name must match the encoded class name")
	return cf
}

// refs lists every symbolic reference made by the code of cf, in
// instruction order.
func refs(t *testing.T, cf *classfile.ClassFile) []string {
	t.Helper()
	var out []string
	for _, m := range cf.Methods {
		if m.Code == nil {
			continue
		}
		insns, err := classfile.Instructions(m.Code.Code)
		require.NoError(t, err)
		for _, insn := range insns {
			switch insn.Kind {
			case classfile.KindField, classfile.KindMethod:
				ref, err := cf.MemberRef(insn.Index)
				require.NoError(t, err)
				out = append(out, fmt.Sprintf("%s.%s:%s", ref.Owner, ref.Name, ref.Descriptor))
			case classfile.KindType, classfile.KindConstant:
				if cf.ClassRef(insn.Index) == nil {
					continue
				}
				name, err := classfile.GetClassName(cf.ConstantPool, insn.Index)
				require.NoError(t, err)
				out = append(out, "class "+name)
			}
		}
	}
	return out
}

func names(classes []archive.Class) []string {
	var out []string
	for _, c := range classes {
		out = append(out, c.Name)
	}
	return out
}

func byName(t *testing.T, classes []archive.Class, name string) archive.Class {
	t.Helper()
	for _, c := range classes {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no class %s in %v", name, names(classes))
	return archive.Class{}
}

func entityClass(t *testing.T) archive.Class {
	return build(t, classfile.NewBuilder("mod/MyEntity", "a").
		Field(classfile.AccPrivate, "w", "[[Lb;").
		Method(classfile.AccPublic, "d", "(Lb;)V").
		Op(aload0).
		Field(classfile.OpGetfield, "mod/MyEntity", "c", "I").
		Op(pop).
		Type(classfile.OpNew, "b").
		Op(pop).
		Type(classfile.OpAnewarray, "b").
		Type(classfile.OpCheckcast, "[Lb;").
		LdcClass("b").
		Invoke(classfile.OpInvokevirtual, "mod/MyEntity", "d", "(Lb;)V").
		Local(1, "world", "Lb;").
		Catch("b").
		End())
}

func helperClass(t *testing.T) archive.Class {
	return build(t, classfile.NewBuilder("mod/Helper", "java/lang/Object").
		Method(classfile.AccPublic|classfile.AccStatic, "run", "(Lmod/MyEntity;Lb;)V").
		Op(aload0).
		Op(0x2B). // aload_1
		Invoke(classfile.OpInvokevirtual, "mod/MyEntity", "d", "(Lb;)V").
		Invoke(classfile.OpInvokestatic, "java/lang/System", "gc", "()V").
		End())
}

func implClass(t *testing.T) archive.Class {
	return build(t, classfile.NewBuilder("mod/Impl", "java/lang/Object", "i").
		Method(classfile.AccPublic, "<init>", "()V").
		Op(aload0).
		Invoke(classfile.OpInvokespecial, "java/lang/Object", "<init>", "()V").
		End().
		Method(classfile.AccPublic, "e", "()V").
		End())
}

func TestRemapRenamesClassKeepsUnknownSuper(t *testing.T) {
	tbl := loadTable(t, "CL: a com/example/Foo\n")
	in := build(t, classfile.NewBuilder("a", "x/y/Z"))

	res, err := New(tbl).RemapClasses([]archive.Class{in})
	require.NoError(t, err)

	assert.Equal(t, []string{"com/example/Foo"}, names(res.Classes))
	cf := decode(t, res.Classes[0])
	assert.Equal(t, "x/y/Z", cf.SuperClassName())
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, []string{"x/y/Z"}, res.Missing)
}

func TestRemapMembersThroughHierarchy(t *testing.T) {
	tbl := loadTable(t, testSRG)
	res, err := New(tbl).RemapClasses([]archive.Class{entityClass(t)})
	require.NoError(t, err)
	require.Len(t, res.Classes, 1)

	cf := decode(t, res.Classes[0])
	assert.Equal(t, "net/Entity", cf.SuperClassName())
	assert.Equal(t, "[[Lnet/World;", cf.Fields[0].Descriptor)
	assert.Equal(t, "w", cf.Fields[0].Name)

	m := cf.Methods[0]
	assert.Equal(t, "setWorld", m.Name)
	assert.Equal(t, "(Lnet/World;)V", m.Descriptor)
	require.Len(t, m.Code.LocalVariables, 1)
	assert.Equal(t, "Lnet/World;", m.Code.LocalVariables[0].Descriptor)

	catch, err := classfile.GetClassName(cf.ConstantPool, m.Code.ExceptionHandlers[0].CatchType)
	require.NoError(t, err)
	assert.Equal(t, "net/World", catch)

	want := []string{
		"mod/MyEntity.c:I",
		"class net/World",
		"class net/World",
		"class [Lnet/World;",
		"class net/World",
		"mod/MyEntity.setWorld:(Lnet/World;)V",
	}
	if diff := cmp.Diff(want, refs(t, cf)); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}

	mine := tbl.FindReal("mod/MyEntity")
	require.NotNil(t, mine)
	assert.True(t, mine.IsIdentity())
	assert.Same(t, tbl.FindReal("net/Entity"), mine.Parent)
}

func TestRemapFieldAccessDoesNotInherit(t *testing.T) {
	in := build(t, classfile.NewBuilder("mod/X", "a").
		Field(classfile.AccPrivate, "c", "I").
		Method(classfile.AccPublic, "get", "()I").
		Op(aload0).
		Field(classfile.OpGetfield, "mod/X", "c", "I").
		Op(aload0).
		Field(classfile.OpGetfield, "a", "c", "I").
		Op(pop).
		End())

	res, err := New(loadTable(t, testSRG)).RemapClasses([]archive.Class{in})
	require.NoError(t, err)

	cf := decode(t, res.Classes[0])
	assert.Equal(t, "c", cf.Fields[0].Name)
	assert.Equal(t, []string{
		"mod/X.c:I",
		"net/Entity.health:I",
	}, refs(t, cf), "a field declared by mod/X hides the mapped field of its parent")
}

func TestRemapFirstDiscoveryOrder(t *testing.T) {
	tbl := loadTable(t, testSRG)
	res, err := New(tbl).RemapClasses([]archive.Class{helperClass(t), entityClass(t)})
	require.NoError(t, err)

	assert.Equal(t, []string{"mod/MyEntity", "mod/Helper"}, names(res.Classes))
	helper := decode(t, byName(t, res.Classes, "mod/Helper"))
	assert.Equal(t, "(Lmod/MyEntity;Lnet/World;)V", helper.Methods[0].Descriptor)
	assert.Equal(t, []string{
		"mod/MyEntity.setWorld:(Lnet/World;)V",
		"java/lang/System.gc:()V",
	}, refs(t, helper))
}

func TestRemapInterfaceMethods(t *testing.T) {
	tbl := loadTable(t, testSRG+"MD: i/<init> ()V net/Renderable/bogus ()V\n")
	res, err := New(tbl).RemapClasses([]archive.Class{implClass(t)})
	require.NoError(t, err)

	cf := decode(t, res.Classes[0])
	itfs, err := cf.InterfaceNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"net/Renderable"}, itfs)
	assert.Equal(t, "<init>", cf.Methods[0].Name, "constructors never resolve through interfaces")
	assert.Equal(t, "render", cf.Methods[1].Name)
	assert.Equal(t, []string{"java/lang/Object.<init>:()V"}, refs(t, cf))
}

func TestRemapIdempotent(t *testing.T) {
	input := []archive.Class{helperClass(t), entityClass(t), implClass(t)}
	first, err := New(loadTable(t, testSRG)).RemapClasses(input)
	require.NoError(t, err)
	require.Equal(t, 3, first.Changed)

	second, err := New(loadTable(t, testSRG)).RemapClasses(first.Classes)
	require.NoError(t, err)
	assert.Zero(t, second.Changed)
	if diff := cmp.Diff(first.Classes, second.Classes); diff != "" {
		t.Errorf("second pass changed output (-first +second):\n%s", diff)
	}
}

func TestRemapDeterministic(t *testing.T) {
	input := []archive.Class{helperClass(t), implClass(t), entityClass(t)}
	var runs [][]archive.Class
	for range 2 {
		res, err := New(loadTable(t, testSRG)).RemapClasses(input)
		require.NoError(t, err)
		runs = append(runs, res.Classes)
	}
	if diff := cmp.Diff(runs[0], runs[1]); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestRemapMissingLibrary(t *testing.T) {
	in := build(t, classfile.NewBuilder("mod/Plugin", "lib/Missing").
		Field(classfile.AccPublic, "other", "[Llib/Other;").
		Method(classfile.AccPublic|classfile.AccStatic, "go", "(Llib/Missing;)V").
		Op(aload0).
		Invoke(classfile.OpInvokestatic, "lib/Missing", "helper", "(Llib/Missing;)V").
		Type(classfile.OpNew, "lib/Other").
		End())

	res, err := New(loadTable(t, testSRG)).RemapClasses([]archive.Class{in})
	require.NoError(t, err)
	require.Len(t, res.Classes, 1)
	assert.Zero(t, res.Changed)
	assert.Equal(t, in, res.Classes[0], "unresolvable references leave the class byte-identical")
	assert.Equal(t, []string{"lib/Missing", "lib/Other"}, res.Missing)
}

func TestRemapMalformedClassPassesThrough(t *testing.T) {
	bad := archive.Class{Name: "mod/Bad", Data: []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00}}
	user := build(t, classfile.NewBuilder("mod/User", "a").
		Method(classfile.AccPublic, "make", "()V").
		Type(classfile.OpNew, "mod/Bad").
		Op(pop).
		End())

	res, err := New(loadTable(t, testSRG)).RemapClasses([]archive.Class{user, bad})
	require.NoError(t, err)

	assert.Equal(t, []string{"mod/User", "mod/Bad"}, names(res.Classes))
	assert.Equal(t, bad, res.Classes[1])
	assert.Equal(t, []string{"class mod/Bad"}, refs(t, decode(t, res.Classes[0])))
	assert.Equal(t, []string{"mod/Bad"}, res.Malformed)
	assert.Empty(t, res.Missing)
}

func TestRemapVersionedEntryKeepsDirectory(t *testing.T) {
	base := build(t, classfile.NewBuilder("a", "java/lang/Object"))
	versioned := archive.Class{Name: "META-INF/versions/9/a", Data: base.Data}

	res, err := New(loadTable(t, testSRG)).RemapClasses([]archive.Class{base, versioned})
	require.NoError(t, err)

	assert.Equal(t, []string{"net/Entity", "META-INF/versions/9/net/Entity"}, names(res.Classes))
	assert.Equal(t, 2, res.Changed)
}

func TestEntryName(t *testing.T) {
	tests := []struct {
		entry, original, renamed string
		want                     string
	}{
		{"a", "a", "net/Entity", "net/Entity"},
		{"META-INF/versions/9/a", "a", "net/Entity", "META-INF/versions/9/net/Entity"},
		{"xa", "a", "net/Entity", "net/Entity"},
		{"misplaced/b", "a", "net/Entity", "net/Entity"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, entryName(tt.entry, tt.original, tt.renamed), tt.entry)
	}
}

// fullPool pads the constant pool of c until nothing more can be appended.
func fullPool(t *testing.T, c archive.Class) archive.Class {
	t.Helper()
	cf, err := classfile.ParseBytes(c.Data)
	require.NoError(t, err)
	for len(cf.ConstantPool) < math.MaxUint16 {
		cf.ConstantPool = append(cf.ConstantPool, &classfile.ConstantUtf8{Value: fmt.Sprintf("pad%d", len(cf.ConstantPool))})
	}
	data, err := cf.Encode()
	require.NoError(t, err)
	return archive.Class{Name: c.Name, Data: data}
}

// overflowSRG renames only a field, so the new name is interned when the
// class is encoded.
const overflowSRG = "CL: a a\nFD: a/c a/health\n"

func TestRemapEncodeFailureIsFatal(t *testing.T) {
	in := fullPool(t, build(t, classfile.NewBuilder("a", "java/lang/Object").
		Field(classfile.AccPrivate, "c", "I")))

	_, err := New(loadTable(t, overflowSRG)).RemapClasses([]archive.Class{in})
	require.Error(t, err)
	assert.ErrorIs(t, err, classfile.ErrPoolOverflow)
}

func TestRemapMalformedDescriptorIsFatal(t *testing.T) {
	in := build(t, classfile.NewBuilder("mod/Odd", "java/lang/Object").
		Field(classfile.AccPrivate, "x", "Lb"))

	_, err := New(loadTable(t, testSRG)).RemapClasses([]archive.Class{in})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `malformed field descriptor "Lb"`)
}

func TestRemapCycle(t *testing.T) {
	a := build(t, classfile.NewBuilder("mod/A", "mod/B").
		Method(classfile.AccPublic, "self", "()Lmod/B;").
		Invoke(classfile.OpInvokestatic, "mod/B", "make", "()Lmod/A;").
		End())
	b := build(t, classfile.NewBuilder("mod/B", "a").
		Field(classfile.AccPublic, "peer", "Lmod/A;").
		Method(classfile.AccPublic|classfile.AccStatic, "make", "()Lmod/A;").
		Type(classfile.OpNew, "mod/A").
		Invoke(classfile.OpInvokevirtual, "mod/A", "d", "(Lb;)V").
		End())

	tbl := loadTable(t, testSRG)
	res, err := New(tbl).RemapClasses([]archive.Class{a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"mod/B", "mod/A"}, names(res.Classes))
	modB := tbl.FindReal("mod/B")
	modA := tbl.FindReal("mod/A")
	require.NotNil(t, modA)
	require.NotNil(t, modB)
	assert.Same(t, modB, modA.Parent)
	assert.Same(t, tbl.FindReal("net/Entity"), modB.Parent)

	// mod/A was in flight while mod/B was rewritten, so its inherited
	// method is not known yet from mod/B's point of view.
	assert.Equal(t, []string{"class mod/A", "mod/A.d:(Lnet/World;)V"}, refs(t, decode(t, byName(t, res.Classes, "mod/B"))))
}

func TestRemapSubstitutionChain(t *testing.T) {
	srg := "CL: a net/Entity\nMD: a/e ()V net/Entity/func_70071_h_ ()V\nFD: a/f net/Entity/field_70170_p\n"
	csvNames, err := mapping.LoadNames(
		strings.NewReader("searge,name\nfunc_70071_h_,onUpdate\n"),
		strings.NewReader("searge,name\nfield_70170_p,worldObj\n"),
		strings.NewReader("param,name\np_70071_1_,ticks\n"),
		mapping.NewIDs(),
	)
	require.NoError(t, err)

	in := build(t, classfile.NewBuilder("a", "java/lang/Object").
		Field(classfile.AccPublic, "f", "I").
		Method(classfile.AccPublic, "e", "()V").
		Op(aload0).
		Field(classfile.OpGetfield, "a", "f", "I").
		Op(pop).
		Op(aload0).
		Invoke(classfile.OpInvokevirtual, "a", "e", "()V").
		Local(1, "p_70071_1_", "I").
		End())

	r := New(loadTable(t, srg), WithPasses(StructuralPass{}, NewSubstitutionPass(csvNames, mapping.NewIDs())))
	res, err := r.RemapClasses([]archive.Class{in})
	require.NoError(t, err)

	cf := decode(t, res.Classes[0])
	assert.Equal(t, "net/Entity", res.Classes[0].Name)
	assert.Equal(t, "worldObj", cf.Fields[0].Name)
	assert.Equal(t, "onUpdate", cf.Methods[0].Name)
	assert.Equal(t, "ticks", cf.Methods[0].Code.LocalVariables[0].Name)
	assert.Equal(t, []string{
		"net/Entity.worldObj:I",
		"net/Entity.onUpdate:()V",
	}, refs(t, cf))
}

func TestLoadReferenceClasses(t *testing.T) {
	tbl := loadTable(t, testSRG)
	r := New(tbl)
	require.NoError(t, r.LoadReferenceClasses([]archive.Class{
		build(t, classfile.NewBuilder("net/Living", "net/Entity", "net/Tickable")),
		build(t, classfile.NewBuilder("net/Tickable", "java/lang/Object").Flags(classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract)),
		build(t, classfile.NewBuilder("net/Entity", "java/lang/Object")),
	}))

	living := tbl.FindReal("net/Living")
	tickable := tbl.FindReal("net/Tickable")
	require.NotNil(t, living)
	require.NotNil(t, tickable)
	assert.Same(t, tbl.FindReal("net/Entity"), living.Parent)
	assert.Equal(t, []*mapping.ClassMapping{tickable}, living.Interfaces)
	assert.Nil(t, tbl.FindReal("net/Entity").Parent)

	// A mod class extending the reference class inherits the mapped
	// members of its ancestors.
	mod := build(t, classfile.NewBuilder("mod/Zombie", "net/Living").
		Method(classfile.AccPublic, "d", "(Lb;)V").
		End())
	res, err := r.RemapClasses([]archive.Class{mod})
	require.NoError(t, err)
	cf := decode(t, res.Classes[0])
	assert.Equal(t, "setWorld", cf.Methods[0].Name)
}

func TestRemapFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "mod.jar")
	f, err := os.Create(in)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	_, err = w.Write([]byte("Manifest-Version: 1.0\n"))
	require.NoError(t, err)
	for _, c := range []archive.Class{build(t, classfile.NewBuilder("a", "x/y/Z")), implClass(t)} {
		w, err := zw.Create(c.EntryName())
		require.NoError(t, err)
		_, err = w.Write(c.Data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "mod.deobf.jar")
	res, err := New(loadTable(t, testSRG)).RemapFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Passthrough)

	got, err := archive.Open(context.Background(), out)
	require.NoError(t, err)
	defer got.Close()
	assert.Equal(t, []string{"net/Entity", "mod/Impl"}, names(got.Classes))
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "META-INF/MANIFEST.MF", got.Resources[0].Name)
}

func TestRemapFileFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "overflow.jar")
	c := fullPool(t, build(t, classfile.NewBuilder("a", "java/lang/Object").
		Field(classfile.AccPrivate, "c", "I")))
	f, err := os.Create(in)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(c.EntryName())
	require.NoError(t, err)
	_, err = w.Write(c.Data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "overflow.deobf.jar")
	_, err = New(loadTable(t, overflowSRG)).RemapFile(context.Background(), in, out)
	assert.ErrorIs(t, err, classfile.ErrPoolOverflow)
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
	leftovers, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
