package classfile

import (
	"reflect"
	"testing"
)

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		desc     string
		wantArgs []string
		wantRet  string
	}{
		{"()V", nil, "V"},
		{"(II)I", []string{"I", "I"}, "I"},
		{"(La;[[JLjava/lang/String;)[Lb;", []string{"La;", "[[J", "Ljava/lang/String;"}, "[Lb;"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			args, ret, err := ParseMethodDescriptor(tt.desc)
			if err != nil {
				t.Fatalf("ParseMethodDescriptor(%q): %v", tt.desc, err)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args: got %q, want %q", args, tt.wantArgs)
			}
			if ret != tt.wantRet {
				t.Errorf("ret: got %q, want %q", ret, tt.wantRet)
			}
			if got := MethodDescriptor(args, ret); got != tt.desc {
				t.Errorf("MethodDescriptor: got %q, want %q", got, tt.desc)
			}
		})
	}
}

func TestParseMethodDescriptorErrors(t *testing.T) {
	for _, desc := range []string{"", "I", "(La", "(I", "(Q)V", "()", "()La;X"} {
		if _, _, err := ParseMethodDescriptor(desc); err == nil {
			t.Errorf("ParseMethodDescriptor(%q): expected error", desc)
		}
	}
}

func TestArrayElement(t *testing.T) {
	dims, elem := ArrayElement("[[La/b;")
	if dims != 2 || elem != "La/b;" {
		t.Errorf("got (%d, %q), want (2, %q)", dims, elem, "La/b;")
	}
	name, ok := ObjectTypeName(elem)
	if !ok || name != "a/b" {
		t.Errorf("ObjectTypeName: got (%q, %v)", name, ok)
	}
	if _, ok := ObjectTypeName("I"); ok {
		t.Error("ObjectTypeName(I): expected false")
	}
	if !ValidFieldDescriptor("[I") || ValidFieldDescriptor("II") {
		t.Error("ValidFieldDescriptor mismatch")
	}
}
