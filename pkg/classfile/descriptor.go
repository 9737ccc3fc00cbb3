package classfile

import (
	"fmt"
	"strings"
)

// ArrayElement splits a field descriptor into its array dimension count and
// element descriptor: "[[La/b;" -> (2, "La/b;").
func ArrayElement(desc string) (int, string) {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	return dims, desc[dims:]
}

// ObjectTypeName returns the internal name of an object element descriptor
// ("La/b;" -> "a/b").
func ObjectTypeName(elem string) (string, bool) {
	if len(elem) < 3 || elem[0] != 'L' || elem[len(elem)-1] != ';' {
		return "", false
	}
	return elem[1 : len(elem)-1], true
}

// ParseMethodDescriptor splits "(I[La;)Lb;" into its argument descriptors
// and return descriptor.
func ParseMethodDescriptor(desc string) ([]string, string, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("method descriptor %q: missing '('", desc)
	}
	var args []string
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldTypeLen(desc[i:])
		if err != nil {
			return nil, "", fmt.Errorf("method descriptor %q: %w", desc, err)
		}
		args = append(args, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("method descriptor %q: missing ')'", desc)
	}
	ret := desc[i+1:]
	if ret != "V" {
		n, err := fieldTypeLen(ret)
		if err != nil || n != len(ret) {
			return nil, "", fmt.Errorf("method descriptor %q: bad return type", desc)
		}
	}
	return args, ret, nil
}

// MethodDescriptor joins argument and return descriptors.
func MethodDescriptor(args []string, ret string) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range args {
		b.WriteString(a)
	}
	b.WriteByte(')')
	b.WriteString(ret)
	return b.String()
}

// fieldTypeLen returns the length of the field descriptor at the start of s.
func fieldTypeLen(s string) (int, error) {
	dims, elem := ArrayElement(s)
	if elem == "" {
		return 0, fmt.Errorf("truncated type")
	}
	switch elem[0] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return dims + 1, nil
	case 'L':
		end := strings.IndexByte(elem, ';')
		if end < 2 {
			return 0, fmt.Errorf("unterminated object type")
		}
		return dims + end + 1, nil
	}
	return 0, fmt.Errorf("unknown type %q", elem[0])
}

// ValidFieldDescriptor reports whether desc is exactly one field type.
func ValidFieldDescriptor(desc string) bool {
	n, err := fieldTypeLen(desc)
	return err == nil && n == len(desc)
}
