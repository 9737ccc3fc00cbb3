package mapping

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apex/log"
)

var (
	// ErrUnknownOwner marks a field or method record whose class was not
	// declared by an earlier CL: record.
	ErrUnknownOwner = errors.New("owner class not declared")
	// ErrMalformedRecord marks a recognised record with missing parts.
	ErrMalformedRecord = errors.New("malformed record")
)

// ParseError locates a mapping-table failure.
type ParseError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %v: %q", e.File, e.Line, e.Err, e.Text)
	}
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadSRGFile loads an SRG table from path into t.
func LoadSRGFile(path string, t *Table) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("srg: %w", err)
	}
	defer f.Close()
	if err := LoadSRG(f, t); err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.File = path
		}
		return err
	}
	return nil
}

// LoadSRG reads PK:, CL:, FD: and MD: records into t. Classes must be
// declared before their members. Lines it does not recognise are skipped;
// a recognised record that cannot be used aborts the load.
func LoadSRG(r io.Reader, t *Table) error {
	var classes, fields, methods int
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if len(text) <= 4 {
			continue
		}
		fail := func(err error) error {
			return &ParseError{Line: line, Text: text, Err: err}
		}
		value := text[4:]
		switch text[:4] {
		case "PK: ":
			parts := strings.Fields(value)
			if len(parts) != 2 {
				return fail(ErrMalformedRecord)
			}
			t.Packages[parts[0]] = parts[1]

		case "CL: ":
			parts := strings.Fields(value)
			if len(parts) != 2 {
				return fail(ErrMalformedRecord)
			}
			t.Add(NewClassMapping(parts[0], parts[1]))
			classes++

		case "FD: ":
			parts := strings.Fields(value)
			if len(parts) != 2 {
				return fail(ErrMalformedRecord)
			}
			owner, obfName, ok := splitMemberPath(parts[0])
			if !ok {
				return fail(ErrMalformedRecord)
			}
			_, name, ok := splitMemberPath(parts[1])
			if !ok {
				return fail(ErrMalformedRecord)
			}
			c := t.FindObfuscated(owner)
			if c == nil {
				return fail(fmt.Errorf("%w: %s", ErrUnknownOwner, owner))
			}
			c.Fields.Put(obfName, "", name, "")
			fields++

		case "MD: ":
			parts := strings.Fields(value)
			if len(parts) != 4 {
				return fail(ErrMalformedRecord)
			}
			owner, obfName, ok := splitMemberPath(parts[0])
			if !ok {
				return fail(ErrMalformedRecord)
			}
			_, name, ok := splitMemberPath(parts[2])
			if !ok {
				return fail(ErrMalformedRecord)
			}
			c := t.FindObfuscated(owner)
			if c == nil {
				return fail(fmt.Errorf("%w: %s", ErrUnknownOwner, owner))
			}
			c.Methods.Put(obfName, parts[1], name, parts[3])
			methods++
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("srg: reading line %d: %w", line+1, err)
	}
	log.Debugf("srg: loaded %d classes, %d fields, %d methods", classes, fields, methods)
	return nil
}

// splitMemberPath splits "owner/path/member" at its last slash.
func splitMemberPath(path string) (owner, member string, ok bool) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}
