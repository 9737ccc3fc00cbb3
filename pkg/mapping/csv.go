package mapping

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/apex/log"
)

// idPattern matches generated identifiers such as func_70071_h_ or
// field_70170_p; the digits are the join key.
var idPattern = regexp.MustCompile(`^[a-z]+_(\d+)_\w+$`)

// IDs extracts and memoizes the numeric id embedded in generated names.
// Safe for concurrent use; create one per remap operation.
type IDs struct {
	mu    sync.Mutex
	cache map[string]int
}

// NewIDs returns an empty id cache.
func NewIDs() *IDs {
	return &IDs{cache: make(map[string]int)}
}

// Of returns the id embedded in name, or -1.
func (ids *IDs) Of(name string) int {
	ids.mu.Lock()
	defer ids.mu.Unlock()
	if id, ok := ids.cache[name]; ok {
		return id
	}
	id := -1
	if m := idPattern.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			id = n
		}
	}
	ids.cache[name] = id
	return id
}

// Names holds the identifier-substitution tables.
type Names struct {
	Methods map[int]string
	Fields  map[int]string
	// Params is keyed by the full generated parameter name (p_70170_1_).
	Params map[string]string
}

// LoadNamesDir reads methods.csv, fields.csv and, when present, params.csv
// from dir.
func LoadNamesDir(dir string, ids *IDs) (*Names, error) {
	open := func(name string, optional bool) (io.ReadCloser, error) {
		f, err := os.Open(filepath.Join(dir, name))
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return f, err
	}
	mf, err := open("methods.csv", false)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	defer mf.Close()
	ff, err := open("fields.csv", false)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	defer ff.Close()
	pf, err := open("params.csv", true)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	var params io.Reader
	if pf != nil {
		defer pf.Close()
		params = pf
	}
	return LoadNames(mf, ff, params, ids)
}

// LoadNames reads the method and field tables (searge,name,...) and the
// optional params table (param,name,...). Method and field rows whose first
// column carries no id, such as headers, are skipped; params rows are keyed
// by the whole p_ identifier.
func LoadNames(methods, fields, params io.Reader, ids *IDs) (*Names, error) {
	n := &Names{
		Methods: make(map[int]string),
		Fields:  make(map[int]string),
		Params:  make(map[string]string),
	}
	if err := readCSV(methods, func(key, name string) {
		if id := ids.Of(key); id >= 0 {
			n.Methods[id] = name
		}
	}); err != nil {
		return nil, fmt.Errorf("csv: methods: %w", err)
	}
	if err := readCSV(fields, func(key, name string) {
		if id := ids.Of(key); id >= 0 {
			n.Fields[id] = name
		}
	}); err != nil {
		return nil, fmt.Errorf("csv: fields: %w", err)
	}
	if params != nil {
		if err := readCSV(params, func(key, name string) {
			if strings.HasPrefix(key, "p_") {
				n.Params[key] = name
			}
		}); err != nil {
			return nil, fmt.Errorf("csv: params: %w", err)
		}
	}
	log.Debugf("csv: loaded %d methods, %d fields, %d params", len(n.Methods), len(n.Fields), len(n.Params))
	return n, nil
}

func readCSV(r io.Reader, fn func(key, name string)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(rec) >= 2 && rec[1] != "" {
			fn(rec[0], rec[1])
		}
	}
}
