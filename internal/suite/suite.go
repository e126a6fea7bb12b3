package suite

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// Suite is a named list of checks.
type Suite struct {
	Name   string  `yaml:"name" json:"name,omitempty"`
	Checks []Check `yaml:"checks" json:"checks"`
}

// Check declares one check. Level is "warning" or "error" (the default).
type Check struct {
	Description string       `yaml:"description" json:"description"`
	Level       string       `yaml:"level" json:"level,omitempty"`
	Constraints []Constraint `yaml:"constraints" json:"constraints"`
}

// Constraint declares one constraint. Which fields apply depends on Type.
type Constraint struct {
	Type         string            `yaml:"type" json:"type"`
	Column       string            `yaml:"column" json:"column,omitempty"`
	Columns      []string          `yaml:"columns" json:"columns,omitempty"`
	Expression   string            `yaml:"expression" json:"expression,omitempty"`
	Name         string            `yaml:"name" json:"name,omitempty"`
	Pattern      string            `yaml:"pattern" json:"pattern,omitempty"`
	Values       []string          `yaml:"values" json:"values,omitempty"`
	Rank         *float64          `yaml:"rank" json:"rank,omitempty"`
	Ranks        []float64         `yaml:"ranks" json:"ranks,omitempty"`
	Min          *float64          `yaml:"min" json:"min,omitempty"`
	Max          *float64          `yaml:"max" json:"max,omitempty"`
	ExclusiveMin bool              `yaml:"exclusive_min" json:"exclusive_min,omitempty"`
	ExclusiveMax bool              `yaml:"exclusive_max" json:"exclusive_max,omitempty"`
	DataType     string            `yaml:"data_type" json:"data_type,omitempty"`
	Schema       map[string]string `yaml:"schema" json:"schema,omitempty"`
	Assert       string            `yaml:"assert" json:"assert,omitempty"`
	Where        string            `yaml:"where" json:"where,omitempty"`
	Hint         string            `yaml:"hint" json:"hint,omitempty"`
}

// Load reads a suite file. The format follows the extension: .yaml and
// .yml are YAML, .cue is CUE.
//
// The returned suite is validated: every constraint builds.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("suite file not found: %s", path)}
	}
	if err != nil {
		return nil, fmt.Errorf("read suite file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, filepath.Base(path))
	}
	return nil, &Error{
		Code:    ErrCodeFormat,
		Message: fmt.Sprintf("unsupported suite format %q: use .yaml, .yml or .cue", filepath.Ext(path)),
	}
}

// ParseYAML decodes and validates a YAML suite. Unknown fields are errors.
func ParseYAML(data []byte) (*Suite, error) {
	var s Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Code: ErrCodeNoChecks, Message: "suite is empty"}
		}
		return nil, &Error{Code: ErrCodeParse, Message: err.Error()}
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseCUE compiles a CUE suite, unifies it with #Suite and validates it.
// filename is used in error positions.
func ParseCUE(data []byte, filename string) (*Suite, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile suite schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(ErrCodeParse, err)
	}
	v = schema.LookupPath(cue.ParsePath("#Suite")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(ErrCodeSchema, err)
	}

	var s Suite
	if err := v.Decode(&s); err != nil {
		return nil, formatCUEError(ErrCodeSchema, err)
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate reports the first problem that would keep s from building.
func Validate(s *Suite) error {
	_, err := s.Build()
	return err
}
