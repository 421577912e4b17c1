package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON workflow definition.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ParseYAML decodes a YAML workflow definition. The document is decoded
// generically and re-read through the JSON model so tagged values behave
// identically across formats.
func ParseYAML(data []byte) (*Workflow, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return reparse(doc)
}

// ParseTOML decodes a TOML workflow definition.
func ParseTOML(data []byte) (*Workflow, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return reparse(doc)
}

func reparse(doc map[string]any) (*Workflow, error) {
	buf, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// Load reads one definition file, selecting the decoder by extension
// (.json, .yaml, .yml, .toml). Parse failures come back as an *ErrorList
// with ERR_PARSE entries carrying file position where available.
func Load(path string) (*Workflow, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("definition path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", path, err)
	}

	var wf *Workflow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		wf, err = Parse(data)
	case ".yaml", ".yml":
		wf, err = ParseYAML(data)
	case ".toml":
		wf, err = ParseTOML(data)
	default:
		return nil, fmt.Errorf("unsupported definition format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, wrapParseError(path, data, err)
	}

	wf.Source = path
	return wf, nil
}

// LoadDir loads every definition file in a directory, sorted by id. A
// missing directory yields an empty slice.
func LoadDir(dir string) ([]*Workflow, error) {
	if strings.TrimSpace(dir) == "" {
		return []*Workflow{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Workflow{}, nil
		}
		return nil, fmt.Errorf("read definitions dir %s: %w", dir, err)
	}

	defs := make([]*Workflow, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml", ".toml":
		default:
			continue
		}
		wf, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, wf)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

func wrapParseError(path string, data []byte, err error) error {
	list := &ErrorList{}

	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		for _, decodeErr := range strictErr.Errors {
			line, column := decodeErr.Position()
			list.Add(Error{
				Code:    ErrCodeParse,
				Message: decodeErr.Error(),
				Path:    path,
				Line:    line,
				Column:  column,
				Field:   strings.Join(decodeErr.Key(), "."),
			})
		}
		return list
	}

	var tomlErr *toml.DecodeError
	if errors.As(err, &tomlErr) {
		line, column := tomlErr.Position()
		list.Add(Error{
			Code:    ErrCodeParse,
			Message: tomlErr.Error(),
			Path:    path,
			Line:    line,
			Column:  column,
		})
		return list
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, column := offsetPosition(data, syntaxErr.Offset)
		list.Add(Error{
			Code:    ErrCodeParse,
			Message: syntaxErr.Error(),
			Path:    path,
			Line:    line,
			Column:  column,
		})
		return list
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, column := offsetPosition(data, typeErr.Offset)
		list.Add(Error{
			Code:    ErrCodeParse,
			Message: typeErr.Error(),
			Path:    path,
			Line:    line,
			Column:  column,
			Field:   typeErr.Field,
		})
		return list
	}

	list.Add(Error{
		Code:    ErrCodeParse,
		Message: err.Error(),
		Path:    path,
	})
	return list
}

func offsetPosition(data []byte, offset int64) (line, column int) {
	if offset < 0 || offset > int64(len(data)) {
		return 0, 0
	}
	line, column = 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			column = 1
			continue
		}
		column++
	}
	return line, column
}
