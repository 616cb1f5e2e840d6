package table

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SchemaFileSuffix marks schema files in the shared data directory.
	SchemaFileSuffix = ".schema.yaml"
	// CustomFileName is the user file holding the selected schema list.
	CustomFileName = "default.custom.yaml"

	defaultPageSize   = 5
	defaultAlphabet   = "abcdefghijklmnopqrstuvwxyz"
	defaultSelectKeys = "1234567890"
)

// schemaFile is the on-disk layout of a *.schema.yaml file.
type schemaFile struct {
	Schema struct {
		SchemaID string `yaml:"schema_id"`
		Name     string `yaml:"name"`
		Version  string `yaml:"version,omitempty"`
	} `yaml:"schema"`
	Switches []switchDef `yaml:"switches,omitempty"`
	Menu     struct {
		PageSize              int    `yaml:"page_size,omitempty"`
		AlternativeSelectKeys string `yaml:"alternative_select_keys,omitempty"`
	} `yaml:"menu,omitempty"`
	Speller struct {
		Alphabet string `yaml:"alphabet,omitempty"`
	} `yaml:"speller,omitempty"`
	Table map[string][]string `yaml:"table"`
}

type switchDef struct {
	Name  string `yaml:"name"`
	Reset *int   `yaml:"reset,omitempty"`
}

// customFile is the on-disk layout of default.custom.yaml.
type customFile struct {
	Patch struct {
		SchemaList []schemaRef `yaml:"schema_list"`
	} `yaml:"patch"`
}

type schemaRef struct {
	Schema string `yaml:"schema"`
}

// schema is a loaded, validated schema.
type schema struct {
	id         string
	name       string
	pageSize   int
	alphabet   string
	selectKeys string
	resets     map[string]bool
	codes      []string // sorted
	words      map[string][]string
}

func loadSchema(path string) (*schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", filepath.Base(path), err)
	}
	if f.Schema.SchemaID == "" {
		return nil, fmt.Errorf("schema %s: missing schema.schema_id", filepath.Base(path))
	}
	if strings.ContainsAny(f.Schema.SchemaID, "/ ") {
		return nil, fmt.Errorf("schema %s: invalid schema_id %q", filepath.Base(path), f.Schema.SchemaID)
	}

	s := &schema{
		id:         f.Schema.SchemaID,
		name:       f.Schema.Name,
		pageSize:   f.Menu.PageSize,
		alphabet:   f.Speller.Alphabet,
		selectKeys: f.Menu.AlternativeSelectKeys,
		resets:     make(map[string]bool),
		words:      make(map[string][]string, len(f.Table)),
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	if s.alphabet == "" {
		s.alphabet = defaultAlphabet
	}
	if s.selectKeys == "" {
		s.selectKeys = defaultSelectKeys
	}
	for _, sw := range f.Switches {
		if sw.Name != "" && sw.Reset != nil {
			s.resets[sw.Name] = *sw.Reset != 0
		}
	}
	for code, words := range f.Table {
		if code == "" || len(words) == 0 {
			continue
		}
		s.words[code] = words
		s.codes = append(s.codes, code)
	}
	sort.Strings(s.codes)
	return s, nil
}

// loadSchemas reads every schema file in dir. Files that fail to load are
// reported in the returned error but do not prevent the others from loading.
func loadSchemas(dir string) (map[string]*schema, error) {
	schemas := make(map[string]*schema)
	if dir == "" {
		return schemas, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*"+SchemaFileSuffix))
	if err != nil {
		return schemas, fmt.Errorf("failed to list schemas: %w", err)
	}
	sort.Strings(paths)

	var failures []string
	for _, path := range paths {
		s, err := loadSchema(path)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		if _, dup := schemas[s.id]; dup {
			failures = append(failures, fmt.Sprintf("duplicate schema_id %q in %s", s.id, filepath.Base(path)))
			continue
		}
		schemas[s.id] = s
	}
	if len(failures) > 0 {
		return schemas, fmt.Errorf("%d schema file(s) failed to load: %s", len(failures), strings.Join(failures, "; "))
	}
	return schemas, nil
}

// loadSchemaList reads the selected schema ids from dir/default.custom.yaml.
// A missing file yields nil.
func loadSchemaList(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, CustomFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", CustomFileName, err)
	}

	var f customFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", CustomFileName, err)
	}
	ids := make([]string, 0, len(f.Patch.SchemaList))
	for _, ref := range f.Patch.SchemaList {
		if ref.Schema != "" {
			ids = append(ids, ref.Schema)
		}
	}
	return ids, nil
}

// saveSchemaList writes ids to dir/default.custom.yaml, replacing the file.
func saveSchemaList(dir string, ids []string) error {
	if dir == "" {
		return fmt.Errorf("no user data directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create user data directory: %w", err)
	}

	var f customFile
	for _, id := range ids {
		f.Patch.SchemaList = append(f.Patch.SchemaList, schemaRef{Schema: id})
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", CustomFileName, err)
	}

	path := filepath.Join(dir, CustomFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", CustomFileName, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", CustomFileName, err)
	}
	return nil
}
