package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/ruler/pkg/rules"
	"mercator-hq/ruler/pkg/rules/ast"
)

// MaxFileSize bounds the size of a single catalog file.
const MaxFileSize = 4 << 20

// Extensions lists the file extensions read from a catalog directory.
var Extensions = []string{".yaml", ".yml"}

var validName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// File is the YAML layout of a catalog file.
type File struct {
	Rules []Entry `yaml:"rules"`
}

// Entry is one rule definition in a catalog file.
type Entry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Expression  string `yaml:"expression"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the entry is active. Entries are enabled unless
// they say otherwise.
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Rule is a compiled catalog entry.
type Rule struct {
	Name        string
	Description string
	Expression  string
	Source      string // File the rule was loaded from
	Tree        ast.Node
}

// Snapshot is an immutable set of compiled rules.
type Snapshot struct {
	rules    map[string]*Rule
	names    []string
	files    []string
	disabled int
	loadedAt time.Time
}

// Get returns the named rule.
func (s *Snapshot) Get(name string) (*Rule, bool) {
	r, ok := s.rules[name]
	return r, ok
}

// Names returns the rule names in sorted order.
func (s *Snapshot) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of enabled rules.
func (s *Snapshot) Len() int { return len(s.rules) }

// Disabled returns the number of rules skipped because they are disabled.
func (s *Snapshot) Disabled() int { return s.disabled }

// Files returns the files the snapshot was loaded from.
func (s *Snapshot) Files() []string { return append([]string(nil), s.files...) }

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Loader reads catalog files and compiles their expressions.
type Loader struct {
	engine     *rules.Engine
	skipHidden bool
}

// NewLoader creates a loader compiling rules with engine, or with a default
// engine when engine is nil.
func NewLoader(engine *rules.Engine) *Loader {
	if engine == nil {
		engine = rules.NewEngine(nil)
	}
	return &Loader{engine: engine, skipHidden: true}
}

// Load reads a catalog file or every catalog file under a directory.
// Every problem is collected; if any is found the returned error is a
// *LoadError, *RuleError, *DuplicateError or an *ErrorList of them, and no
// snapshot is returned. Disabled entries are validated but not included.
func (l *Loader) Load(path string) (*Snapshot, error) {
	files, err := l.collectFiles(path)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		rules:    make(map[string]*Rule),
		files:    files,
		loadedAt: time.Now(),
	}
	origin := make(map[string]string)
	errList := &ErrorList{}

	for _, file := range files {
		entries, err := readFile(file)
		if err != nil {
			errList.Add(err)
			continue
		}

		for i, entry := range entries {
			rule, err := l.compile(file, i, entry)
			if err != nil {
				errList.Add(err)
				continue
			}

			if first, ok := origin[rule.Name]; ok {
				errList.Add(&DuplicateError{Name: rule.Name, FirstFile: first, SecondFile: file})
				continue
			}
			origin[rule.Name] = file

			if !entry.IsEnabled() {
				snap.disabled++
				continue
			}
			snap.rules[rule.Name] = rule
			snap.names = append(snap.names, rule.Name)
		}
	}

	if errList.HasErrors() {
		return nil, errList.ToError()
	}

	sort.Strings(snap.names)
	return snap, nil
}

func (l *Loader) compile(file string, index int, entry Entry) (*Rule, error) {
	ruleErr := func(msg string, cause error) error {
		return &RuleError{FilePath: file, Index: index, Name: entry.Name, Message: msg, Cause: cause}
	}

	if entry.Name == "" {
		return nil, ruleErr("name is required", nil)
	}
	if !validName.MatchString(entry.Name) {
		return nil, ruleErr("name may only contain letters, digits, '_', '.' and '-'", nil)
	}
	if strings.TrimSpace(entry.Expression) == "" {
		return nil, ruleErr("expression is required", nil)
	}

	tree, err := l.engine.CreateRule(entry.Expression)
	if err != nil {
		return nil, ruleErr("invalid expression", err)
	}

	return &Rule{
		Name:        entry.Name,
		Description: entry.Description,
		Expression:  entry.Expression,
		Source:      file,
		Tree:        tree,
	}, nil
}

// Files returns the catalog files Load would read for path, in lexical
// order.
func (l *Loader) Files(path string) ([]string, error) {
	return l.collectFiles(path)
}

// collectFiles resolves path to the list of catalog files to read, in
// lexical order.
func (l *Loader) collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{FilePath: path, Message: "not found", Cause: err}
		}
		return nil, &LoadError{FilePath: path, Message: "failed to access path", Cause: err}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if l.skipHidden && p != path && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && hasCatalogExtension(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to walk directory", Cause: err}
	}
	if len(files) == 0 {
		return nil, &LoadError{FilePath: path, Message: "no catalog files found in directory"}
	}

	sort.Strings(files)
	return files, nil
}

// readFile decodes one catalog file. Unknown keys are rejected so that
// misspelled fields do not silently disable a rule.
func readFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to open file", Cause: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}
	if len(data) > MaxFileSize {
		return nil, &LoadError{FilePath: path, Message: fmt.Sprintf("file exceeds %d bytes", MaxFileSize)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{FilePath: path, Message: "invalid YAML", Cause: err}
	}
	return file.Rules, nil
}

func hasCatalogExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range Extensions {
		if ext == valid {
			return true
		}
	}
	return false
}
