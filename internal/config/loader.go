package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

// Source tells where an effective value came from.
type Source struct {
	Kind   SourceKind
	Name   string // for default
	File   string
	Line   int
	Column int
}

// Position formats a file source as file:line:column.
func (s Source) Position() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

type LoadResult struct {
	Config *Config
	// Sources maps a dotted path (render.fps, screens.1.width) to the
	// file position that last set it. Screen indexes are those of the
	// merged list.
	Sources map[string]Source
	Files   []string // in merge order
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "ivicomp", "config.yaml"), nil
}

// Load reads the configuration from the standard location.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources is Load keeping the file positions for config explain.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and the files it includes over the defaults. A
// missing file yields the defaults.
//
// Included files apply first, in include order, and the including file
// last. Scalars and the render block follow the last writer. Screen lists
// merge by id: an entry replaces the inherited screen with the same id in
// place and a new id is appended. replace_screens: true discards the
// screens inherited before the file.
func LoadFromPath(path string) (*LoadResult, error) {
	l := &loader{sources: sourceMap{}, visited: map[string]bool{}}
	if _, err := os.Stat(path); err == nil {
		if err := l.load(path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := BuildEffectiveConfig(l.raw)
	if err := cfg.Validate(); err != nil {
		return nil, l.sources.annotate(err)
	}
	return &LoadResult{Config: cfg, Sources: l.sources, Files: l.files}, nil
}

type loader struct {
	raw     RawConfig
	sources sourceMap
	files   []string
	visited map[string]bool
	chain   []string // files being loaded, outermost first
}

func (l *loader) load(path string) error {
	file, err := realPath(path)
	if err != nil {
		return err
	}
	if i := slices.Index(l.chain, file); i >= 0 {
		return fmt.Errorf("include cycle detected: %s -> %s", strings.Join(l.chain[i:], " -> "), file)
	}
	if l.visited[file] {
		return nil
	}
	l.visited[file] = true

	f, err := readConfigFile(file)
	if err != nil {
		return err
	}

	l.chain = append(l.chain, file)
	for i, entry := range f.raw.Include {
		src, ok := f.sources["include."+strconv.Itoa(i)]
		if !ok {
			src = f.sources["include"]
		}
		paths, err := includePaths(file, entry)
		if err != nil {
			return fmt.Errorf("%s: include %q: %w", src.Position(), entry, err)
		}
		for _, p := range paths {
			if err := l.load(p); err != nil {
				return err
			}
		}
	}
	l.chain = l.chain[:len(l.chain)-1]

	if err := l.apply(f); err != nil {
		return err
	}
	l.files = append(l.files, file)
	return nil
}

// apply overlays one file on everything merged so far.
func (l *loader) apply(f *configFile) error {
	inherited := l.raw.Screens
	if f.raw.ReplaceScreens {
		inherited = []ScreenConfig{}
		l.sources.drop("screens")
	}

	l.raw = l.raw.merge(f.raw)
	for key, src := range f.sources {
		if key != "screens" && !strings.HasPrefix(key, "screens.") {
			l.sources[key] = src
		}
	}

	screens, err := l.mergeScreens(inherited, f)
	if err != nil {
		return err
	}
	l.raw.Screens = screens
	return nil
}

// mergeScreens checks the screen entries of f and overlays them on
// inherited by id.
func (l *loader) mergeScreens(inherited []ScreenConfig, f *configFile) ([]ScreenConfig, error) {
	if f.raw.Screens == nil {
		return inherited, nil
	}
	if src, ok := f.sources["screens"]; ok {
		l.sources["screens"] = src
	}

	out := slices.Clone(inherited)
	if out == nil {
		out = []ScreenConfig{}
	}
	local := make(map[uint32]int, len(f.raw.Screens))
	for i, s := range f.raw.Screens {
		key := "screens." + strconv.Itoa(i)
		if first, dup := local[s.ID]; dup {
			return nil, f.sources.annotate(&ValidationError{
				Path: key + ".id",
				Err:  fmt.Errorf("duplicate screen id %d (first at screens.%d)", s.ID, first),
			})
		}
		local[s.ID] = i
		if verr := validateScreen(s, key); verr != nil {
			return nil, f.sources.annotate(verr)
		}

		at := slices.IndexFunc(out, func(o ScreenConfig) bool { return o.ID == s.ID })
		if at < 0 {
			at = len(out)
			out = append(out, s)
		} else {
			out[at] = s
		}
		target := "screens." + strconv.Itoa(at)
		l.sources.drop(target)
		l.sources.graft(f.sources, key, target)
	}
	return out, nil
}

// configFile is one parsed file before merging.
type configFile struct {
	raw     RawConfig
	sources sourceMap
}

func readConfigFile(path string) (*configFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: failed to parse yaml: %w", path, err)
	}

	f := &configFile{sources: sourceMap{}}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f.raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.sources.record(&doc, path, "")
	return f, nil
}

// includePaths resolves an include entry against the including file. A
// directory expands to its .yaml and .yml files in name order.
func includePaths(from, entry string) ([]string, error) {
	if entry == "" {
		return nil, errors.New("path is empty")
	}
	if entry == "~" || strings.HasPrefix(entry, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		entry = filepath.Join(home, entry[1:])
	}
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(filepath.Dir(from), entry)
	}

	info, err := os.Stat(entry)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{entry}, nil
	}
	entries, err := os.ReadDir(entry)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			if !e.IsDir() {
				paths = append(paths, filepath.Join(entry, e.Name()))
			}
		}
	}
	return paths, nil
}

func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

// sourceMap records file positions by dotted path.
type sourceMap map[string]Source

// record walks a parsed document and stores the position of every mapping
// value and sequence item below path.
func (m sourceMap) record(node *yaml.Node, file, path string) {
	join := func(key string) string {
		if path == "" {
			return key
		}
		return path + "." + key
	}
	visit := func(key string, n *yaml.Node) {
		p := join(key)
		m[p] = Source{Kind: SourceFile, File: file, Line: n.Line, Column: n.Column}
		m.record(n, file, p)
	}

	switch node.Kind {
	case yaml.DocumentNode:
		for _, n := range node.Content {
			m.record(n, file, path)
		}
	case yaml.MappingNode:
		for i := 1; i < len(node.Content); i += 2 {
			visit(node.Content[i-1].Value, node.Content[i])
		}
	case yaml.SequenceNode:
		for i, n := range node.Content {
			visit(strconv.Itoa(i), n)
		}
	}
}

// find returns the source of path or of its closest recorded parent.
func (m sourceMap) find(path string) (Source, bool) {
	for {
		if src, ok := m[path]; ok {
			return src, true
		}
		i := strings.LastIndexByte(path, '.')
		if i < 0 {
			return Source{}, false
		}
		path = path[:i]
	}
}

// drop removes path and everything below it.
func (m sourceMap) drop(path string) {
	for key := range m {
		if key == path || strings.HasPrefix(key, path+".") {
			delete(m, key)
		}
	}
}

// graft copies the entries of from at and below fromPath into m,
// re-rooted at toPath.
func (m sourceMap) graft(from sourceMap, fromPath, toPath string) {
	for key, src := range from {
		if key == fromPath {
			m[toPath] = src
		} else if rest, ok := strings.CutPrefix(key, fromPath+"."); ok {
			m[toPath+"."+rest] = src
		}
	}
}

// annotate fills in the position of a validation error that has none.
func (m sourceMap) annotate(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Source.Kind == "" {
		if src, ok := m.find(verr.Path); ok {
			verr.Source = src
		}
	}
	return err
}
