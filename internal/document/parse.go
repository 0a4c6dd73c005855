package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"confstack/internal/fileutil"
)

// ErrParse marks malformed configuration content.
var ErrParse = errors.New("malformed configuration")

// sequenceSuffix marks a multi-valued INI key ("key[] = v").
const sequenceSuffix = "[]"

// Parse decodes data using the format implied by name's extension. Unknown
// extensions are read as INI. The reserved parent section is extracted into
// Parent and removed from the sections. The result is writable.
func Parse(name string, data []byte) (*Document, error) {
	var (
		doc *Document
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		doc, err = parseTOML(data)
	case ".yaml", ".yml":
		doc, err = parseYAML(data)
	default:
		doc, err = parseINI(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, name, err)
	}
	doc.extractParent()
	return doc, nil
}

// ParseFile reads path through fsys and parses it.
func ParseFile(fsys fileutil.FS, path string) (*Document, error) {
	data, err := fileutil.Default(fsys).ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(path, data)
}

func parseINI(data []byte) (*Document, error) {
	if key, ok := leadingINIKey(data); ok {
		return nil, fmt.Errorf("key %q appears before any section header", key)
	}
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowShadows:               true,
		AllowDuplicateShadowValues: true,
		IgnoreInlineComment:        true,
		PreserveSurroundedQuote:    true,
	}, data)
	if err != nil {
		return nil, err
	}

	doc := New()
	for _, section := range file.Sections() {
		// Leading keys were rejected above, so the default section only
		// holds keys from an explicit [DEFAULT] header.
		if section.Name() == ini.DefaultSection && len(section.Keys()) == 0 {
			continue
		}
		out := NewSection(section.Name())
		for _, key := range section.Keys() {
			name := key.Name()
			values := key.ValueWithShadows()
			for i := range values {
				values[i] = iniValue(values[i])
			}
			if base, ok := strings.CutSuffix(name, sequenceSuffix); ok {
				name = base
				if existing := out.Get(name); existing.IsSequence() {
					out.Set(name, existing.Concat(Sequence(values...)))
					continue
				}
				out.Set(name, Sequence(values...))
				continue
			}
			out.Set(name, Scalar(values[len(values)-1]))
		}
		doc.PutSection(out)
	}
	return doc, nil
}

// leadingINIKey returns the first key that precedes every section header.
func leadingINIKey(data []byte) (string, bool) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == ';' || line[0] == '#' {
			continue
		}
		if line[0] == '[' {
			return "", false
		}
		if i := strings.IndexAny(line, "=:"); i >= 0 {
			line = line[:i]
		}
		return strings.TrimSpace(line), true
	}
	return "", false
}

// iniValue unquotes a raw value and drops an inline comment. A value that
// opens with a quote ends at the matching quote, so ';' and '#' inside it
// are kept. Otherwise a comment starts at ';' or '#' after whitespace.
func iniValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if q := raw[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(raw[1:], q); end >= 0 {
			return raw[1 : end+1]
		}
	}
	for i := 1; i < len(raw); i++ {
		if (raw[i] == ';' || raw[i] == '#') && (raw[i-1] == ' ' || raw[i-1] == '\t') {
			return strings.TrimSpace(raw[:i])
		}
	}
	return raw
}

func parseTOML(data []byte) (*Document, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	doc := New()
	for _, sectionName := range sortedKeys(raw) {
		table, ok := raw[sectionName].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("top-level key %q must be a table", sectionName)
		}
		out := NewSection(sectionName)
		for _, key := range sortedKeys(table) {
			value, err := tomlValue(table[key])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", sectionName, key, err)
			}
			out.Set(key, value)
		}
		doc.PutSection(out)
	}
	return doc, nil
}

func tomlValue(raw any) (Value, error) {
	if items, ok := raw.([]any); ok {
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, err := tomlScalar(item)
			if err != nil {
				return Value{}, err
			}
			out = append(out, s)
		}
		return Sequence(out...), nil
	}
	s, err := tomlScalar(raw)
	if err != nil {
		return Value{}, err
	}
	return Scalar(s), nil
}

func tomlScalar(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case toml.LocalDate, toml.LocalTime, toml.LocalDateTime:
		return fmt.Sprint(v), nil
	case map[string]any:
		return "", errors.New("nested tables are not supported")
	case []any:
		return "", errors.New("nested arrays are not supported")
	default:
		return "", fmt.Errorf("unsupported value type %T", raw)
	}
}

func parseYAML(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	doc := New()
	if root.Kind == 0 || len(root.Content) == 0 {
		return doc, nil
	}
	mapping := resolveAlias(root.Content[0])
	if isNull(mapping) {
		return doc, nil
	}
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: document root must be a mapping of sections", mapping.Line)
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		nameNode, body := mapping.Content[i], resolveAlias(mapping.Content[i+1])
		out := NewSection(nameNode.Value)
		switch {
		case isNull(body):
		case body.Kind == yaml.MappingNode:
			for j := 0; j+1 < len(body.Content); j += 2 {
				keyNode := body.Content[j]
				value, err := yamlValue(resolveAlias(body.Content[j+1]))
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", nameNode.Value, keyNode.Value, err)
				}
				out.Set(keyNode.Value, value)
			}
		default:
			return nil, fmt.Errorf("line %d: section %q must be a mapping", body.Line, nameNode.Value)
		}
		doc.PutSection(out)
	}
	return doc, nil
}

func yamlValue(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if isNull(node) {
			return Scalar(""), nil
		}
		return Scalar(node.Value), nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(node.Content))
		for _, child := range node.Content {
			child = resolveAlias(child)
			if child.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: sequence items must be scalars", child.Line)
			}
			items = append(items, child.Value)
		}
		return Sequence(items...), nil
	default:
		return Value{}, fmt.Errorf("line %d: nested mappings are not supported", node.Line)
	}
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
