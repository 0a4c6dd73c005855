package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ParentSection is the reserved section naming the file a document inherits from.
const ParentSection = "Parent_Config"

// ParentDirective is the parsed form of the reserved Parent_Config section.
type ParentDirective struct {
	// Path is an absolute path to the parent file.
	Path string
	// RelativePath is resolved against the directory of the declaring file.
	RelativePath string
	// OverrideFullSections lists sections the child replaces wholesale.
	OverrideFullSections []string
	// MergeArraySettings concatenates sequences present on both sides.
	MergeArraySettings bool
}

// OverridesSection reports whether name is listed in OverrideFullSections.
func (p *ParentDirective) OverridesSection(name string) bool {
	if p == nil {
		return false
	}
	for _, candidate := range p.OverrideFullSections {
		if candidate == name {
			return true
		}
	}
	return false
}

// HasTarget reports whether the directive names a parent file at all.
func (p *ParentDirective) HasTarget() bool {
	return p != nil && (p.Path != "" || p.RelativePath != "")
}

func (p *ParentDirective) clone() *ParentDirective {
	if p == nil {
		return nil
	}
	out := *p
	out.OverrideFullSections = append([]string(nil), p.OverrideFullSections...)
	return &out
}

// Section is an ordered key to Value mapping.
type Section struct {
	name   string
	keys   []string
	values map[string]Value
	frozen bool
}

// NewSection returns an empty section called name.
func NewSection(name string) *Section {
	return &Section{name: name, values: make(map[string]Value)}
}

func (s *Section) Name() string { return s.name }

// Keys returns key names in insertion order.
func (s *Section) Keys() []string { return append([]string(nil), s.keys...) }

func (s *Section) Len() int { return len(s.keys) }

// Get returns the value stored under key, or an absent Value.
func (s *Section) Get(key string) Value {
	if s == nil {
		return Value{}
	}
	return s.values[key]
}

// Set stores v under key. Existing keys keep their position.
func (s *Section) Set(key string, v Value) {
	if s.frozen {
		panic(fmt.Sprintf("document: set %s/%s on read-only section", s.name, key))
	}
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

// Clone returns an unfrozen deep copy.
func (s *Section) Clone() *Section {
	out := &Section{
		name:   s.name,
		keys:   append([]string(nil), s.keys...),
		values: make(map[string]Value, len(s.values)),
	}
	for k, v := range s.values {
		if v.kind == KindSequence {
			v = Sequence(v.items...)
		}
		out.values[k] = v
	}
	return out
}

func (s *Section) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		value, err := s.values[key].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Document is an ordered mapping of section names to sections plus an
// optional parent directive. A frozen Document panics on mutation and is
// safe for concurrent reads.
type Document struct {
	order    []string
	sections map[string]*Section
	parent   *ParentDirective
	frozen   bool
}

// New returns an empty, writable document.
func New() *Document {
	return &Document{sections: make(map[string]*Section)}
}

// Empty returns an empty read-only document.
func Empty() *Document {
	return New().Freeze()
}

// Sections returns the sections in document order.
func (d *Document) Sections() []*Section {
	out := make([]*Section, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.sections[name])
	}
	return out
}

// SectionNames returns section names in document order.
func (d *Document) SectionNames() []string { return append([]string(nil), d.order...) }

// Section returns the named section.
func (d *Document) Section(name string) (*Section, bool) {
	s, ok := d.sections[name]
	return s, ok
}

// Get returns section/key, or an absent Value.
func (d *Document) Get(section, key string) Value {
	s, ok := d.sections[section]
	if !ok {
		return Value{}
	}
	return s.Get(key)
}

func (d *Document) Len() int { return len(d.order) }

func (d *Document) Parent() *ParentDirective { return d.parent }

func (d *Document) ReadOnly() bool { return d.frozen }

// SetParent attaches a parent directive.
func (d *Document) SetParent(p *ParentDirective) {
	d.mustWritable("set parent")
	d.parent = p
}

// PutSection inserts s, replacing any section with the same name in place.
func (d *Document) PutSection(s *Section) {
	d.mustWritable("put section " + s.name)
	if _, exists := d.sections[s.name]; !exists {
		d.order = append(d.order, s.name)
	}
	d.sections[s.name] = s
}

// Set stores v under section/key, creating the section when needed.
func (d *Document) Set(section, key string, v Value) {
	d.mustWritable("set " + section + "/" + key)
	s, ok := d.sections[section]
	if !ok {
		s = NewSection(section)
		d.PutSection(s)
	}
	s.Set(key, v)
}

func (d *Document) removeSection(name string) {
	if _, ok := d.sections[name]; !ok {
		return
	}
	delete(d.sections, name)
	for i, candidate := range d.order {
		if candidate == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Clone returns an unfrozen deep copy including the parent directive.
func (d *Document) Clone() *Document {
	out := New()
	for _, name := range d.order {
		out.order = append(out.order, name)
		out.sections[name] = d.sections[name].Clone()
	}
	out.parent = d.parent.clone()
	return out
}

// Freeze marks d and all of its sections read-only and returns d.
func (d *Document) Freeze() *Document {
	d.frozen = true
	for _, s := range d.sections {
		s.frozen = true
	}
	return d
}

func (d *Document) mustWritable(op string) {
	if d.frozen {
		panic("document: " + op + " on read-only document")
	}
}

func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range d.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		body, err := d.sections[name].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// extractParent moves the reserved section into the parent directive.
func (d *Document) extractParent() {
	s, ok := d.sections[ParentSection]
	if !ok {
		return
	}
	directive := &ParentDirective{
		Path:               strings.TrimSpace(s.Get("path").String()),
		RelativePath:       strings.TrimSpace(s.Get("relative_path").String()),
		MergeArraySettings: s.Get("merge_array_settings").Bool(),
	}
	override := s.Get("override_full_sections")
	var names []string
	if override.IsSequence() {
		names = override.Strings()
	} else {
		names = strings.Split(override.String(), ",")
	}
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			directive.OverrideFullSections = append(directive.OverrideFullSections, name)
		}
	}
	d.removeSection(ParentSection)
	d.parent = directive
}
