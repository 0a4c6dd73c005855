// Package tree holds aggregated configuration as an ordered tree: branches
// map names to children, leaves are scalars or sequences of scalars.
package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"confstack/internal/document"
)

// Kind discriminates node shapes.
type Kind int

const (
	KindBranch Kind = iota
	KindScalar
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	default:
		return "branch"
	}
}

// Node is one value in the tree. Nodes reachable from a cache are shared
// between callers and must be treated as read-only; use Clone to modify.
type Node struct {
	kind     Kind
	scalar   string
	items    []string
	keys     []string
	children map[string]*Node
}

// NewBranch returns an empty branch.
func NewBranch() *Node {
	return &Node{kind: KindBranch, children: make(map[string]*Node)}
}

// NewScalar returns a scalar leaf.
func NewScalar(s string) *Node {
	return &Node{kind: KindScalar, scalar: s}
}

// NewSequence returns a sequence leaf holding a copy of items.
func NewSequence(items ...string) *Node {
	return &Node{kind: KindSequence, items: append([]string{}, items...)}
}

// FromValue converts a document value. Absent values yield nil.
func FromValue(v document.Value) *Node {
	switch v.Kind() {
	case document.KindScalar:
		return NewScalar(v.String())
	case document.KindSequence:
		return NewSequence(v.Strings()...)
	default:
		return nil
	}
}

// FromDocument converts a document into a branch of section branches.
func FromDocument(doc *document.Document) *Node {
	root := NewBranch()
	if doc == nil {
		return root
	}
	for _, section := range doc.Sections() {
		branch := NewBranch()
		for _, key := range section.Keys() {
			if leaf := FromValue(section.Get(key)); leaf != nil {
				branch.Set(key, leaf)
			}
		}
		root.Set(section.Name(), branch)
	}
	return root
}

func (n *Node) Kind() Kind { return n.kind }

func (n *Node) IsBranch() bool { return n.kind == KindBranch }

// String returns the scalar text; sequences are joined with ", ".
func (n *Node) String() string {
	switch n.kind {
	case KindScalar:
		return n.scalar
	case KindSequence:
		return strings.Join(n.items, ", ")
	default:
		return ""
	}
}

// Strings returns sequence items, or the scalar as a single item.
func (n *Node) Strings() []string {
	switch n.kind {
	case KindScalar:
		return []string{n.scalar}
	case KindSequence:
		return append([]string(nil), n.items...)
	default:
		return nil
	}
}

// Set attaches child under name, keeping the position of an existing name.
func (n *Node) Set(name string, child *Node) {
	if n.kind != KindBranch {
		panic(fmt.Sprintf("tree: set %q on %s node", name, n.kind))
	}
	if _, exists := n.children[name]; !exists {
		n.keys = append(n.keys, name)
	}
	n.children[name] = child
}

// Child returns the named child of a branch.
func (n *Node) Child(name string) (*Node, bool) {
	if n == nil || n.kind != KindBranch {
		return nil, false
	}
	child, ok := n.children[name]
	return child, ok
}

// Keys returns child names in insertion order.
func (n *Node) Keys() []string { return append([]string(nil), n.keys...) }

// Len returns the child count of a branch or the item count of a sequence.
func (n *Node) Len() int {
	switch n.kind {
	case KindBranch:
		return len(n.keys)
	case KindSequence:
		return len(n.items)
	default:
		return 1
	}
}

// Lookup walks segments from n. A numeric segment indexes into a sequence.
// It returns nil when any segment is missing.
func (n *Node) Lookup(segments []string) *Node {
	current := n
	for _, segment := range segments {
		if current == nil {
			return nil
		}
		switch current.kind {
		case KindBranch:
			current = current.children[segment]
		case KindSequence:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(current.items) {
				return nil
			}
			current = NewScalar(current.items[idx])
		default:
			return nil
		}
	}
	return current
}

// SplitPath splits a "/"-delimited lookup path, dropping empty segments.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinPath is the inverse of SplitPath.
func JoinPath(segments []string) string {
	return strings.Join(segments, "/")
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{kind: n.kind, scalar: n.scalar}
	switch n.kind {
	case KindSequence:
		out.items = append([]string{}, n.items...)
	case KindBranch:
		out.keys = append([]string(nil), n.keys...)
		out.children = make(map[string]*Node, len(n.children))
		for k, child := range n.children {
			out.children[k] = child.Clone()
		}
	}
	return out
}

// Equal reports structural equality, including child order.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.kind != other.kind {
		return false
	}
	switch n.kind {
	case KindScalar:
		return n.scalar == other.scalar
	case KindSequence:
		if len(n.items) != len(other.items) {
			return false
		}
		for i := range n.items {
			if n.items[i] != other.items[i] {
				return false
			}
		}
		return true
	default:
		if len(n.keys) != len(other.keys) {
			return false
		}
		for i, k := range n.keys {
			if other.keys[i] != k || !n.children[k].Equal(other.children[k]) {
				return false
			}
		}
		return true
	}
}

func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch n.kind {
	case KindScalar:
		data, err := json.Marshal(n.scalar)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindSequence:
		items := n.items
		if items == nil {
			items = []string{}
		}
		data, err := json.Marshal(items)
		if err != nil {
			return err
		}
		buf.Write(data)
	default:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			child := n.children[k]
			if child == nil {
				buf.WriteString("null")
				continue
			}
			if err := child.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes objects as branches in source order, arrays as
// sequences, and any other literal as a scalar.
func (n *Node) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	decoded, err := decodeNode(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("tree: trailing data after value")
	}
	if decoded == nil {
		decoded = NewBranch()
	}
	*n = *decoded
	return nil
}

func decodeNode(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			branch := NewBranch()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("tree: unexpected object key %v", keyTok)
				}
				child, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				if child != nil {
					branch.Set(key, child)
				}
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return branch, nil
		case '[':
			items := []string{}
			for dec.More() {
				itemTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				s, err := literal(itemTok)
				if err != nil {
					return nil, fmt.Errorf("tree: sequence item: %w", err)
				}
				items = append(items, s)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return NewSequence(items...), nil
		default:
			return nil, fmt.Errorf("tree: unexpected delimiter %v", t)
		}
	case nil:
		return nil, nil
	default:
		s, err := literal(tok)
		if err != nil {
			return nil, err
		}
		return NewScalar(s), nil
	}
}

func literal(tok json.Token) (string, error) {
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported token %v", tok)
	}
}
