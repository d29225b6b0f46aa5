package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidDocument is returned when a serialized document cannot be parsed.
var ErrInvalidDocument = errors.New("invalid document")

// DocType is the type of the root node.
const DocType = "doc"

// Node is one element of the rich-text tree (ProseMirror shape).
//
// Members the tree does not model are kept in Extra and encoded back after
// the named ones, sorted by key.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Extra   map[string]any `json:"-"`
}

// Mark decorates a text node (bold, link, ...).
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
	Extra map[string]any `json:"-"`
}

// nodeFields and markFields carry the named members without the JSON methods.
type (
	nodeFields Node
	markFields Mark
)

var (
	nodeKeys = map[string]bool{"type": true, "attrs": true, "content": true, "text": true, "marks": true}
	markKeys = map[string]bool{"type": true, "attrs": true}
)

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	var f nodeFields
	extra, err := decodeObject(data, &f, nodeKeys)
	if err != nil {
		return err
	}
	f.Extra = extra
	*n = Node(f)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	return encodeObject(nodeFields(n), n.Extra)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Mark) UnmarshalJSON(data []byte) error {
	var f markFields
	extra, err := decodeObject(data, &f, markKeys)
	if err != nil {
		return err
	}
	f.Extra = extra
	*m = Mark(f)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Mark) MarshalJSON() ([]byte, error) {
	return encodeObject(markFields(m), m.Extra)
}

// decodeObject decodes the named members of data into fields and returns the
// remaining ones. Numbers stay json.Number so they encode back verbatim.
func decodeObject(data []byte, fields any, known map[string]bool) (map[string]any, error) {
	if err := decodeNumbers(data, fields); err != nil {
		return nil, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	var extra map[string]any
	for k, raw := range members {
		if known[k] {
			continue
		}
		var v any
		if err := decodeNumbers(raw, &v); err != nil {
			return nil, err
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra, nil
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// encodeObject encodes fields and appends extra after them.
func encodeObject(fields any, extra map[string]any) ([]byte, error) {
	out, err := marshal(fields)
	if err != nil || len(extra) == 0 {
		return out, err
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := bytes.NewBuffer(out[:len(out)-1])
	for _, k := range keys {
		key, err := marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := marshal(extra[k])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Empty returns the empty document.
func Empty() Node {
	return Node{Type: DocType}
}

// Parse decodes a serialized document.
// The empty string and "{}" decode to the empty document.
func Parse(serialized string) (Node, error) {
	trimmed := strings.TrimSpace(serialized)
	if trimmed == "" {
		return Empty(), nil
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()

	var n Node
	if err := dec.Decode(&n); err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if dec.More() {
		return Node{}, fmt.Errorf("%w: trailing data", ErrInvalidDocument)
	}
	if n.Type == "" {
		n.Type = DocType
	}
	return n, nil
}

// Encode returns the canonical encoding of n.
// Named members keep their declared order, extra members follow sorted and map
// keys are sorted, so equal trees always encode to equal strings.
func Encode(n Node) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(n); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Canonical returns the canonical encoding of serialized, or the encoding of
// the empty document when it cannot be parsed.
func Canonical(serialized string) string {
	n, err := Parse(serialized)
	if err != nil {
		n = Empty()
	}
	out, err := Encode(n)
	if err != nil {
		return emptyEncoding
	}
	return out
}

// Valid reports whether serialized parses as a document.
func Valid(serialized string) bool {
	_, err := Parse(serialized)
	return err == nil
}

var emptyEncoding = `{"type":"doc"}`

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	out.Attrs = cloneAttrs(n.Attrs)
	out.Extra = cloneAttrs(n.Extra)
	if n.Content != nil {
		out.Content = make([]Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = c.Clone()
		}
	}
	if n.Marks != nil {
		out.Marks = make([]Mark, len(n.Marks))
		for i, m := range n.Marks {
			out.Marks[i] = Mark{Type: m.Type, Attrs: cloneAttrs(m.Attrs), Extra: cloneAttrs(m.Extra)}
		}
	}
	return out
}

// PlainText flattens the tree to text, one line per block node.
func (n Node) PlainText() string {
	var sb strings.Builder
	n.writeText(&sb)
	return strings.TrimRight(sb.String(), "\n")
}

func (n Node) writeText(sb *strings.Builder) {
	if n.Type == "text" {
		sb.WriteString(n.Text)
		return
	}
	if n.Type == "hardBreak" {
		sb.WriteString("\n")
		return
	}
	for _, c := range n.Content {
		c.writeText(sb)
	}
	if n.Type != DocType && !strings.HasSuffix(sb.String(), "\n") {
		sb.WriteString("\n")
	}
}

// Paragraph builds a paragraph node holding a single text run.
func Paragraph(text string) Node {
	p := Node{Type: "paragraph"}
	if text != "" {
		p.Content = []Node{{Type: "text", Text: text}}
	}
	return p
}

func cloneAttrs(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAttrs(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
