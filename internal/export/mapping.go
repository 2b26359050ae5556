package export

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Mapping is a conversation's message graph keyed by node id. Unlike a Go
// map it remembers the order in which the export listed the nodes, which the
// flattener uses as its tie-breaker.
type Mapping struct {
	keys  []string
	nodes map[string]Node
}

// NewMapping builds a Mapping from nodes in the given order. Later duplicates
// of a key replace the node but keep the first position.
func NewMapping(keys []string, nodes map[string]Node) Mapping {
	m := Mapping{nodes: make(map[string]Node, len(keys))}
	for _, k := range keys {
		n, ok := nodes[k]
		if !ok {
			continue
		}
		m.put(k, n)
	}
	return m
}

// Keys returns node ids in export order.
func (m Mapping) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Node returns the node stored under id.
func (m Mapping) Node(id string) (Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

func (m Mapping) Len() int {
	return len(m.keys)
}

func (m *Mapping) put(key string, n Node) {
	if m.nodes == nil {
		m.nodes = make(map[string]Node)
	}
	if _, exists := m.nodes[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.nodes[key] = n
}

func (m *Mapping) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.nodes = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode mapping: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode mapping: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode mapping key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode mapping: unexpected key %v", keyTok)
		}
		var n Node
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("decode mapping node %s: %w", key, err)
		}
		m.put(key, n)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode mapping: %w", err)
	}
	return nil
}

func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		node, err := json.Marshal(m.nodes[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(node)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
