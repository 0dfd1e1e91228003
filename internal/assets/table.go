// Package assets resolves image keys from the rules into scaled cover art.
package assets

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"musicnerd/internal/logging"
)

//go:embed images.xml
var bundledTable []byte

// Table maps abstract image keys to cover filenames. Immutable after load.
type Table struct {
	entries map[string]string
	source  string
}

// propertiesXML is the Java properties XML layout:
// <properties><entry key="k">v</entry></properties>
type propertiesXML struct {
	XMLName xml.Name `xml:"properties"`
	Entries []struct {
		Key   string `xml:"key,attr"`
		Value string `xml:",chardata"`
	} `xml:"entry"`
}

// ParseXML reads a properties-XML table.
func ParseXML(r io.Reader) (*Table, error) {
	var doc propertiesXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse image table: %w", err)
	}
	t := &Table{entries: make(map[string]string, len(doc.Entries))}
	for _, e := range doc.Entries {
		key := strings.TrimSpace(e.Key)
		if key == "" {
			continue
		}
		t.entries[key] = strings.TrimSpace(e.Value)
	}
	return t, nil
}

// ParseYAML reads a flat key: filename YAML table.
func ParseYAML(r io.Reader) (*Table, error) {
	entries := make(map[string]string)
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse image table: %w", err)
	}
	return &Table{entries: entries}, nil
}

// BundledTable returns the table packaged with the binary.
func BundledTable() (*Table, error) {
	t, err := ParseXML(bytes.NewReader(bundledTable))
	if err != nil {
		return nil, err
	}
	t.source = "bundled images.xml"
	return t, nil
}

// LoadTable reads the table at path (.xml, .yaml or .yml), or the bundled
// table when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return BundledTable()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image table: %w", err)
	}
	defer f.Close()

	var t *Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		t, err = ParseYAML(f)
	default:
		t, err = ParseXML(f)
	}
	if err != nil {
		return nil, err
	}
	t.source = path
	return t, nil
}

// OpenTable is LoadTable that fails soft: a missing or broken table is
// logged and replaced by an empty one, so every key falls back to itself.
func OpenTable(path string) *Table {
	t, err := LoadTable(path)
	if err != nil {
		logging.Get(logging.CategoryAssets).Warn("image table unavailable, keys will be used as filenames: %v", err)
		return &Table{entries: map[string]string{}, source: "empty"}
	}
	logging.Assets("image table %s: %d entries", t.source, t.Len())
	return t
}

// Lookup returns the filename mapped to key.
func (t *Table) Lookup(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.entries[key]
	return v, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Keys returns the mapped keys in sorted order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
