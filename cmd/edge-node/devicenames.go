package main

import (
	"maps"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// deviceNames tracks a friendly name per device MAC, persisted as a
// comment-preserving YAML mapping. This is the same load/write shape
// as the teacher's own Serial->Name config: decode into a yaml.Node so
// any comments a human added survive, append only the names that
// weren't already on disk, and write the whole document back out via
// an atomic rename.
type deviceNames struct {
	mu    sync.RWMutex
	names map[string]string
	yaml  yaml.Node
}

func loadDeviceNames(fn string) (*deviceNames, error) {
	d := &deviceNames{names: make(map[string]string)}

	data, err := os.ReadFile(fn)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &d.yaml); err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &d.names); err != nil {
		return nil, err
	}
	return d, nil
}

// seen records mac under name if it is not already known, and returns
// whatever name (old or new) is now on file for it.
func (d *deviceNames) seen(mac, name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.names[mac]; ok {
		return existing
	}
	if name == "" {
		name = "[unnamed]"
	}
	d.names[mac] = name
	return name
}

func (d *deviceNames) write(fn string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	newNames := maps.Clone(d.names)

	var mapping *yaml.Node
	if len(d.yaml.Content) == 0 {
		d.yaml.Kind = yaml.DocumentNode
		mapping = &yaml.Node{Kind: yaml.MappingNode}
		d.yaml.Content = append(d.yaml.Content, mapping)
	} else {
		mapping = d.yaml.Content[0]
	}

	for i := 0; i < len(mapping.Content); i += 2 {
		delete(newNames, mapping.Content[i].Value)
	}
	if len(newNames) == 0 {
		return nil
	}

	for mac, name := range newNames {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: mac, Tag: "!!str", Style: yaml.DoubleQuotedStyle},
			&yaml.Node{Kind: yaml.ScalarNode, Value: name, Tag: "!!str", Style: yaml.DoubleQuotedStyle},
		)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fn), "."+filepath.Base(fn)+"*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err := enc.Encode(&d.yaml); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fn)
}
