package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// eachPair walks a mapping node in document order. Decoding into a Go map
// would lose the order, and the order of proxy rules is significant.
func eachPair(node *yaml.Node, fn func(key, value *yaml.Node) error) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i], node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalYAML decodes `prefix: {target: ...}` pairs keeping their order.
// Duplicate prefixes are kept here and rejected by validation.
func (t *ProxyTable) UnmarshalYAML(node *yaml.Node) error {
	var entries ProxyTable
	err := eachPair(node, func(key, value *yaml.Node) error {
		var entry ProxyEntry
		if err := value.Decode(&entry); err != nil {
			return fmt.Errorf("proxy %q: %w", key.Value, err)
		}
		entry.Prefix = key.Value
		entry.Line = key.Line
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return err
	}
	*t = entries
	return nil
}

// UnmarshalYAML decodes `module: path` pairs keeping their order.
func (t *AliasTable) UnmarshalYAML(node *yaml.Node) error {
	var aliases AliasTable
	seen := map[string]int{}
	err := eachPair(node, func(key, value *yaml.Node) error {
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: alias %q must map to a path", value.Line, key.Value)
		}
		if line, dup := seen[key.Value]; dup {
			return fmt.Errorf("line %d: alias %q already defined at line %d", key.Line, key.Value, line)
		}
		seen[key.Value] = key.Line
		aliases = append(aliases, Alias{Module: key.Value, Path: value.Value})
		return nil
	})
	if err != nil {
		return err
	}
	*t = aliases
	return nil
}
