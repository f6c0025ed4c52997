package taxonomy

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// NamedList is an ordered, optionally named group of strings (keywords or patterns).
type NamedList struct {
	Name  string
	Items []string
}

// NamedLists accepts either a YAML sequence (one unnamed group) or a mapping of
// group name to sequence. Mapping order is preserved.
type NamedLists []NamedList

func (n *NamedLists) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*n = NamedLists{{Items: items}}
		return nil
	case yaml.MappingNode:
		out := make(NamedLists, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var items []string
			if err := node.Content[i+1].Decode(&items); err != nil {
				return fmt.Errorf("group %q: %w", node.Content[i].Value, err)
			}
			out = append(out, NamedList{Name: node.Content[i].Value, Items: items})
		}
		*n = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a list or a mapping of lists", node.Line)
	}
}

func (n NamedLists) MarshalYAML() (any, error) {
	if len(n) == 1 && n[0].Name == "" {
		return n[0].Items, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, g := range n {
		var items yaml.Node
		if err := items.Encode(g.Items); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: g.Name}, &items)
	}
	return node, nil
}

// Flatten returns every item across groups in declaration order.
func (n NamedLists) Flatten() []string {
	var out []string
	for _, g := range n {
		out = append(out, g.Items...)
	}
	return out
}
