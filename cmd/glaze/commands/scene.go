package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/glazeui/glaze/pkg/rendertree"
	"github.com/glazeui/glaze/pkg/rendertree/memtree"
)

// sceneFile is the on-disk schema of a scene definition.
type sceneFile struct {
	Nodes []sceneNode `yaml:"nodes"`
}

// sceneNode describes one node of the scene.
type sceneNode struct {
	ID         string            `yaml:"id"`
	Tags       []string          `yaml:"tags,omitempty"`
	Rect       sceneRect         `yaml:"rect,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
	Focusable  bool              `yaml:"focusable,omitempty"`
}

type sceneRect struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// loadScene builds a tree from a YAML scene file.
func loadScene(path string) (*memtree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}

	var sf sceneFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	if len(sf.Nodes) == 0 {
		return nil, fmt.Errorf("scene %s defines no nodes", path)
	}

	tree := memtree.New()
	for i, n := range sf.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("scene %s: node %d has no id", path, i)
		}
		props := make(rendertree.Properties, len(n.Properties))
		for k, v := range n.Properties {
			props[k] = v
		}
		tree.Add(memtree.NodeSpec{
			ID:   rendertree.NodeID(n.ID),
			Tags: n.Tags,
			Rect: rendertree.Rect{
				X:      n.Rect.X,
				Y:      n.Rect.Y,
				Width:  n.Rect.Width,
				Height: n.Rect.Height,
			},
			Properties: props,
			Focusable:  n.Focusable,
		})
	}
	return tree, nil
}
