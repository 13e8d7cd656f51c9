package commands

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScene(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scene: %v", err)
	}
	return path
}

func TestLoadScene(t *testing.T) {
	path := writeScene(t, `
nodes:
  - id: panel
    tags: [transition-component, transition-participating]
    rect: {x: 10, y: 20, width: 300, height: 150}
    properties:
      background: "#ffffff"
    focusable: true
  - id: badge
    tags: [transition-component]
`)

	tree, err := loadScene(path)
	if err != nil {
		t.Fatalf("loadScene: %v", err)
	}

	nodes := tree.NodesByTag("transition-component")
	if len(nodes) != 2 {
		t.Fatalf("expected 2 tagged nodes, got %d", len(nodes))
	}

	rect, ok := tree.Geometry("panel")
	if !ok {
		t.Fatal("panel geometry missing")
	}
	if rect.X != 10 || rect.Y != 20 || rect.Width != 300 || rect.Height != 150 {
		t.Fatalf("unexpected panel rect: %+v", rect)
	}

	props, ok := tree.ReadProperties("panel")
	if !ok || props["background"] != "#ffffff" {
		t.Fatalf("unexpected panel properties: %+v", props)
	}

	focusables := tree.FocusableNodes()
	if len(focusables) != 1 || focusables[0] != "panel" {
		t.Fatalf("unexpected focusables: %v", focusables)
	}
}

func TestLoadSceneRejectsEmptyAndInvalid(t *testing.T) {
	if _, err := loadScene(writeScene(t, "nodes: []")); err == nil {
		t.Fatal("expected error for empty scene")
	}
	if _, err := loadScene(writeScene(t, "nodes:\n  - tags: [a]")); err == nil {
		t.Fatal("expected error for node without id")
	}
	if _, err := loadScene(writeScene(t, "nodes: {broken")); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
	if _, err := loadScene(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
