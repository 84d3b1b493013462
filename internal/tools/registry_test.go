package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func echoDef(name string) Definition {
	return Definition{
		Name:        name,
		Description: "echoes its input",
		ArgumentSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"text": {"type": "string"}},
			"required": ["text"]
		}`),
		Invoke: func(_ context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			return in.Text, nil
		},
	}
}

func TestRegistry_SubsetHidesWithoutMutatingParent(t *testing.T) {
	root := New()
	if err := root.Register(echoDef("echo")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := root.Register(echoDef("spawn_subagent")); err != nil {
		t.Fatalf("register: %v", err)
	}

	child := root.Subset("spawn_subagent")

	if _, ok := child.Lookup("spawn_subagent"); ok {
		t.Fatal("subset view must hide spawn_subagent")
	}
	if _, ok := child.Lookup("echo"); !ok {
		t.Fatal("subset view must still expose echo")
	}
	if _, ok := root.Lookup("spawn_subagent"); !ok {
		t.Fatal("Subset must not mutate the parent registry")
	}
	if got := len(root.ListDefinitions()); got != 2 {
		t.Fatalf("parent ListDefinitions = %d, want 2", got)
	}
	if got := len(child.ListDefinitions()); got != 1 {
		t.Fatalf("child ListDefinitions = %d, want 1", got)
	}
}

func TestRegistry_SubsetComposesNesting(t *testing.T) {
	root := New()
	_ = root.Register(echoDef("a"))
	_ = root.Register(echoDef("b"))
	_ = root.Register(echoDef("c"))

	level1 := root.Subset("a")
	level2 := level1.Subset("b")

	for _, name := range []string{"a", "b"} {
		if _, ok := level2.Lookup(name); ok {
			t.Fatalf("nested subset still exposes %q", name)
		}
	}
	if _, ok := level2.Lookup("c"); !ok {
		t.Fatal("nested subset should still expose c")
	}
	if _, ok := level1.Lookup("b"); !ok {
		t.Fatal("excluding b in the child subset must not affect level1")
	}
}

func TestRegistry_ExecuteValidatesArguments(t *testing.T) {
	root := New()
	_ = root.Register(echoDef("echo"))

	if _, err := root.Execute(context.Background(), "echo", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected validation error for missing required field")
	}

	out, err := root.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "hi" {
		t.Fatalf("output = %q, want hi", out)
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	root := New()
	if _, err := root.Execute(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestRegistry_RegisterRejectsInvalidSchema(t *testing.T) {
	root := New()
	err := root.Register(Definition{
		Name:           "bad",
		ArgumentSchema: json.RawMessage(`{"type": "nonsense-type"}`),
		Invoke:         func(context.Context, json.RawMessage) (string, error) { return "", nil },
	})
	if err == nil {
		t.Fatal("expected error for invalid schema")
	}
}
