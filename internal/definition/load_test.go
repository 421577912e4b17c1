package definition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const jsonDoc = `{
  "id": "brief",
  "description": "fetch and summarize",
  "inputSchema": {"type": "object", "properties": {"url": {"type": "string"}}},
  "steps": {
    "fetch": {
      "type": "tool",
      "toolId": "http_get",
      "input": {"url": {"$ref": "input.url"}}
    }
  },
  "stepGraph": [{"type": "step", "step": "fetch"}]
}`

const yamlDoc = `
id: brief
description: fetch and summarize
inputSchema:
  type: object
  properties:
    url:
      type: string
steps:
  fetch:
    type: tool
    toolId: http_get
    input:
      url:
        $ref: input.url
stepGraph:
  - type: step
    step: fetch
`

const tomlDoc = `
id = "brief"
description = "fetch and summarize"

[inputSchema]
type = "object"

[inputSchema.properties.url]
type = "string"

[steps.fetch]
type = "tool"
toolId = "http_get"

[steps.fetch.input.url]
"$ref" = "input.url"

[[stepGraph]]
type = "step"
step = "fetch"
`

func writeDef(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSameDocumentAcrossFormats(t *testing.T) {
	files := map[string]string{
		"brief.json": jsonDoc,
		"brief.yaml": yamlDoc,
		"brief.toml": tomlDoc,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			wf, err := Load(writeDef(t, name, content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if wf.ID != "brief" {
				t.Errorf("id = %q", wf.ID)
			}
			if wf.Source == "" {
				t.Error("Source should record the file path")
			}
			step, ok := wf.Steps["fetch"]
			if !ok {
				t.Fatalf("steps missing fetch: %+v", wf.Steps)
			}
			if step.Type != StepTool || step.ToolID != "http_get" {
				t.Errorf("step decoded wrong: %+v", step)
			}
			if !step.Input["url"].IsRef() || step.Input["url"].RefPath() != "input.url" {
				t.Errorf("input.url should be a reference, got %+v", step.Input["url"])
			}
			if len(wf.StepGraph) != 1 || wf.StepGraph[0].Type != EntryStep {
				t.Errorf("graph decoded wrong: %+v", wf.StepGraph)
			}
			if props, ok := wf.InputSchema["properties"].(map[string]any); !ok || props["url"] == nil {
				t.Errorf("inputSchema lost structure: %+v", wf.InputSchema)
			}
		})
	}
}

func TestLoadParseErrorIncludesPosition(t *testing.T) {
	path := writeDef(t, "bad.json", "{\n  \"id\": \"x\",\n  steps\n}")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}

	var list *ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("expected ErrorList, got %T", err)
	}
	item := list.Errors[0]
	if item.Code != ErrCodeParse {
		t.Errorf("code = %q", item.Code)
	}
	if item.Path != path {
		t.Errorf("path = %q, want %q", item.Path, path)
	}
	if item.Line != 3 {
		t.Errorf("line = %d, want 3", item.Line)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeDef(t, "wf.txt", "id = nope")
	if _, err := Load(path); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	writeFile("b.json", `{"id":"beta","steps":{},"stepGraph":[]}`)
	writeFile("a.yaml", "id: alpha\nsteps: {}\nstepGraph: []\n")
	writeFile("notes.md", "ignored")

	defs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].ID != "alpha" || defs[1].ID != "beta" {
		t.Errorf("expected id-sorted order, got %q, %q", defs[0].ID, defs[1].ID)
	}

	missing, err := LoadDir(filepath.Join(dir, "absent"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing dir should yield empty slice")
	}
}
