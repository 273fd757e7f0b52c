package script

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "callback.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLuaHost_Transform(t *testing.T) {
	path := writeScript(t, `
function transform(line)
  if line == "drop" then return nil end
  return { string.upper(line) }
end
`)
	h, err := NewLuaHost(path, KindTransform)
	if err != nil {
		t.Fatalf("NewLuaHost: %v", err)
	}
	defer h.Close()

	out, err := h.EvaluateLine(KindTransform, []string{"hello"})
	if err != nil {
		t.Fatalf("EvaluateLine: %v", err)
	}
	if len(out) != 1 || out[0] != "HELLO" {
		t.Fatalf("got %#v", out)
	}

	out, err = h.EvaluateLine(KindTransform, []string{"drop"})
	if err != nil {
		t.Fatalf("EvaluateLine: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output for dropped line, got %#v", out)
	}
}

func TestLuaHost_Grep(t *testing.T) {
	path := writeScript(t, `
function grep(fields)
  local out = {}
  for i, f in ipairs(fields) do
    if i == 1 or i == 3 then
      table.insert(out, f)
    end
  end
  return out
end
`)
	h, err := NewLuaHost(path, KindGrep)
	if err != nil {
		t.Fatalf("NewLuaHost: %v", err)
	}
	defer h.Close()

	out, err := h.EvaluateLine(KindGrep, []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("EvaluateLine: %v", err)
	}
	if len(out) != 2 || out[0] != "a" || out[1] != "c" {
		t.Fatalf("got %#v", out)
	}
}

func TestLuaHost_Aggregate(t *testing.T) {
	path := writeScript(t, `
function aggregate(fields)
  return fields[1], { hits = 1, bytes = tonumber(fields[2]) }
end
`)
	h, err := NewLuaHost(path, KindAggregate)
	if err != nil {
		t.Fatalf("NewLuaHost: %v", err)
	}
	defer h.Close()

	res, err := h.EvaluateAggregate([]string{"/api/login", "512"})
	if err != nil {
		t.Fatalf("EvaluateAggregate: %v", err)
	}
	if res.PrimaryKey != "/api/login" {
		t.Fatalf("PrimaryKey = %q", res.PrimaryKey)
	}
	if res.Deltas["hits"] != 1 || res.Deltas["bytes"] != 512 {
		t.Fatalf("Deltas = %#v", res.Deltas)
	}
}

func TestNewLuaHost_MissingFunction(t *testing.T) {
	path := writeScript(t, `-- no functions defined`)
	if _, err := NewLuaHost(path, KindTransform); err == nil {
		t.Fatal("expected error for missing global function")
	}
}
