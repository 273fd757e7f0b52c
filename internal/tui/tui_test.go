package tui

import "testing"

type fakeSnapshot struct {
	rows []Row
}

func (f fakeSnapshot) Snapshot() []Row { return f.rows }

func TestRenderRows(t *testing.T) {
	rows := renderRows([]Row{
		{Path: "/var/log/app.log", Offset: 120, Lag: 4, Backlog: 2},
	})
	if len(rows) != 1 {
		t.Fatalf("len = %d, want 1", len(rows))
	}
	if rows[0][0] != "/var/log/app.log" || rows[0][1] != "120" {
		t.Fatalf("unexpected row: %v", rows[0])
	}
}

func TestModel_UpdateOnTick(t *testing.T) {
	src := fakeSnapshot{rows: []Row{{Path: "/a.log", Offset: 1}}}
	m := newModel(src)
	next, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Fatal("expected a re-tick command")
	}
	nm := next.(model)
	if len(nm.table.Rows()) != 1 {
		t.Fatalf("rows = %d, want 1", len(nm.table.Rows()))
	}
}
