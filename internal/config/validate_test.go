package config

import "testing"

func validDoc() *Document {
	d := &Document{
		Global: Global{
			HostIDCommand:     "hostname",
			OffsetStorePath:   "/tmp/offsets",
			FlushIntervalSecs: 5,
		},
	}
	d.Global.Bus.Brokers = []string{"nats://127.0.0.1:4222"}
	d.Files = []FileConfig{{File: "/var/log/*.log", Sink: "bus", Topic: "t"}}
	return d
}

func TestDocument_Validate_OK(t *testing.T) {
	if err := validDoc().Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestDocument_Validate_RejectsAmbiguousPipeline(t *testing.T) {
	d := validDoc()
	d.Files[0].Transform = "t.lua"
	d.Files[0].Grep = "g.lua"
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for transform+grep both set")
	}
}

func TestDocument_Validate_AggregateRequiresTimeIdx(t *testing.T) {
	d := validDoc()
	d.Files[0].Aggregate = "agg.lua"
	if err := d.Validate(); err == nil {
		t.Fatal("expected error: aggregate without timeidx")
	}
	idx := 2
	d.Files[0].TimeIdx = &idx
	if err := d.Validate(); err != nil {
		t.Fatalf("expected valid once timeidx is set, got %v", err)
	}
}

func TestDocument_Validate_BusSinkRequiresTopic(t *testing.T) {
	d := validDoc()
	d.Files[0].Topic = ""
	if err := d.Validate(); err == nil {
		t.Fatal("expected error: bus sink without topic")
	}
}

func TestDocument_Validate_HTTPSinkRequiresNodes(t *testing.T) {
	d := validDoc()
	d.Files[0].Sink = "http"
	d.Files[0].Index = "logs-%Y.%m.%d"
	if err := d.Validate(); err == nil {
		t.Fatal("expected error: http sink configured but no http nodes")
	}
	d.Global.HTTP.Nodes = []string{"10.0.0.1:8080"}
	if err := d.Validate(); err != nil {
		t.Fatalf("expected valid once nodes set, got %v", err)
	}
}

func TestFileConfig_Kind_Precedence(t *testing.T) {
	f := FileConfig{Transform: "t.lua", Aggregate: "a.lua", Filter: []int{1}, Grep: "g.lua"}
	if f.Kind() != KindTransform {
		t.Fatalf("Kind = %v, want transform precedence", f.Kind())
	}
}
