package config

import "fmt"

// Validate checks the global document for the settings every component
// depends on at startup.
func (g *Global) Validate() error {
	if g.HostIDCommand == "" {
		return fmt.Errorf("host_id_command is required")
	}
	if len(g.Bus.Brokers) == 0 && len(g.HTTP.Nodes) == 0 {
		return fmt.Errorf("at least one bus broker or http node is required")
	}
	if g.OffsetStorePath == "" {
		return fmt.Errorf("offset_store_path is required")
	}
	if g.FlushIntervalSecs <= 0 {
		return fmt.Errorf("flush_interval_secs must be positive")
	}
	return nil
}

// Validate checks a single files.d document: exactly one of its glob or
// container ID and a valid sink must be set, it may declare at most one
// of transform/aggregate/filter/grep, and an aggregate pipeline requires
// a time index to key on.
func (f *FileConfig) Validate() error {
	if f.File == "" && f.ContainerID == "" {
		return fmt.Errorf("one of file or container_id is required")
	}
	if f.File != "" && f.ContainerID != "" {
		return fmt.Errorf("at most one of file or container_id may be set")
	}

	switch f.Sink {
	case "bus", "http":
	default:
		return fmt.Errorf("sink must be 'bus' or 'http', got %q", f.Sink)
	}

	declared := 0
	if f.Transform != "" {
		declared++
	}
	if f.Aggregate != "" {
		declared++
	}
	if len(f.Filter) > 0 {
		declared++
	}
	if f.Grep != "" {
		declared++
	}
	if declared > 1 {
		return fmt.Errorf("file %q: at most one of transform/aggregate/filter/grep may be set", f.File)
	}

	if f.Aggregate != "" && f.TimeIdx == nil {
		return fmt.Errorf("file %q: aggregate pipeline requires timeidx", f.File)
	}

	return nil
}

// Validate checks the whole document: the global section plus every file
// entry, including cross-references from http sinks to a configured node
// list.
func (d *Document) Validate() error {
	if err := d.Global.Validate(); err != nil {
		return fmt.Errorf("global: %w", err)
	}
	if len(d.Files) == 0 {
		return fmt.Errorf("at least one files.d entry is required")
	}
	for i := range d.Files {
		if err := d.Files[i].Validate(); err != nil {
			return err
		}
		f := &d.Files[i]
		if f.Sink == "bus" && f.Topic == "" {
			return fmt.Errorf("file %q: bus sink requires topic", f.File)
		}
		if f.Sink == "http" && f.Index == "" {
			return fmt.Errorf("file %q: http sink requires index", f.File)
		}
		if f.Sink == "bus" && len(d.Global.Bus.Brokers) == 0 {
			return fmt.Errorf("file %q: bus sink configured but no bus brokers set", f.File)
		}
		if f.Sink == "http" && len(d.Global.HTTP.Nodes) == 0 {
			return fmt.Errorf("file %q: http sink configured but no http nodes set", f.File)
		}
	}
	return nil
}
