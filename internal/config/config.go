// Package config loads the global and per-file YAML configuration
// documents: a single tailshipper.yaml describing host identity, the
// message-bus broker list, and the HTTP node list, plus one files.d/*.yaml
// document per watched glob.
package config

// Global is the top-level tailshipper.yaml document.
type Global struct {
	HostIDCommand string `yaml:"host_id_command"`

	Bus struct {
		Brokers []string                      `yaml:"brokers"`
		Options map[string]string             `yaml:"options"`
		Topics  map[string]map[string]string  `yaml:"topics"`
	} `yaml:"bus"`

	HTTP struct {
		Nodes    []string `yaml:"nodes"`
		User     string   `yaml:"user"`
		Password string   `yaml:"password"`
		MaxConns int      `yaml:"max_conns"`
	} `yaml:"http"`

	OffsetStorePath   string `yaml:"offset_store_path"`
	FlushIntervalSecs int    `yaml:"flush_interval_secs"`
}

// Kind is the closed set of per-file pipeline selectors.
type Kind string

const (
	KindRaw       Kind = "raw"
	KindTransform Kind = "transform"
	KindGrep      Kind = "grep"
	KindFilter    Kind = "filter"
	KindAggregate Kind = "aggregate"
)

// FileConfig is one files.d/*.yaml document: a glob of paths sharing one
// pipeline and one sink.
type FileConfig struct {
	File string `yaml:"file,omitempty"` // doublestar glob

	// ContainerID, when set, selects a container's JSON log file via the
	// Docker API instead of a glob; File must be empty.
	ContainerID string `yaml:"container_id,omitempty"`

	Sink  string `yaml:"sink"` // "bus" or "http"
	Topic string `yaml:"topic,omitempty"`
	Index string `yaml:"index,omitempty"`

	WithHost  *bool `yaml:"withhost,omitempty"`
	WithTime  *bool `yaml:"withtime,omitempty"`
	AutoSplit *bool `yaml:"autosplit,omitempty"`
	TimeIdx   *int  `yaml:"timeidx,omitempty"`

	Filter    []int  `yaml:"filter,omitempty"`
	Transform string `yaml:"transform,omitempty"` // .lua script path
	Aggregate string `yaml:"aggregate,omitempty"` // .lua script path
	Grep      string `yaml:"grep,omitempty"`      // .lua script path
}

// Kind resolves this file's declared pipeline selector under the fixed
// precedence transform > aggregate/filter > grep > raw. Callers must run
// Validate first to reject ambiguous declarations.
func (f FileConfig) Kind() Kind {
	switch {
	case f.Transform != "":
		return KindTransform
	case f.Aggregate != "":
		return KindAggregate
	case len(f.Filter) > 0:
		return KindFilter
	case f.Grep != "":
		return KindGrep
	default:
		return KindRaw
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// ResolvedWithHost returns the effective withhost setting (default true).
func (f FileConfig) ResolvedWithHost() bool { return boolOr(f.WithHost, true) }

// ResolvedWithTime returns the effective withtime setting (default true).
func (f FileConfig) ResolvedWithTime() bool { return boolOr(f.WithTime, true) }

// ResolvedAutoSplit returns the effective autosplit setting (default
// true): whether grep/filter/aggregate tokenize the line before their
// callback or timeidx/filter logic runs, versus passing the whole line as
// a single token.
func (f FileConfig) ResolvedAutoSplit() bool { return boolOr(f.AutoSplit, true) }
