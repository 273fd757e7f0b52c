// Package app wires every component — tail watcher, transform pipelines,
// bus and HTTP senders, flow control, and the optional status dashboard —
// into one running process driven from a loaded configuration directory.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"tailshipper/internal/busout"
	"tailshipper/internal/config"
	"tailshipper/internal/dockerresolve"
	"tailshipper/internal/flowcontrol"
	"tailshipper/internal/httpsink"
	"tailshipper/internal/offsetstore"
	"tailshipper/internal/pipeline"
	"tailshipper/internal/record"
	"tailshipper/internal/script"
	"tailshipper/internal/tail"
	"tailshipper/internal/tui"
)

// requeueBackoff is how long the requeue loop waits before re-submitting a
// retriable bus delivery, so a persistently unreachable broker does not
// spin the bus sender's goroutine hot.
const requeueBackoff = 200 * time.Millisecond

// App owns every long-running component built from a loaded
// configuration directory.
type App struct {
	cfg *config.Document

	store      offsetstore.Store
	watcher    *tail.Watcher
	busSender  *busout.Sender
	httpSender *httpsink.Sender
	flowCtl    *flowcontrol.Controller
	producer   busout.Producer
	natsConn   *nats.Conn

	busIn   chan []record.Record
	requeue chan []record.Record
	records chan record.Record

	contexts []*tail.FileContext
	mu       sync.Mutex

	ShowTUI bool
}

// New builds an App from a validated configuration document. The bus and
// HTTP connections are established lazily in Run.
func New(cfg *config.Document) *App {
	return &App{cfg: cfg}
}

// Run starts every component and blocks until ctx is cancelled or a
// SIGUSR1 (terminal shutdown) / SIGUSR2 (graceful replacement) is
// received. Both signals drain cooperatively: in-flight work finishes its
// current iteration, aggregation caches flush, and offsets are committed
// before the offset store is closed.
func (a *App) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("app: shutdown signal received, draining")
			cancel()
		case <-ctx.Done():
		}
	}()

	hostID, err := resolveHostID(a.cfg.Global.HostIDCommand)
	if err != nil {
		return err
	}
	log.Info().Str("host_id", hostID).Msg("app: resolved host identity")

	a.store = offsetstore.NewFileStore(a.cfg.Global.OffsetStorePath, time.Duration(a.cfg.Global.FlushIntervalSecs)*time.Second)
	defer a.store.Close()

	var wg sync.WaitGroup

	if len(a.cfg.Global.Bus.Brokers) > 0 {
		if err := a.startBus(ctx, &wg); err != nil {
			return err
		}
		defer a.natsConn.Drain()
	}

	if len(a.cfg.Global.HTTP.Nodes) > 0 {
		a.httpSender = httpsink.NewSender(a.cfg.Global.HTTP.Nodes, a.cfg.Global.HTTP.MaxConns, a.store)
		wg.Add(1)
		go func() { defer wg.Done(); a.httpSender.Run(ctx) }()

		a.flowCtl = flowcontrol.NewController(a.httpSender, int64(a.cfg.Global.HTTP.MaxConns))
		wg.Add(1)
		go func() { defer wg.Done(); a.flowCtl.Run(ctx) }()
	}

	a.records = make(chan record.Record, 256)
	if err := a.buildFileContexts(hostID); err != nil {
		return err
	}

	a.watcher, err = tail.NewWatcher(a.records)
	if err != nil {
		return fmt.Errorf("app: new watcher: %w", err)
	}
	for _, fc := range a.contexts {
		if err := a.watcher.Add(fc); err != nil {
			return fmt.Errorf("app: watch %s: %w", fc.Path, err)
		}
	}

	wg.Add(1)
	go func() { defer wg.Done(); a.watcher.Run(ctx) }()

	wg.Add(1)
	go func() { defer wg.Done(); a.route(ctx) }()

	if a.ShowTUI {
		prog := tui.New(a)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := prog.Run(); err != nil {
				log.Error().Err(err).Msg("app: dashboard exited with error")
			}
			cancel()
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// route drains the watcher's output channel, sending each record to its
// configured sink, consulting flow control before an HTTP dispatch.
func (a *App) route(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-a.records:
			if !ok {
				return
			}
			switch rec.Sink {
			case record.SinkBus:
				select {
				case a.busIn <- []record.Record{rec}:
				case <-ctx.Done():
					return
				}
			case record.SinkHTTP:
				for a.flowCtl != nil && a.flowCtl.Blocked() {
					select {
					case <-time.After(10 * time.Millisecond):
					case <-ctx.Done():
						return
					}
				}
				a.httpSender.Dispatch(ctx, rec)
			}
		}
	}
}

// startBus connects to the configured message-bus brokers and starts the
// Bus Sender plus its requeue loop.
func (a *App) startBus(ctx context.Context, wg *sync.WaitGroup) error {
	var opts []nats.Option
	if user, ok := a.cfg.Global.Bus.Options["user"]; ok {
		opts = append(opts, nats.UserInfo(user, a.cfg.Global.Bus.Options["password"]))
	}
	if token, ok := a.cfg.Global.Bus.Options["token"]; ok {
		opts = append(opts, nats.Token(token))
	}
	// A unique client name distinguishes this process's connection in
	// broker-side monitoring when several tailshipper instances share a
	// broker.
	opts = append(opts, nats.Name("tailshipper-"+uuid.NewString()))

	nc, err := nats.Connect(strings.Join(a.cfg.Global.Bus.Brokers, ","), opts...)
	if err != nil {
		return fmt.Errorf("app: connect to bus: %w", err)
	}
	a.natsConn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("app: open jetstream context: %w", err)
	}
	a.producer = busout.NewJetStreamProducer(js)

	a.busIn = make(chan []record.Record, 256)
	a.requeue = make(chan []record.Record, 256)
	a.busSender = busout.NewSender(a.producer, a.store, a.busIn, a.requeue)

	wg.Add(1)
	go func() { defer wg.Done(); a.busSender.Run(ctx) }()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case group, ok := <-a.requeue:
				if !ok {
					return
				}
				select {
				case <-time.After(requeueBackoff):
				case <-ctx.Done():
					return
				}
				select {
				case a.busIn <- group:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

// buildFileContexts expands every configured glob and container ID into
// concrete FileContexts, each with its own transform pipeline and
// scripted-callback host.
func (a *App) buildFileContexts(hostID string) error {
	var resolver *dockerresolve.Resolver

	index := 0
	for _, fc := range a.cfg.Files {
		paths, err := a.resolvePaths(fc, &resolver)
		if err != nil {
			return err
		}
		for _, path := range paths {
			p, err := a.buildPipeline(fc, hostID)
			if err != nil {
				return err
			}
			fileCtx := tail.NewFileContext(index, path, a.store, p)
			fileCtx.HostID = hostID
			fileCtx.Sink = sinkFor(fc.Sink)
			fileCtx.Topic = fc.Topic
			if fc.Index != "" {
				fileCtx.IndexFn = buildIndexFn(fc.Index)
			}
			a.contexts = append(a.contexts, fileCtx)
			index++
		}
	}
	return nil
}

func (a *App) resolvePaths(fc config.FileConfig, resolver **dockerresolve.Resolver) ([]string, error) {
	if fc.ContainerID != "" {
		if *resolver == nil {
			r, err := dockerresolve.New()
			if err != nil {
				return nil, fmt.Errorf("app: %w", err)
			}
			*resolver = r
		}
		path, err := (*resolver).LogPath(context.Background(), fc.ContainerID)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return []string{path}, nil
	}
	return config.ResolvePaths(fc.File)
}

func sinkFor(kind string) record.Sink {
	if kind == "http" {
		return record.SinkHTTP
	}
	return record.SinkBus
}

// buildPipeline translates a files.d document into a pipeline.Config,
// loading the scripted-callback host its kind requires.
func (a *App) buildPipeline(fc config.FileConfig, hostID string) (*pipeline.Pipeline, error) {
	kind := pipeline.Kind(fc.Kind())

	var host script.Host
	switch kind {
	case pipeline.KindTransform:
		h, err := script.NewLuaHost(fc.Transform, script.KindTransform)
		if err != nil {
			return nil, err
		}
		host = h
	case pipeline.KindGrep:
		h, err := script.NewLuaHost(fc.Grep, script.KindGrep)
		if err != nil {
			return nil, err
		}
		host = h
	case pipeline.KindAggregate:
		h, err := script.NewLuaHost(fc.Aggregate, script.KindAggregate)
		if err != nil {
			return nil, err
		}
		host = h
	}

	return pipeline.New(pipeline.Config{
		Kind:            kind,
		Host:            host,
		TimeIdx:         fc.TimeIdx,
		FilterPositions: fc.Filter,
		AutoSplit:       fc.ResolvedAutoSplit(),
		WithHost:        fc.ResolvedWithHost(),
		WithTime:        fc.ResolvedWithTime(),
		HostID:          hostID,
	}), nil
}

// Snapshot implements tui.Snapshot, reporting each FileContext's path and
// current offset for the live dashboard. Lag and Backlog are not filled
// in and stay zero.
func (a *App) Snapshot() []tui.Row {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := make([]tui.Row, 0, len(a.contexts))
	for _, fc := range a.contexts {
		rows = append(rows, tui.Row{
			Path:   fc.Path,
			Offset: fc.Offset(),
		})
	}
	return rows
}
