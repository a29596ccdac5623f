// hublink - client core for the local Hub: event streaming, library sync,
// and AI-index management for companion clients.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jeranaias/hublink/internal/config"
	"github.com/jeranaias/hublink/internal/hub"
	"github.com/jeranaias/hublink/internal/library"
	"github.com/jeranaias/hublink/internal/model"
	"github.com/jeranaias/hublink/internal/router"
	"github.com/jeranaias/hublink/internal/search"
	"github.com/jeranaias/hublink/internal/store"
	"github.com/jeranaias/hublink/internal/stream"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file path (default ~/.hublink/config.toml)")
	hubURL := flag.String("hub", "", "hub base URL override")
	flag.Usage = usage
	flag.Parse()

	path := *configPath
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatal(err)
	}
	if *hubURL != "" {
		cfg.Hub.BaseURL = *hubURL
	}

	app, err := newApp(cfg)
	if err != nil {
		fatal(err)
	}
	app.cfgPath = path
	defer app.Close()

	args := flag.Args()
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "run":
		err = app.Run()
	case "note":
		err = app.AddNote(args)
	case "push":
		err = app.Push(args)
	case "delete":
		err = app.Delete(args)
	case "index":
		err = app.Index(args)
	case "unindex":
		err = app.Unindex(args)
	case "search":
		err = app.Search(args)
	case "stats":
		err = app.PrintStats()
	case "validate":
		err = app.ValidateToken()
	case "version":
		fmt.Printf("hublink %s (%s)\n", Version, GitCommit)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: hublink [flags] <command>

Commands:
  run        connect to the Hub event stream (default)
  note       capture a note: hublink note <content>
  push       sync an item: hublink push <kind> <id>
  delete     remove an item locally: hublink delete <kind> <id>
  index      request AI indexing: hublink index <kind> <id>
  unindex    remove AI indexing: hublink unindex <kind> <id>
  search     search the local library: hublink search <query>
  stats      show per-status item counts
  validate   check the configured token against the Hub
  version    print version

Flags:
`)
	flag.PrintDefaults()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// =============================================================================
// COMPOSITION ROOT
// =============================================================================

// app owns the explicitly constructed service instances and their
// lifecycle. Nothing here is a package-level singleton.
type app struct {
	cfg     *config.Config
	cfgPath string
	store   *store.Store
	index   *search.Index
	hub     *hub.Client
	manager *library.Manager
	stream  *stream.Client
	router  *router.Router
}

// streamConfig maps the loaded configuration onto the stream client.
func streamConfig(cfg *config.Config) stream.Config {
	return stream.Config{
		BaseURL:          cfg.Hub.BaseURL,
		Token:            cfg.Hub.Token,
		BaseDelay:        cfg.BaseDelay(),
		BackoffFactor:    cfg.Stream.BackoffFactor,
		MaxAttempts:      cfg.Stream.MaxAttempts,
		HeartbeatTimeout: cfg.HeartbeatTimeout(),
	}
}

func newApp(cfg *config.Config) (*app, error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}

	st, err := store.OpenDir(filepath.Join(dataDir, "library"))
	if err != nil {
		return nil, err
	}

	idx, err := search.Open(filepath.Join(dataDir, "search.db"))
	if err != nil {
		return nil, err
	}

	hc := hub.NewClient(cfg.Hub.BaseURL).
		WithToken(cfg.Hub.Token).
		WithTimeout(cfg.RequestTimeout())

	mgr := library.NewManager(st, hc).WithProjectID(cfg.Hub.ProjectID)

	sc := stream.NewClient(streamConfig(cfg))

	rt := router.New(router.Handlers{
		OnChunk: func(sessionID, messageID, partial string) {
			fmt.Printf("\r[%s] %s", shortID(messageID), partial)
		},
		OnComplete: func(sessionID, messageID, content string) {
			fmt.Printf("\r[%s] %s\n", shortID(messageID), content)
		},
		OnChatStarted: func(sessionID string) {
			fmt.Printf("-- another client started a turn in session %s\n", sessionID)
		},
		OnSessionSync: func(sessionID string, messages []model.SessionMessage) {
			fmt.Printf("-- session %s history: %d messages\n", sessionID, len(messages))
		},
		OnContentIngested: func() {
			fmt.Println("-- hub ingested new content")
		},
		OnStatus: func(clients int) {
			fmt.Printf("-- hub reports %d connected clients\n", clients)
		},
		OnError: func(msg string) {
			fmt.Fprintf(os.Stderr, "-- hub error: %s\n", msg)
		},
		OnConnectionLost: func(reason string) {
			fmt.Fprintf(os.Stderr, "-- %s\n", reason)
		},
	})

	return &app{
		cfg:     cfg,
		store:   st,
		index:   idx,
		hub:     hc,
		manager: mgr,
		stream:  sc,
		router:  rt,
	}, nil
}

// Close disposes the services in reverse construction order.
func (a *app) Close() {
	a.stream.Disconnect()
	a.index.Close()
}

// =============================================================================
// COMMANDS
// =============================================================================

// Run connects to the event stream and dispatches events until
// interrupted. While running, the config file is watched; edits to the Hub
// address, token, or stream tuning apply without a restart.
func (a *app) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reloads := make(chan *config.Config, 1)
	if a.cfgPath != "" {
		go func() {
			err := config.Watch(ctx, a.cfgPath, func(cfg *config.Config) {
				select {
				case reloads <- cfg:
				default:
				}
			})
			if err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "-- config watch stopped: %v\n", err)
			}
		}()
	}

	a.stream.Connect()
	fmt.Printf("hublink connected to %s (ctrl-c to quit)\n", a.cfg.Hub.BaseURL)

	for {
		select {
		case <-ctx.Done():
			a.stream.Disconnect()
			return nil
		case cfg := <-reloads:
			a.applyConfig(cfg)
		case s := <-a.stream.States():
			fmt.Printf("-- connection: %s\n", s)
			if s != stream.StateConnected {
				// Message ids are connection-scoped; never resume a
				// half-assembled reply on a new connection.
				a.router.Reset()
			}
		case ev := <-a.stream.Events():
			a.router.Dispatch(ev)
		}
	}
}

// applyConfig swaps a reloaded configuration into the live services. Hub
// and stream settings take effect by rebuilding those clients; storage
// paths are fixed for the life of the process.
func (a *app) applyConfig(cfg *config.Config) {
	old := a.cfg
	a.cfg = cfg

	if old.Hub == cfg.Hub && old.Stream == cfg.Stream {
		return
	}

	a.hub = hub.NewClient(cfg.Hub.BaseURL).
		WithToken(cfg.Hub.Token).
		WithTimeout(cfg.RequestTimeout())
	a.manager = library.NewManager(a.store, a.hub).WithProjectID(cfg.Hub.ProjectID)

	fmt.Printf("-- config reloaded, reconnecting to %s\n", cfg.Hub.BaseURL)
	a.stream.Disconnect()
	a.router.Reset()
	a.stream = stream.NewClient(streamConfig(cfg))
	a.stream.Connect()
}

// AddNote captures a note into the local store and search index.
func (a *app) AddNote(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: hublink note <content>")
	}
	it, err := a.store.Add(model.KindNote, model.Payload{Content: args[0]})
	if err != nil {
		return err
	}
	if err := a.index.Put(it); err != nil {
		return err
	}
	fmt.Printf("captured note %s (status: %s)\n", it.ID, it.SyncStatus)
	return nil
}

// Push syncs one item to the Hub.
func (a *app) Push(args []string) error {
	kind, id, err := kindAndID(args, "push")
	if err != nil {
		return err
	}
	it, err := a.manager.PushItem(context.Background(), kind, id, "")
	if err != nil {
		return err
	}
	fmt.Printf("%s: sync=%s hub_file_id=%s\n", it.ID, it.SyncStatus, it.HubFileID)
	return nil
}

// Delete removes an item from the local store and search index. Deletion
// is local-only; content already ingested by the Hub stays there.
func (a *app) Delete(args []string) error {
	kind, id, err := kindAndID(args, "delete")
	if err != nil {
		return err
	}
	ok, err := a.store.Delete(kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no %s with id %s", kind, id)
	}
	if err := a.index.Remove(id); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", id)
	return nil
}

// Index requests AI indexing for a synced item.
func (a *app) Index(args []string) error {
	kind, id, err := kindAndID(args, "index")
	if err != nil {
		return err
	}
	it, err := a.manager.RequestIndexing(context.Background(), kind, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s: rag=%s\n", it.ID, it.RAGStatus)
	return nil
}

// Unindex removes an item from the Hub's retrieval index.
func (a *app) Unindex(args []string) error {
	kind, id, err := kindAndID(args, "unindex")
	if err != nil {
		return err
	}
	it, err := a.manager.RemoveIndexing(context.Background(), kind, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s: rag=%s\n", it.ID, it.RAGStatus)
	return nil
}

// Search queries the local library index.
func (a *app) Search(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: hublink search <query>")
	}
	hits, err := a.index.Search(args[0], 20)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, h := range hits {
		title := h.Title
		if title == "" {
			title = h.Snippet
		}
		fmt.Printf("%-10s %s  %s\n", h.Kind, h.ID, title)
	}
	return nil
}

// PrintStats shows per-status counts across the library.
func (a *app) PrintStats() error {
	st, err := a.manager.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("items: %d\n", st.Total)
	for _, s := range []model.SyncStatus{model.SyncLocal, model.SyncPending, model.SyncSynced, model.SyncFailed} {
		if n := st.BySync[s]; n > 0 {
			fmt.Printf("  sync %-8s %d\n", s, n)
		}
	}
	for _, s := range []model.RAGStatus{model.RAGNone, model.RAGPending, model.RAGIndexed, model.RAGFailed} {
		if n := st.ByRAG[s]; n > 0 {
			fmt.Printf("  rag  %-8s %d\n", s, n)
		}
	}
	if !st.LastSync.IsZero() {
		fmt.Printf("last sync: %s\n", st.LastSync.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// ValidateToken checks the configured token against the Hub.
func (a *app) ValidateToken() error {
	valid, err := a.hub.ValidateToken(context.Background())
	if err != nil {
		return err
	}
	if !valid {
		fmt.Println("token invalid: hublink needs reconfiguration")
		os.Exit(1)
	}
	fmt.Println("token valid")
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func kindAndID(args []string, cmd string) (model.Kind, string, error) {
	if len(args) < 2 {
		return "", "", fmt.Errorf("usage: hublink %s <kind> <id>", cmd)
	}
	kind := model.Kind(args[0])
	if !kind.Valid() {
		return "", "", fmt.Errorf("unknown kind %q (want highlight|clip|note|page)", args[0])
	}
	return kind, args[1], nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
