// Package server implements the accept/poll/dispatch event loop described
// by spec.md §4.4: a single cooperative goroutine that owns every session
// and world, ticking at a fixed cadence, never blocking on I/O for longer
// than one non-blocking socket call.
package server

import (
	"context"
	"net"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gocraftd/gocraftd/internal/auth"
	"github.com/gocraftd/gocraftd/internal/command"
	"github.com/gocraftd/gocraftd/internal/events"
	"github.com/gocraftd/gocraftd/internal/events/plugin"
	"github.com/gocraftd/gocraftd/internal/session"
	"github.com/gocraftd/gocraftd/internal/world"
)

// tickInterval enforces the 20 Hz minimum cadence of spec.md §4.4.
const tickInterval = 50 * time.Millisecond

// protoVersion is the Classic v7 protocol byte sent in SERVER_INFO.
const protoVersion = 7

// Config bundles process-wide settings the loop needs that belong to no
// one subsystem.
type Config struct {
	Name string
	Motd string
}

// Server owns every session and world touched by the loop. Every field is
// mutated only from the goroutine running Run, except cmdCh: the plugin
// listener's accept goroutines submit closures there instead of touching
// sessions or worlds directly, per the concurrency model in SPEC_FULL.md §5.
type Server struct {
	log zerolog.Logger
	cfg Config

	worlds   map[string]*world.World
	sessions []*session.Session

	gate *auth.Gate
	bus  *events.Bus
	cmd  command.Handler

	pluginListener *plugin.Listener
	forwarded      map[events.Type]bool

	cmdCh chan func()
}

// New builds an idle Server. Call AddWorld at least once for "default"
// before Run, then Run on its own goroutine.
func New(cfg Config, gate *auth.Gate, bus *events.Bus, cmd command.Handler, log zerolog.Logger) *Server {
	return &Server{
		log:       log,
		cfg:       cfg,
		worlds:    make(map[string]*world.World),
		gate:      gate,
		bus:       bus,
		cmd:       cmd,
		forwarded: make(map[events.Type]bool),
		cmdCh:     make(chan func(), 64),
	}
}

// AddWorld registers w under w.Name, replacing any world already
// registered under that name.
func (s *Server) AddWorld(w *world.World) {
	s.worlds[w.Name] = w
}

// World returns the world registered under name, if any.
func (s *Server) World(name string) (*world.World, bool) {
	w, ok := s.worlds[name]
	return w, ok
}

// WorldNames returns every registered world name, sorted.
func (s *Server) WorldNames() []string {
	names := make([]string, 0, len(s.worlds))
	for name := range s.worlds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetPluginListener attaches the transport used to forward bus events to
// connected plugin processes. Safe to call before Run only.
func (s *Server) SetPluginListener(l *plugin.Listener) {
	s.pluginListener = l
}

// Run drives the loop until ctx is cancelled or ln.Accept fails terminally.
// Accepting happens on a dedicated goroutine feeding a channel so the tick
// loop itself never blocks in Accept; every other socket operation inside
// a tick is already non-blocking via Session.Poll/Drain's short deadlines.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	acceptCh := make(chan net.Conn)
	errCh := make(chan error, 1)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case acceptCh <- conn:
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.tick(acceptCh)
		}
	}
}

func (s *Server) tick(acceptCh <-chan net.Conn) {
	s.drainCommands()

	for _, w := range s.worlds {
		w.Tick()
	}

	select {
	case conn := <-acceptCh:
		sess := session.New(conn)
		s.sessions = append(s.sessions, sess)
		s.log.Debug().Str("remote", sess.RemoteAddr()).Msg("server: accepted connection")
	default:
	}

	for _, sess := range s.sessions {
		if !sess.Active {
			continue
		}
		s.pollOne(sess)
		sess.Drain()
	}

	s.reap()
}
