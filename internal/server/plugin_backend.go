package server

import (
	"fmt"
	"strings"

	"github.com/gocraftd/gocraftd/internal/events"
)

// submit marshals fn onto the loop goroutine via cmdCh and blocks until it
// has run. Called from the plugin listener's accept goroutines so the
// Backend methods below never touch sessions, worlds or the event bus from
// any goroutine but the loop's own, per SPEC_FULL.md §5.
func (s *Server) submit(fn func()) {
	done := make(chan struct{})
	s.cmdCh <- func() {
		fn()
		close(done)
	}
	<-done
}

// drainCommands runs every closure currently queued on cmdCh. Called once
// per tick, before world ticking, so a plugin call submitted mid-tick never
// waits more than one tick to execute.
func (s *Server) drainCommands() {
	for {
		select {
		case fn := <-s.cmdCh:
			fn()
		default:
			return
		}
	}
}

func parseEventType(name string) (events.Type, bool) {
	switch name {
	case "OnPluginLoaded":
		return events.OnPluginLoaded, true
	case "OnAuth":
		return events.OnAuth, true
	case "OnMessage":
		return events.OnMessage, true
	case "OnPosition":
		return events.OnPosition, true
	case "OnBlock":
		return events.OnBlock, true
	default:
		return 0, false
	}
}

// RegisterEvent ensures the bus has a forwarding handler for eventType that
// pushes every future occurrence out to connected plugins via FireEvent.
// One forwarding handler per event type suffices regardless of how many
// plugins asked for it, mirroring the teacher's RangeSession broadcast to
// every connected game client rather than a per-subscriber fanout list.
func (s *Server) RegisterEvent(eventType, pluginName string) error {
	typ, ok := parseEventType(eventType)
	if !ok {
		return fmt.Errorf("server: unknown event type %q", eventType)
	}
	s.submit(func() {
		if s.forwarded[typ] {
			return
		}
		s.forwarded[typ] = true
		s.bus.Register(typ, "plugin-forward", func(sess events.SessionRef, payload events.Payload, bus *events.Bus) {
			if s.pluginListener != nil {
				s.pluginListener.FireEvent(typ.String(), payload)
			}
		})
	})
	return nil
}

// TriggerEvent lets a plugin replay an event through the bus for test or
// inspection purposes, as described in SPEC_FULL.md §4.6. The replayed
// event carries no session.
func (s *Server) TriggerEvent(eventType string, payload map[string]interface{}) error {
	typ, ok := parseEventType(eventType)
	if !ok {
		return fmt.Errorf("server: unknown event type %q", eventType)
	}
	s.submit(func() {
		s.bus.Trigger(typ, nil, events.Payload(payload))
	})
	return nil
}

func (s *Server) SetFlag(name string, value bool) error {
	s.submit(func() { s.bus.SetFlag(name, value) })
	return nil
}

func (s *Server) GetFlag(name string) (bool, error) {
	var v bool
	s.submit(func() { v = s.bus.GetFlag(name) })
	return v, nil
}

// Broadcast sends message to every authenticated session as a system line,
// prefixed to distinguish it from ordinary player chat.
func (s *Server) Broadcast(message string) error {
	s.submit(func() { s.broadcastAll("&e[Plugin]: " + message) })
	return nil
}

func (s *Server) GetWorldNames() ([]string, error) {
	var names []string
	s.submit(func() { names = s.WorldNames() })
	return names, nil
}

// KickByName kicks the authenticated session with the given
// case-insensitive name, if any.
func (s *Server) KickByName(name, reason string) error {
	var found bool
	s.submit(func() {
		for _, sess := range s.sessions {
			if sess.Authed && strings.EqualFold(sess.Name, name) {
				s.kick(sess, reason)
				found = true
				return
			}
		}
	})
	if !found {
		return fmt.Errorf("server: no authenticated session named %q", name)
	}
	return nil
}

// NotifyPluginLoaded fires OnPluginLoaded on the bus, per the supplemented
// feature in SPEC_FULL.md §10.
func (s *Server) NotifyPluginLoaded(connID int32, remoteAddr string) {
	s.submit(func() {
		s.bus.Trigger(events.OnPluginLoaded, nil, events.Payload{"name": remoteAddr, "connId": connID})
	})
}
