package server

import (
	"strings"
	"time"

	"github.com/gocraftd/gocraftd/internal/auth"
	"github.com/gocraftd/gocraftd/internal/command"
	"github.com/gocraftd/gocraftd/internal/events"
	"github.com/gocraftd/gocraftd/internal/session"
	"github.com/gocraftd/gocraftd/internal/wire"
)

const (
	reasonNoDefaultWorld = "Server error: no default world"
	reasonWorldFull      = "Server error: world full"

	commandMute = time.Second
)

// pollOne performs one poll, then drains and dispatches every fully framed
// packet currently sitting in the session's receive buffer, per spec.md
// §4.4 step 4: a single connection's inbound packets are handled strictly
// in arrival order within one tick.
func (s *Server) pollOne(sess *session.Session) {
	switch sess.Poll() {
	case session.PollDisconnected:
		sess.Active = false
		return
	case session.PollWouldBlock:
		return
	}

	for sess.RecvCount() > 0 {
		frame, n, err := wire.Decode(sess.RecvBuf())
		if err == wire.ErrNeedMore {
			return
		}
		if err == wire.ErrMalformed {
			s.log.Debug().Str("remote", sess.RemoteAddr()).Msg("server: unknown opcode, kicking")
			s.kick(sess, auth.ReasonUnknownOpcode)
			return
		}
		sess.Consume(n)
		s.dispatch(sess, frame)
		if !sess.Active {
			return
		}
	}
}

func (s *Server) dispatch(sess *session.Session, frame wire.Frame) {
	if !sess.Authed {
		s.dispatchUnauthed(sess, frame)
		return
	}
	switch frame.Opcode {
	case wire.OpSetBlock:
		s.onBlock(sess, frame.Block)
	case wire.OpPosition:
		s.onPosition(sess, frame.Pos)
	case wire.OpMessage:
		s.onMessage(sess, frame.Msg)
	}
}

// dispatchUnauthed implements the auth gate's opcode policy from spec.md
// §4.5: anything but AUTH from an unauthenticated session is a silent drop.
func (s *Server) dispatchUnauthed(sess *session.Session, frame wire.Frame) {
	if frame.Opcode != wire.OpAuth {
		s.log.Debug().Str("remote", sess.RemoteAddr()).Msg("server: dropped unauthorized client")
		sess.Active = false
		return
	}
	s.onAuth(sess, frame.Auth)
}

// onAuth implements spec.md §4.5 end to end: key verification, the OnAuth
// veto hook, ghost replacement, the population cap, and attachment to the
// "default" world.
func (s *Server) onAuth(sess *session.Session, pkt wire.Auth) {
	name := pkt.Name

	if s.gate.Verify(sess.RemoteAddr(), name, pkt.Key) == auth.VerifyBadKey {
		s.kick(sess, auth.ReasonInvalidKey)
		return
	}

	s.bus.Trigger(events.OnAuth, sess, events.Payload{"name": name, "key": pkt.Key})
	if s.bus.GetFlag("NoDefaultCall") {
		return
	}

	ghost, admitted := s.gate.Admit(name, sess)
	if ghost != nil {
		s.kick(ghost, auth.ReasonGhost)
	}
	if !admitted {
		s.kick(sess, auth.ReasonServerFull)
		return
	}

	sess.Name = name
	sess.Authed = true
	if s.gate.Operators.IsOperator(name) {
		sess.UserType = session.UserTypeOperator
	}

	def, ok := s.worlds["default"]
	if !ok {
		s.gate.Remove(name, sess)
		s.kick(sess, reasonNoDefaultWorld)
		return
	}

	sess.EnqueuePacket(wire.ServerInfo{
		Proto:    protoVersion,
		Name:     s.cfg.Name,
		Motd:     s.cfg.Motd,
		UserType: byte(sess.UserType),
	})

	if err := def.AddClient(sess); err != nil {
		s.gate.Remove(name, sess)
		s.kick(sess, reasonWorldFull)
		return
	}

	s.sendWrapped(sess, "Welcome to "+s.cfg.Name)
	s.sendWrapped(sess, "&eType /help to get started.")

	s.broadcastAll("&e" + name + " joined the game")
}

// onMessage mirrors original_source's Server::OnMessage: mute check,
// command-vs-chat routing, %-to-& color rewriting, then the OnMessage
// event, fired unconditionally once the packet has been read regardless of
// whether the default handling ran.
func (s *Server) onMessage(sess *session.Session, pkt wire.Message) {
	text := strings.TrimRight(pkt.Text, " ")

	if text != "" && !sess.IsChatMuted() {
		if text[0] == '/' {
			sess.SetChatMute(commandMute)
			cmd := command.Rewrite(text[1:])
			s.cmd.Handle(&commandSender{sess: sess, srv: s}, cmd)
		} else {
			line := sess.ChatName() + "&f: " + rewriteColorCodes(text)
			s.broadcastChatFrom(sess, line)
		}
	}

	s.bus.Trigger(events.OnMessage, sess, events.Payload{"text": text})
}

// rewriteColorCodes rewrites ClassicalSharp-style %X color codes to the
// wire's native &X form, for 0-9 and a-f.
func rewriteColorCodes(s string) string {
	b := []byte(s)
	for i := 0; i < len(b)-1; i++ {
		if b[i] != '%' {
			continue
		}
		c := b[i+1]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			b[i] = '&'
		}
	}
	return string(b)
}

func (s *Server) onBlock(sess *session.Session, pkt wire.SetBlock) {
	w, ok := s.worlds[sess.WorldName]
	if !ok {
		return
	}
	w.OnBlock(sess, pkt)
	s.bus.Trigger(events.OnBlock, sess, events.Payload{
		"x": pkt.X, "y": pkt.Y, "z": pkt.Z, "mode": pkt.Mode, "type": pkt.Type,
	})
}

func (s *Server) onPosition(sess *session.Session, pkt wire.Position) {
	w, ok := s.worlds[sess.WorldName]
	if !ok {
		return
	}
	w.OnPosition(sess, pkt)
	s.bus.Trigger(events.OnPosition, sess, events.Payload{
		"x": pkt.X, "y": pkt.Y, "z": pkt.Z, "yaw": pkt.Yaw, "pitch": pkt.Pitch,
	})
}

// kick enqueues KICK(reason) and marks the session inactive; the current
// tick's unconditional drain (or, failing that, reap's final drain) flushes
// it before the connection is closed.
func (s *Server) kick(sess *session.Session, reason string) {
	sess.EnqueuePacket(wire.Kick{Reason: reason})
	sess.Active = false
}

// reap implements spec.md §4.4 step 5: destroy every inactive session,
// notifying its world and the auth gate first so DESPAWN and the leave
// line precede the close, per the ordering guarantee in spec.md §5(iii).
func (s *Server) reap() {
	live := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.Active {
			live = append(live, sess)
			continue
		}

		sess.Drain()

		if sess.Authed {
			if w, ok := s.worlds[sess.WorldName]; ok {
				w.RemoveClient(sess.PID)
			}
			s.gate.Remove(sess.Name, sess)
			s.broadcastAll("&e" + sess.Name + " left the game")
		}

		sess.Close()
	}
	s.sessions = live
}

// splitWrapped breaks text into str64-sized fragments, restoring
// original_source's SendWrappedMessage for any logical line longer than
// the wire's 64-byte MSG field.
func splitWrapped(text string) []string {
	if len(text) <= wire.StrLen {
		return []string{text}
	}
	parts := make([]string, 0, len(text)/wire.StrLen+1)
	for len(text) > 0 {
		n := len(text)
		if n > wire.StrLen {
			n = wire.StrLen
		}
		parts = append(parts, text[:n])
		text = text[n:]
	}
	return parts
}

func (s *Server) sendWrapped(sess *session.Session, text string) {
	for _, part := range splitWrapped(text) {
		sess.EnqueuePacket(wire.Msg{PID: -1, Text: part})
	}
}

// broadcastChatFrom wraps and sends a line attributed to sess's pid to
// every member of sess's own world.
func (s *Server) broadcastChatFrom(sess *session.Session, line string) {
	w, ok := s.worlds[sess.WorldName]
	if !ok {
		return
	}
	for _, part := range splitWrapped(line) {
		w.Broadcast(wire.Msg{PID: sess.PID, Text: part})
	}
}

// broadcastAll wraps and sends a system line (pid=-1) to every currently
// authenticated session, regardless of world.
func (s *Server) broadcastAll(text string) {
	for _, part := range splitWrapped(text) {
		msg := wire.Msg{PID: -1, Text: part}
		for _, sess := range s.sessions {
			if sess.Authed {
				sess.EnqueuePacket(msg)
			}
		}
	}
}
