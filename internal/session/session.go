// Package session implements the per-connection client state: the receive
// buffer, outbound queue, and identity fields threaded through the rest of
// the server.
package session

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gocraftd/gocraftd/internal/wire"
)

// recvBufSize is generously larger than the largest fixed packet (AUTH, at
// 131 bytes); the buffer is allocated once at this size and never grows.
const recvBufSize = 4096

// UserType mirrors the wire byte for a player's privilege level.
type UserType byte

const (
	UserTypeNormal   UserType = 0x00
	UserTypeOperator UserType = 0x64
)

// PollResult is the outcome of one non-blocking read attempt.
type PollResult int

const (
	PollOK PollResult = iota
	PollWouldBlock
	PollDisconnected
)

// Session owns one client's TCP stream, receive buffer and outbound FIFO.
// Only the server loop goroutine ever calls Poll/Drain/observes Active; the
// outbound queue may be appended to from any goroutine (the loop itself,
// world broadcast, or a plugin RPC handler), hence the mutex around it.
type Session struct {
	conn       net.Conn
	remoteAddr string

	recvBuf   []byte
	recvCount int

	outMu sync.Mutex
	out   [][]byte

	Active bool
	Authed bool

	PID       int8
	Name      string
	UserType  UserType
	WorldName string

	muteUntil time.Time

	// X, Y, Z, Yaw, Pitch cache the last POS packet's pose for snapshotting
	// into SPAWN packets sent to newcomers.
	X, Y, Z    int16
	Yaw, Pitch byte
}

// New wraps an accepted connection in an unauthenticated, active session.
func New(conn net.Conn) *Session {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return &Session{
		conn:       conn,
		remoteAddr: host,
		recvBuf:    make([]byte, recvBufSize),
		Active:     true,
		PID:        -1,
	}
}

// RemoteAddr returns the client's IP address without the port.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// Poll performs one non-blocking read into the tail of the receive buffer.
func (s *Session) Poll() PollResult {
	s.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	n, err := s.conn.Read(s.recvBuf[s.recvCount:])
	if n > 0 {
		s.recvCount += n
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			if n > 0 {
				return PollOK
			}
			return PollWouldBlock
		}
		if errors.Is(err, io.EOF) {
			return PollDisconnected
		}
		return PollDisconnected
	}
	if n == 0 {
		return PollWouldBlock
	}
	return PollOK
}

// RecvCount reports how many unconsumed bytes are sitting in the receive
// buffer.
func (s *Session) RecvCount() int { return s.recvCount }

// RecvBuf exposes the unconsumed prefix of the receive buffer for framing.
func (s *Session) RecvBuf() []byte { return s.recvBuf[:s.recvCount] }

// Consume drops the first n bytes of the receive buffer, shifting the rest
// down. Called after a successful Decode.
func (s *Session) Consume(n int) {
	copy(s.recvBuf, s.recvBuf[n:s.recvCount])
	s.recvCount -= n
}

// Enqueue appends an already-encoded frame to the outbound FIFO. Never
// blocks.
func (s *Session) Enqueue(frame []byte) {
	s.outMu.Lock()
	s.out = append(s.out, frame)
	s.outMu.Unlock()
}

// EnqueuePacket encodes p and enqueues it.
func (s *Session) EnqueuePacket(p wire.Encoder) {
	s.Enqueue(p.Encode())
}

// Drain writes as much of the outbound FIFO as the socket will accept
// without blocking. Partially written frames retain their remainder at the
// front of the queue for the next call.
func (s *Session) Drain() error {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	for len(s.out) > 0 {
		frame := s.out[0]
		s.conn.SetWriteDeadline(time.Now().Add(time.Millisecond))
		n, err := s.conn.Write(frame)
		if n > 0 && n < len(frame) {
			s.out[0] = frame[n:]
			return nil
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			return err
		}
		s.out = s.out[1:]
	}
	return nil
}

// Close releases the underlying connection. Safe to call once the server
// loop has observed Active == false.
func (s *Session) Close() error {
	return s.conn.Close()
}

// SetChatMute mutes chat for the given duration from now.
func (s *Session) SetChatMute(d time.Duration) {
	s.muteUntil = time.Now().Add(d)
}

// IsChatMuted reports whether the mute deadline has not yet passed.
func (s *Session) IsChatMuted() bool {
	return time.Now().Before(s.muteUntil)
}

// ChatName is the display name used in broadcast chat lines: operators get
// a distinct color prefix, matching the original source's OnMessage.
func (s *Session) ChatName() string {
	if s.UserType == UserTypeOperator {
		return "&e" + s.Name
	}
	return "&7" + s.Name
}

// IsOperator reports whether the session holds the operator user type.
func (s *Session) IsOperator() bool {
	return s.UserType == UserTypeOperator
}
