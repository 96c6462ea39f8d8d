package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gocraftd/gocraftd/internal/auth"
	"github.com/gocraftd/gocraftd/internal/command"
	"github.com/gocraftd/gocraftd/internal/events"
	"github.com/gocraftd/gocraftd/internal/logging"
	"github.com/gocraftd/gocraftd/internal/wire"
	"github.com/gocraftd/gocraftd/internal/world"
)

type noOperators struct{}

func (noOperators) IsOperator(name string) bool { return false }

func newTestServer(t *testing.T, maxUsers int) (*Server, net.Listener) {
	t.Helper()

	gate := auth.New("testsalt", false, maxUsers, net.ParseIP("127.0.0.1"), noOperators{})
	bus := events.New(logging.Nop())
	srv := New(Config{Name: "test server", Motd: "test motd"}, gate, bus, command.DefaultHandler{}, logging.Nop())

	w := world.New("default", 32, 32, 32)
	srv.AddWorld(w)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx, ln)

	return srv, ln
}

// bodyLen gives the fixed body length (excluding opcode) of every outbound
// opcode this test cares about.
func bodyLen(op wire.Opcode) int {
	switch op {
	case wire.OpServerInfo:
		return 1 + wire.StrLen + wire.StrLen + 1
	case wire.OpLevelInit:
		return 0
	case wire.OpLevelChunk:
		return 2 + wire.ChunkDataLen + 1
	case wire.OpLevelFinalize:
		return 6
	case wire.OpBlockUpdate:
		return 7
	case wire.OpSpawn:
		return 1 + wire.StrLen + 2 + 2 + 2 + 1 + 1
	case wire.OpDespawn:
		return 1
	case wire.OpMsg:
		return 1 + wire.StrLen
	case wire.OpKick:
		return wire.StrLen
	case wire.OpUserType:
		return 1
	default:
		return -1
	}
}

// readOutbound reads exactly one outbound packet from conn.
func readOutbound(t *testing.T, conn net.Conn) (wire.Opcode, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var opByte [1]byte
	if _, err := io.ReadFull(conn, opByte[:]); err != nil {
		t.Fatalf("read opcode: %v", err)
	}
	op := wire.Opcode(opByte[0])

	n := bodyLen(op)
	if n < 0 {
		t.Fatalf("unexpected outbound opcode %#x", opByte[0])
	}
	body := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(conn, body); err != nil {
			t.Fatalf("read body for opcode %#x: %v", opByte[0], err)
		}
	}
	return op, body
}

func authPacket(name, key string) []byte {
	return wire.Auth{Proto: 7, Name: name, Key: key}.Encode()
}

func TestAuthFlowAttachesToDefaultWorldAndSpawns(t *testing.T) {
	_, ln := newTestServer(t, 8)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(authPacket("Notch", "")); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	op, body := readOutbound(t, conn)
	if op != wire.OpServerInfo {
		t.Fatalf("first packet opcode = %#x, want SERVER_INFO", op)
	}
	info := wire.DecodeServerInfo(body)
	if info.Name != "test server" {
		t.Fatalf("ServerInfo.Name = %q, want %q", info.Name, "test server")
	}

	op, _ = readOutbound(t, conn)
	if op != wire.OpLevelInit {
		t.Fatalf("second packet opcode = %#x, want LEVEL_INIT", op)
	}

	// Drain LEVEL_CHUNK fragments until LEVEL_FINAL.
	for {
		op, body = readOutbound(t, conn)
		if op == wire.OpLevelFinalize {
			fin := wire.DecodeLevelFinalize(body)
			if fin.X != 32 || fin.Y != 32 || fin.Z != 32 {
				t.Fatalf("LevelFinalize = %+v, want 32x32x32", fin)
			}
			break
		}
		if op != wire.OpLevelChunk {
			t.Fatalf("unexpected opcode %#x while draining map", op)
		}
	}

	op, body = readOutbound(t, conn)
	if op != wire.OpSpawn {
		t.Fatalf("packet after LEVEL_FINAL = %#x, want SPAWN", op)
	}
	self := wire.DecodeSpawn(body)
	if self.PID != -1 || self.Name != "Notch" {
		t.Fatalf("self SPAWN = %+v, want pid=-1 name=Notch", self)
	}

	// Two welcome lines, then the join announcement, as wrapped MSG packets.
	op, body = readOutbound(t, conn)
	if op != wire.OpMsg {
		t.Fatalf("welcome line opcode = %#x, want MSG", op)
	}
	msg := wire.DecodeMsg(body)
	if msg.Text == "" {
		t.Fatal("expected a non-empty welcome line")
	}
}

func TestNonAuthOpcodeBeforeAuthDropsSilently(t *testing.T) {
	_, ln := newTestServer(t, 8)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// SET_BLOCK is a recognized opcode but not AUTH; an unauthenticated
	// session sending it must be dropped without a KICK packet.
	pkt := wire.SetBlock{X: 1, Y: 1, Z: 1, Mode: 0, Type: 0}.Encode()
	if _, err := conn.Write(pkt); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	if n != 0 || err != io.EOF {
		t.Fatalf("expected silent close (EOF, 0 bytes), got n=%d err=%v", n, err)
	}
}

func TestGhostReplacementKicksPriorSession(t *testing.T) {
	_, ln := newTestServer(t, 8)

	first, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer first.Close()
	if _, err := first.Write(authPacket("Dupe", "")); err != nil {
		t.Fatalf("write auth 1: %v", err)
	}
	// Drain the first session's join sequence up to and including LEVEL_FINAL.
	for {
		op, _ := readOutbound(t, first)
		if op == wire.OpLevelFinalize {
			break
		}
	}

	second, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer second.Close()
	if _, err := second.Write(authPacket("Dupe", "")); err != nil {
		t.Fatalf("write auth 2: %v", err)
	}

	// The first connection should receive a KICK for being replaced.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	found := false
	for i := 0; i < 200 && !found; i++ {
		op, body := readOutbound(t, first)
		if op == wire.OpKick {
			kick := wire.DecodeKick(body)
			if kick.Reason != auth.ReasonGhost {
				t.Fatalf("Kick.Reason = %q, want %q", kick.Reason, auth.ReasonGhost)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("first session was never kicked for ghost replacement")
	}
}

func TestServerFullKicksNewSession(t *testing.T) {
	_, ln := newTestServer(t, 1)

	first, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer first.Close()
	if _, err := first.Write(authPacket("First", "")); err != nil {
		t.Fatalf("write auth 1: %v", err)
	}
	for {
		op, _ := readOutbound(t, first)
		if op == wire.OpLevelFinalize {
			break
		}
	}

	second, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer second.Close()
	if _, err := second.Write(authPacket("Second", "")); err != nil {
		t.Fatalf("write auth 2: %v", err)
	}

	op, body := readOutbound(t, second)
	if op != wire.OpKick {
		t.Fatalf("opcode = %#x, want KICK", op)
	}
	kick := wire.DecodeKick(body)
	if kick.Reason != auth.ReasonServerFull {
		t.Fatalf("Kick.Reason = %q, want %q", kick.Reason, auth.ReasonServerFull)
	}
}

func TestNoDefaultWorldKicksWithInternalError(t *testing.T) {
	gate := auth.New("testsalt", false, 8, net.ParseIP("127.0.0.1"), noOperators{})
	bus := events.New(logging.Nop())
	srv := New(Config{Name: "test server", Motd: "motd"}, gate, bus, command.DefaultHandler{}, logging.Nop())
	// Deliberately no "default" world registered.

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(authPacket("Notch", "")); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	op, body := readOutbound(t, conn)
	if op != wire.OpKick {
		t.Fatalf("opcode = %#x, want KICK", op)
	}
	kick := wire.DecodeKick(body)
	if kick.Reason != reasonNoDefaultWorld {
		t.Fatalf("Kick.Reason = %q, want %q", kick.Reason, reasonNoDefaultWorld)
	}
}

func TestOnAuthVetoSuppressesDefaultJoin(t *testing.T) {
	gate := auth.New("testsalt", false, 8, net.ParseIP("127.0.0.1"), noOperators{})
	bus := events.New(logging.Nop())
	bus.Register(events.OnAuth, "veto", func(sess events.SessionRef, p events.Payload, b *events.Bus) {
		b.SetFlag("NoDefaultCall", true)
	})
	srv := New(Config{Name: "test server", Motd: "motd"}, gate, bus, command.DefaultHandler{}, logging.Nop())
	srv.AddWorld(world.New("default", 32, 32, 32))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(authPacket("Notch", "")); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	buf := make([]byte, 1)
	if n, err := conn.Read(buf); err == nil || n != 0 {
		t.Fatalf("expected no packets after a vetoed auth, got n=%d err=%v", n, err)
	}
}

func TestKickByNameViaBackend(t *testing.T) {
	srv, ln := newTestServer(t, 8)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(authPacket("Target", "")); err != nil {
		t.Fatalf("write auth: %v", err)
	}
	for {
		op, _ := readOutbound(t, conn)
		if op == wire.OpLevelFinalize {
			break
		}
	}

	if err := srv.KickByName("Target", "banned"); err != nil {
		t.Fatalf("KickByName: %v", err)
	}

	found := false
	for i := 0; i < 50 && !found; i++ {
		op, body := readOutbound(t, conn)
		if op == wire.OpKick {
			kick := wire.DecodeKick(body)
			if kick.Reason != "banned" {
				t.Fatalf("Kick.Reason = %q, want %q", kick.Reason, "banned")
			}
			found = true
		}
	}
	if !found {
		t.Fatal("KickByName never produced a KICK packet")
	}
}

func TestHandshakeReadDeadlineDoesNotBreakAuth(t *testing.T) {
	// Guards against a framer regression where a short read deadline on a
	// fast loopback connection could truncate the AUTH packet across ticks;
	// Session.Poll must accumulate across calls, not require one full read.
	_, ln := newTestServer(t, 8)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	pkt := authPacket("Slow", "")
	// Write byte by byte to force the framer to see the packet arrive over
	// several ticks.
	for _, b := range pkt {
		if _, err := conn.Write([]byte{b}); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	op, _ := readOutbound(t, conn)
	if op != wire.OpServerInfo {
		t.Fatalf("opcode = %#x, want SERVER_INFO", op)
	}
}
