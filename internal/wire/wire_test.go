package wire

import (
	"bytes"
	"testing"
)

func TestStringPadding(t *testing.T) {
	buf := make([]byte, StrLen)
	PutString(buf, "bob")
	if buf[0] != 'b' || buf[1] != 'o' || buf[2] != 'b' {
		t.Fatalf("PutString did not write the prefix: %q", buf[:3])
	}
	for i := 3; i < StrLen; i++ {
		if buf[i] != ' ' {
			t.Fatalf("byte %d = %q, want space padding", i, buf[i])
		}
	}
	if got := GetString(buf); got != "bob" {
		t.Fatalf("GetString() = %q, want %q", got, "bob")
	}
}

func TestStringTruncation(t *testing.T) {
	buf := make([]byte, StrLen)
	long := bytes.Repeat([]byte("x"), StrLen+10)
	PutString(buf, string(long))
	if len(buf) != StrLen {
		t.Fatalf("buffer length changed: %d", len(buf))
	}
	for _, b := range buf {
		if b != 'x' {
			t.Fatalf("expected no padding in a full field, got %q", buf)
		}
	}
}

func TestInboundRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		enc  []byte
		op   Opcode
	}{
		{"auth", Auth{Proto: 7, Name: "alice", Key: "deadbeef"}.Encode(), OpAuth},
		{"setblock", SetBlock{X: 1, Y: -2, Z: 3, Mode: 1, Type: 4}.Encode(), OpSetBlock},
		{"position", Position{PID: -1, X: 10, Y: 20, Z: 30, Yaw: 1, Pitch: 2}.Encode(), OpPosition},
		{"message", Message{Text: "hello"}.Encode(), OpMessage},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frame, n, err := Decode(c.enc)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if n != len(c.enc) {
				t.Fatalf("consumed %d, want %d", n, len(c.enc))
			}
			if frame.Opcode != c.op {
				t.Fatalf("opcode = %x, want %x", frame.Opcode, c.op)
			}

			var reenc []byte
			switch c.op {
			case OpAuth:
				reenc = frame.Auth.Encode()
			case OpSetBlock:
				reenc = frame.Block.Encode()
			case OpPosition:
				reenc = frame.Pos.Encode()
			case OpMessage:
				reenc = frame.Msg.Encode()
			}
			if !bytes.Equal(reenc, c.enc) {
				t.Fatalf("re-encode mismatch:\n got  %v\n want %v", reenc, c.enc)
			}
		})
	}
}

func TestDecodeNeedMore(t *testing.T) {
	full := SetBlock{X: 1, Y: 2, Z: 3, Mode: 1, Type: 9}.Encode()
	for i := 0; i < len(full); i++ {
		partial := full[:i]
		_, n, err := Decode(partial)
		if err != ErrNeedMore {
			t.Fatalf("len %d: err = %v, want ErrNeedMore", i, err)
		}
		if n != 0 {
			t.Fatalf("len %d: n = %d, want 0", i, n)
		}
	}
}

func TestDecodeUnknownOpcodeIsMalformed(t *testing.T) {
	buf := []byte{0xff, 1, 2, 3, 4, 5, 6, 7, 8}
	_, _, err := Decode(buf)
	if err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestDecodeAdvancesFullLengthOnFramedRead(t *testing.T) {
	// Two SET_BLOCK frames back to back; decoding the first must consume
	// exactly its fixed length regardless of whether its payload is
	// semantically valid, so the second frame stays aligned.
	one := SetBlock{X: 1, Y: 1, Z: 1, Mode: 9, Type: 9}.Encode() // Mode=9 is not a valid mode
	two := SetBlock{X: 2, Y: 2, Z: 2, Mode: 0, Type: 0}.Encode()
	buf := append(append([]byte{}, one...), two...)

	_, n1, err := Decode(buf)
	if err != nil {
		t.Fatalf("first Decode: %v", err)
	}
	if n1 != len(one) {
		t.Fatalf("first consumed %d, want %d", n1, len(one))
	}

	frame2, n2, err := Decode(buf[n1:])
	if err != nil {
		t.Fatalf("second Decode: %v", err)
	}
	if n2 != len(two) || frame2.Block.X != 2 {
		t.Fatalf("second frame misaligned: n=%d block=%+v", n2, frame2.Block)
	}
}

func TestOutboundLengths(t *testing.T) {
	cases := []struct {
		name string
		enc  []byte
		want int
	}{
		{"ServerInfo", ServerInfo{}.Encode(), 1 + 1 + StrLen + StrLen + 1},
		{"LevelInit", LevelInit{}.Encode(), 1},
		{"LevelChunk", LevelChunk{}.Encode(), 1 + 2 + ChunkDataLen + 1},
		{"LevelFinalize", LevelFinalize{}.Encode(), 1 + 2 + 2 + 2},
		{"BlockUpdate", BlockUpdate{}.Encode(), 1 + 2 + 2 + 2 + 1},
		{"Spawn", Spawn{}.Encode(), 1 + 1 + StrLen + 2 + 2 + 2 + 1 + 1},
		{"Despawn", Despawn{}.Encode(), 2},
		{"Msg", Msg{}.Encode(), 1 + 1 + StrLen},
		{"Kick", Kick{}.Encode(), 1 + StrLen},
		{"UserType", UserType{}.Encode(), 2},
	}
	for _, c := range cases {
		if len(c.enc) != c.want {
			t.Errorf("%s: len = %d, want %d", c.name, len(c.enc), c.want)
		}
	}
}

func TestOutboundRoundTrip(t *testing.T) {
	spawn := Spawn{PID: 5, Name: "bob", X: 1, Y: 2, Z: 3, Yaw: 4, Pitch: 5}
	got := DecodeSpawn(spawn.Encode()[1:])
	if got != spawn {
		t.Fatalf("Spawn round trip: got %+v, want %+v", got, spawn)
	}

	kick := Kick{Reason: "Invalid key"}
	if got := DecodeKick(kick.Encode()[1:]); got != kick {
		t.Fatalf("Kick round trip: got %+v, want %+v", got, kick)
	}
}
