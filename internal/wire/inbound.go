package wire

import "encoding/binary"

// Auth is the CAUTH login packet.
type Auth struct {
	Proto byte
	Name  string
	Key   string
}

// SetBlock is the CBLOCK packet: a client requesting a block change.
type SetBlock struct {
	X, Y, Z int16
	Mode    byte // 0 = destroy, 1 = create
	Type    byte
}

// Position is the CPOS packet: a client's current pose.
type Position struct {
	PID        int8 // always -1 (self) on the wire from a client
	X, Y, Z    int16
	Yaw, Pitch byte
}

// Message is the CMSG packet: a chat line or command string.
type Message struct {
	Text string
}

func i16(b []byte) int16 { return int16(binary.BigEndian.Uint16(b)) }

func putI16(b []byte, v int16) { binary.BigEndian.PutUint16(b, uint16(v)) }

// Encode serializes a CAUTH packet including its opcode byte.
func (p Auth) Encode() []byte {
	buf := make([]byte, inboundLen[OpAuth])
	buf[0] = byte(OpAuth)
	buf[1] = p.Proto
	PutString(buf[2:2+StrLen], p.Name)
	PutString(buf[2+StrLen:2+2*StrLen], p.Key)
	// trailing pad byte left at zero
	return buf
}

// Encode serializes a CBLOCK packet including its opcode byte.
func (p SetBlock) Encode() []byte {
	buf := make([]byte, inboundLen[OpSetBlock])
	buf[0] = byte(OpSetBlock)
	putI16(buf[1:3], p.X)
	putI16(buf[3:5], p.Y)
	putI16(buf[5:7], p.Z)
	buf[7] = p.Mode
	buf[8] = p.Type
	return buf
}

// Encode serializes a CPOS packet including its opcode byte.
func (p Position) Encode() []byte {
	buf := make([]byte, inboundLen[OpPosition])
	buf[0] = byte(OpPosition)
	buf[1] = byte(p.PID)
	putI16(buf[2:4], p.X)
	putI16(buf[4:6], p.Y)
	putI16(buf[6:8], p.Z)
	buf[8] = p.Yaw
	buf[9] = p.Pitch
	return buf
}

// Encode serializes a CMSG packet including its opcode byte.
func (p Message) Encode() []byte {
	buf := make([]byte, inboundLen[OpMessage])
	buf[0] = byte(OpMessage)
	// buf[1] is the unused byte
	PutString(buf[2:2+StrLen], p.Text)
	return buf
}

// DecodeAuth decodes a CAUTH payload. body excludes the opcode byte and is
// exactly inboundLen[OpAuth]-1 bytes.
func DecodeAuth(body []byte) Auth {
	return Auth{
		Proto: body[0],
		Name:  GetString(body[1 : 1+StrLen]),
		Key:   GetString(body[1+StrLen : 1+2*StrLen]),
	}
}

// DecodeSetBlock decodes a CBLOCK payload.
func DecodeSetBlock(body []byte) SetBlock {
	return SetBlock{
		X:    i16(body[0:2]),
		Y:    i16(body[2:4]),
		Z:    i16(body[4:6]),
		Mode: body[6],
		Type: body[7],
	}
}

// DecodePosition decodes a CPOS payload.
func DecodePosition(body []byte) Position {
	return Position{
		PID:   int8(body[0]),
		X:     i16(body[1:3]),
		Y:     i16(body[3:5]),
		Z:     i16(body[5:7]),
		Yaw:   body[7],
		Pitch: body[8],
	}
}

// DecodeMessage decodes a CMSG payload.
func DecodeMessage(body []byte) Message {
	return Message{Text: GetString(body[1 : 1+StrLen])}
}
