// Package wire implements the Minecraft Classic / ClassiCube v7 binary
// protocol: a closed set of fixed-length, opcode-keyed packets.
package wire

// Opcode identifies a packet variant. Inbound and outbound opcodes share
// the same byte space but are interpreted in different directions.
type Opcode byte

// Inbound opcodes (client -> server).
const (
	OpAuth     Opcode = 0x00
	OpSetBlock Opcode = 0x05
	OpPosition Opcode = 0x08
	OpMessage  Opcode = 0x0d
)

// Outbound opcodes (server -> client). OpServerInfo and OpMsg share
// byte values with inbound opcodes by design (the original protocol is not
// symmetric) but Go types keep them distinct.
const (
	OpServerInfo    Opcode = 0x00
	OpLevelInit     Opcode = 0x02
	OpLevelChunk    Opcode = 0x03
	OpLevelFinalize Opcode = 0x04
	OpBlockUpdate   Opcode = 0x06
	OpSpawn         Opcode = 0x07
	OpDespawn       Opcode = 0x0c
	OpMsg           Opcode = 0x0d
	OpKick          Opcode = 0x0e
	OpUserType      Opcode = 0x0f
)

// ChunkDataLen is the fixed payload size of a LEVEL_CHUNK packet.
const ChunkDataLen = 1024

// Encoder is implemented by every outbound packet variant.
type Encoder interface {
	Encode() []byte
}

// inboundLen gives the full fixed byte length (including the opcode byte)
// for every inbound opcode the framer knows about.
var inboundLen = map[Opcode]int{
	OpAuth:     1 + 1 + StrLen + StrLen + 1,
	OpSetBlock: 1 + 2 + 2 + 2 + 1 + 1,
	OpPosition: 1 + 1 + 2 + 2 + 2 + 1 + 1,
	OpMessage:  1 + 1 + StrLen,
}
