package wire

// ServerInfo is SERVER_INFO, sent once right after a client authenticates.
type ServerInfo struct {
	Proto    byte
	Name     string
	Motd     string
	UserType byte
}

// Encode serializes SERVER_INFO including its opcode byte.
func (p ServerInfo) Encode() []byte {
	buf := make([]byte, 1+1+StrLen+StrLen+1)
	buf[0] = byte(OpServerInfo)
	buf[1] = p.Proto
	PutString(buf[2:2+StrLen], p.Name)
	PutString(buf[2+StrLen:2+2*StrLen], p.Motd)
	buf[2+2*StrLen] = p.UserType
	return buf
}

// LevelInit is LEVEL_INIT, the start-of-map-transfer marker.
type LevelInit struct{}

// Encode serializes LEVEL_INIT including its opcode byte.
func (LevelInit) Encode() []byte {
	return []byte{byte(OpLevelInit)}
}

// LevelChunk is one LEVEL_CHUNK fragment of a gzip-compressed map stream.
type LevelChunk struct {
	Len  int16
	Data [ChunkDataLen]byte
	Pct  byte
}

// Encode serializes LEVEL_CHUNK including its opcode byte.
func (p LevelChunk) Encode() []byte {
	buf := make([]byte, 1+2+ChunkDataLen+1)
	buf[0] = byte(OpLevelChunk)
	putI16(buf[1:3], p.Len)
	copy(buf[3:3+ChunkDataLen], p.Data[:])
	buf[3+ChunkDataLen] = p.Pct
	return buf
}

// LevelFinalize is LEVEL_FINAL, ending the map transfer with final dimensions.
type LevelFinalize struct {
	X, Y, Z int16
}

// Encode serializes LEVEL_FINAL including its opcode byte.
func (p LevelFinalize) Encode() []byte {
	buf := make([]byte, 1+2+2+2)
	buf[0] = byte(OpLevelFinalize)
	putI16(buf[1:3], p.X)
	putI16(buf[3:5], p.Y)
	putI16(buf[5:7], p.Z)
	return buf
}

// BlockUpdate is the server's SET_BLOCK (0x06) broadcast of a changed cell.
type BlockUpdate struct {
	X, Y, Z int16
	Type    byte
}

// Encode serializes a server SET_BLOCK including its opcode byte.
func (p BlockUpdate) Encode() []byte {
	buf := make([]byte, 1+2+2+2+1)
	buf[0] = byte(OpBlockUpdate)
	putI16(buf[1:3], p.X)
	putI16(buf[3:5], p.Y)
	putI16(buf[5:7], p.Z)
	buf[7] = p.Type
	return buf
}

// Spawn is SPAWN, introducing a player entity (pid=-1 means "you").
type Spawn struct {
	PID        int8
	Name       string
	X, Y, Z    int16
	Yaw, Pitch byte
}

// Encode serializes SPAWN including its opcode byte.
func (p Spawn) Encode() []byte {
	buf := make([]byte, 1+1+StrLen+2+2+2+1+1)
	buf[0] = byte(OpSpawn)
	buf[1] = byte(p.PID)
	PutString(buf[2:2+StrLen], p.Name)
	off := 2 + StrLen
	putI16(buf[off:off+2], p.X)
	putI16(buf[off+2:off+4], p.Y)
	putI16(buf[off+4:off+6], p.Z)
	buf[off+6] = p.Yaw
	buf[off+7] = p.Pitch
	return buf
}

// Despawn is DESPAWN, removing a player entity.
type Despawn struct {
	PID int8
}

// Encode serializes DESPAWN including its opcode byte.
func (p Despawn) Encode() []byte {
	return []byte{byte(OpDespawn), byte(p.PID)}
}

// Msg is the server's MSG (0x0d) chat line, attributed to a pid.
type Msg struct {
	PID  int8
	Text string
}

// Encode serializes MSG including its opcode byte.
func (p Msg) Encode() []byte {
	buf := make([]byte, 1+1+StrLen)
	buf[0] = byte(OpMsg)
	buf[1] = byte(p.PID)
	PutString(buf[2:2+StrLen], p.Text)
	return buf
}

// Kick is KICK, terminating the connection with a reason.
type Kick struct {
	Reason string
}

// Encode serializes KICK including its opcode byte.
func (p Kick) Encode() []byte {
	buf := make([]byte, 1+StrLen)
	buf[0] = byte(OpKick)
	PutString(buf[1:1+StrLen], p.Reason)
	return buf
}

// UserType is USER_TYPE, updating a client's own operator flag.
type UserType struct {
	UserType byte
}

// Encode serializes USER_TYPE including its opcode byte.
func (p UserType) Encode() []byte {
	return []byte{byte(OpUserType), p.UserType}
}
