package wire

// The Decode* helpers below invert the Encode methods in outbound.go.
// They exist for round-trip testing; the server never needs to decode its
// own output in production.

// DecodeServerInfo inverts ServerInfo.Encode, body excludes the opcode byte.
func DecodeServerInfo(body []byte) ServerInfo {
	return ServerInfo{
		Proto:    body[0],
		Name:     GetString(body[1 : 1+StrLen]),
		Motd:     GetString(body[1+StrLen : 1+2*StrLen]),
		UserType: body[1+2*StrLen],
	}
}

// DecodeLevelFinalize inverts LevelFinalize.Encode.
func DecodeLevelFinalize(body []byte) LevelFinalize {
	return LevelFinalize{X: i16(body[0:2]), Y: i16(body[2:4]), Z: i16(body[4:6])}
}

// DecodeBlockUpdate inverts BlockUpdate.Encode.
func DecodeBlockUpdate(body []byte) BlockUpdate {
	return BlockUpdate{X: i16(body[0:2]), Y: i16(body[2:4]), Z: i16(body[4:6]), Type: body[6]}
}

// DecodeSpawn inverts Spawn.Encode.
func DecodeSpawn(body []byte) Spawn {
	off := 1 + StrLen
	return Spawn{
		PID:   int8(body[0]),
		Name:  GetString(body[1:off]),
		X:     i16(body[off : off+2]),
		Y:     i16(body[off+2 : off+4]),
		Z:     i16(body[off+4 : off+6]),
		Yaw:   body[off+6],
		Pitch: body[off+7],
	}
}

// DecodeDespawn inverts Despawn.Encode.
func DecodeDespawn(body []byte) Despawn {
	return Despawn{PID: int8(body[0])}
}

// DecodeMsg inverts Msg.Encode.
func DecodeMsg(body []byte) Msg {
	return Msg{PID: int8(body[0]), Text: GetString(body[1 : 1+StrLen])}
}

// DecodeKick inverts Kick.Encode.
func DecodeKick(body []byte) Kick {
	return Kick{Reason: GetString(body[:StrLen])}
}

// DecodeUserType inverts UserType.Encode.
func DecodeUserType(body []byte) UserType {
	return UserType{UserType: body[0]}
}
