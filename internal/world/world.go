// Package world implements per-world map state, player roster, and the
// block/position update fan-out described by the server's core protocol.
package world

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"sort"
	"time"

	"github.com/gocraftd/gocraftd/internal/session"
	"github.com/gocraftd/gocraftd/internal/wire"
)

// MaxPlayers is the highest player id a world can hand out; ids are drawn
// from [0, MaxPlayers].
const MaxPlayers = 127

// fallbackBlockType is substituted for any block id the vanilla protocol
// does not define, so a non-vanilla client can never desync its peers.
const fallbackBlockType = 1 // stone

// maxVanillaBlockType is the highest block id vanilla Classic v7 defines.
const maxVanillaBlockType = 49

// Store persists a world's map bytes. Implementations live outside this
// package (internal/store); the on-disk layout is not part of the wire
// protocol and is deliberately not specified here.
type Store interface {
	Load(world string) (blocks []byte, ok bool, err error)
	SaveAsync(world string, blocks []byte)
}

// Options mirrors the [Options] section of a world's config file.
type Options struct {
	Autosave bool
	Build    bool
	Autoload bool
}

// World owns one voxel map and the roster of sessions currently inside it.
type World struct {
	Name    string
	Map     *Map
	Spawn   Position
	Options Options
	Active  bool

	roster map[int8]*session.Session

	store        Store
	lastAutosave time.Time
}

// Position is a fixed-point (1/32 block) coordinate plus orientation.
type Position struct {
	X, Y, Z    int16
	Yaw, Pitch byte
}

// New creates an empty world with a flat fallback map; call SetStore and
// Load to attach persistence.
func New(name string, x, y, z int16) *World {
	return &World{
		Name:   name,
		Map:    NewFlatMap(x, y, z),
		Spawn:  Position{X: x / 2 * 32, Y: y / 2 * 32, Z: z / 2 * 32},
		roster: make(map[int8]*session.Session),
	}
}

// SetStore attaches a persistence backend. Must be called before Load.
func (w *World) SetStore(s Store) { w.store = s }

// Load replaces the in-memory map with the persisted copy, if any, leaving
// the flat fallback in place when none exists.
func (w *World) Load() error {
	if w.store == nil {
		return nil
	}
	blocks, ok, err := w.store.Load(w.Name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return w.Map.LoadBytes(blocks)
}

// freePID returns the lowest unused player id, or -1 if the roster is full.
func (w *World) freePID() int8 {
	for pid := 0; pid <= MaxPlayers; pid++ {
		if _, taken := w.roster[int8(pid)]; !taken {
			return int8(pid)
		}
	}
	return -1
}

// ErrWorldFull is returned by AddClient when the roster already holds
// MaxPlayers+1 members.
var ErrWorldFull = fmt.Errorf("world: roster full (max %d players)", MaxPlayers+1)

// AddClient allocates a pid, adds sess to the roster, streams the
// compressed map (LEVEL_INIT, LEVEL_CHUNKs, LEVEL_FINAL), sends sess its
// own SPAWN with pid -1, then exchanges SPAWN packets between sess and
// every existing member in pid order.
func (w *World) AddClient(sess *session.Session) error {
	pid := w.freePID()
	if pid < 0 {
		return ErrWorldFull
	}

	sess.PID = pid
	sess.WorldName = w.Name
	sess.X, sess.Y, sess.Z = w.Spawn.X, w.Spawn.Y, w.Spawn.Z
	sess.Yaw, sess.Pitch = w.Spawn.Yaw, w.Spawn.Pitch

	if err := w.sendLevel(sess); err != nil {
		return err
	}

	sess.EnqueuePacket(wire.Spawn{
		PID: -1, Name: sess.Name,
		X: w.Spawn.X, Y: w.Spawn.Y, Z: w.Spawn.Z,
		Yaw: w.Spawn.Yaw, Pitch: w.Spawn.Pitch,
	})

	for _, other := range w.sortedRoster() {
		sess.EnqueuePacket(wire.Spawn{
			PID: other.PID, Name: other.Name,
			X: other.X, Y: other.Y, Z: other.Z,
			Yaw: other.Yaw, Pitch: other.Pitch,
		})
		other.EnqueuePacket(wire.Spawn{
			PID: sess.PID, Name: sess.Name,
			X: sess.X, Y: sess.Y, Z: sess.Z,
			Yaw: sess.Yaw, Pitch: sess.Pitch,
		})
	}

	w.roster[pid] = sess
	return nil
}

// RemoveClient despawns pid for every remaining roster member and frees
// the id. A no-op if pid is not present.
func (w *World) RemoveClient(pid int8) {
	if _, ok := w.roster[pid]; !ok {
		return
	}
	delete(w.roster, pid)
	for _, other := range w.roster {
		other.EnqueuePacket(wire.Despawn{PID: pid})
	}
}

// RosterSize reports the number of sessions currently in the world.
func (w *World) RosterSize() int { return len(w.roster) }

// sortedRoster returns roster members ordered by pid, for deterministic
// join-time SPAWN exchange ordering.
func (w *World) sortedRoster() []*session.Session {
	out := make([]*session.Session, 0, len(w.roster))
	for _, s := range w.roster {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// sendLevel streams LEVEL_INIT, the gzip-compressed map split into
// ChunkDataLen-byte LEVEL_CHUNK fragments with an ascending percent, and
// LEVEL_FINAL with the map's dimensions.
func (w *World) sendLevel(sess *session.Session) error {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(w.Map.Bytes()); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	sess.EnqueuePacket(wire.LevelInit{})

	data := compressed.Bytes()
	total := len(data)
	sent := 0
	for sent < total || total == 0 {
		chunkLen := total - sent
		if chunkLen > wire.ChunkDataLen {
			chunkLen = wire.ChunkDataLen
		}
		var chunk wire.LevelChunk
		copy(chunk.Data[:], data[sent:sent+chunkLen])
		chunk.Len = int16(chunkLen)
		sent += chunkLen
		chunk.Pct = byte(sent * 100 / max(total, 1))
		sess.EnqueuePacket(chunk)
		if total == 0 {
			break
		}
	}

	sess.EnqueuePacket(wire.LevelFinalize{X: w.Map.X, Y: w.Map.Y, Z: w.Map.Z})
	return nil
}

// OnBlock validates and applies a client's SET_BLOCK request, or rejects
// it with a corrective SET_BLOCK back to the sender.
func (w *World) OnBlock(sess *session.Session, pkt wire.SetBlock) {
	if !w.Map.InBounds(pkt.X, pkt.Y, pkt.Z) {
		sess.EnqueuePacket(wire.BlockUpdate{X: pkt.X, Y: pkt.Y, Z: pkt.Z, Type: 0})
		return
	}
	if pkt.Mode != 0 && pkt.Mode != 1 {
		current := w.Map.Get(pkt.X, pkt.Y, pkt.Z)
		sess.EnqueuePacket(wire.BlockUpdate{X: pkt.X, Y: pkt.Y, Z: pkt.Z, Type: current})
		return
	}

	if !w.Options.Build && !sess.IsOperator() {
		current := w.Map.Get(pkt.X, pkt.Y, pkt.Z)
		sess.EnqueuePacket(wire.BlockUpdate{X: pkt.X, Y: pkt.Y, Z: pkt.Z, Type: current})
		return
	}

	var newType byte
	if pkt.Mode == 1 {
		newType = pkt.Type
		if newType > maxVanillaBlockType {
			newType = fallbackBlockType
		}
	}
	w.Map.Set(pkt.X, pkt.Y, pkt.Z, newType)

	update := wire.BlockUpdate{X: pkt.X, Y: pkt.Y, Z: pkt.Z, Type: newType}
	for _, other := range w.roster {
		other.EnqueuePacket(update)
	}
}

// OnPosition updates the session's cached pose and broadcasts it to every
// other roster member.
func (w *World) OnPosition(sess *session.Session, pkt wire.Position) {
	sess.X, sess.Y, sess.Z = pkt.X, pkt.Y, pkt.Z
	sess.Yaw, sess.Pitch = pkt.Yaw, pkt.Pitch

	for pid, other := range w.roster {
		if pid == sess.PID {
			continue
		}
		other.EnqueuePacket(wire.Spawn{
			PID: sess.PID, Name: sess.Name,
			X: sess.X, Y: sess.Y, Z: sess.Z,
			Yaw: sess.Yaw, Pitch: sess.Pitch,
		})
	}
}

// Broadcast enqueues an already-built packet to every roster member.
func (w *World) Broadcast(p wire.Encoder) {
	enc := p.Encode()
	for _, s := range w.roster {
		s.Enqueue(enc)
	}
}

// Tick runs periodic per-world work: autosave, when enabled, throttled to
// once every autosaveInterval and only when the map actually changed.
const autosaveInterval = 30 * time.Second

func (w *World) Tick() {
	if !w.Options.Autosave || w.store == nil || !w.Map.Dirty() {
		return
	}
	if time.Since(w.lastAutosave) < autosaveInterval {
		return
	}
	w.lastAutosave = time.Now()

	snapshot := make([]byte, len(w.Map.Bytes()))
	copy(snapshot, w.Map.Bytes())
	w.Map.ClearDirty()
	w.store.SaveAsync(w.Name, snapshot)
}
