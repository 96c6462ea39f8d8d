// Package plugin exposes the event bus, world and server handle of
// spec.md §6's "Plugin interface" to an external process over the network,
// because the scripting runtime that would consume it is explicitly out of
// scope for this module (spec.md §1).
//
// The transport mirrors the teacher's original RPC wiring exactly: a 4-byte
// big-endian connection id handshake, then a yamux.Server session carrying
// two net/rpc/jsonrpc streams — one this process opens for event callbacks
// to the plugin, and one the plugin opens for its calls into this process.
// Only the service surface changes — instead of
// a voxel game's Block/Player RPCs, the single registered service is
// "Plugin", with methods RegisterEvent, TriggerEvent, SetFlag, GetFlag,
// Broadcast, GetWorldNames and KickByName, matching spec.md §6 abstractly.
package plugin

import (
	"encoding/binary"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/yamux"
	"github.com/rs/zerolog"
)

// Backend is whatever on the main loop can safely satisfy a plugin RPC
// call. Every method here is expected to be safe to call from the
// listener's accept goroutine; an internal/server implementation achieves
// this by marshalling the work onto the loop-command channel described in
// SPEC_FULL.md §5 and blocking for the result, never touching session or
// world state directly from this goroutine.
type Backend interface {
	RegisterEvent(eventType, pluginName string) error
	TriggerEvent(eventType string, payload map[string]interface{}) error
	SetFlag(name string, value bool) error
	GetFlag(name string) (bool, error)
	Broadcast(message string) error
	GetWorldNames() ([]string, error)
	KickByName(name, reason string) error
	NotifyPluginLoaded(connID int32, remoteAddr string)
}

// Listener accepts plugin-transport connections. Besides serving inbound
// RPC calls from plugins, it keeps an outbound *rpc.Client per connection so
// the core can push event notifications back out, mirroring the teacher's
// Session type (a net.Conn plus an *rpc.Client opened over the same yamux
// session) used for its original server->client callbacks.
type Listener struct {
	clientID  int32
	backend   Backend
	rpcServer *rpc.Server
	log       zerolog.Logger

	conns sync.Map // int32 -> *rpc.Client
}

// New builds a Listener that will dispatch RPC calls to backend.
func New(backend Backend, log zerolog.Logger) *Listener {
	l := &Listener{
		backend: backend,
		log:     log,
	}
	l.rpcServer = rpc.NewServer()
	l.rpcServer.RegisterName("Plugin", &service{backend: backend})
	return l
}

// Serve accepts connections on ln until it returns an error (e.g. on
// Close). Each connection is handled on its own goroutine, per the
// teacher's Server.Serve.
func (l *Listener) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go l.handleConn(conn)
	}
}

func (l *Listener) handleConn(conn net.Conn) {
	defer conn.Close()

	id := atomic.AddInt32(&l.clientID, 1)
	if err := binary.Write(conn, binary.BigEndian, id); err != nil {
		l.log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("plugin: handshake write failed")
		return
	}

	sess, err := yamux.Server(conn, nil)
	if err != nil {
		l.log.Warn().Err(err).Msg("plugin: yamux session failed")
		return
	}
	defer sess.Close()

	callbackConn, err := sess.Open()
	if err != nil {
		l.log.Warn().Err(err).Msg("plugin: could not open callback stream")
		return
	}
	client := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(callbackConn))
	l.conns.Store(id, client)
	defer func() {
		client.Close()
		l.conns.Delete(id)
	}()

	l.backend.NotifyPluginLoaded(id, conn.RemoteAddr().String())

	rpcConn, err := sess.Accept()
	if err != nil {
		l.log.Warn().Err(err).Msg("plugin: yamux accept failed")
		return
	}
	l.rpcServer.ServeCodec(jsonrpc.NewServerCodec(rpcConn))
	l.log.Info().Int32("id", id).Str("remote", conn.RemoteAddr().String()).Msg("plugin: disconnected")
}

// FireEventRequest/Response is the call shape a plugin process is expected
// to expose as "PluginCallback.OnEvent", invoked below.
type FireEventRequest struct {
	EventType string
	Payload   map[string]interface{}
}
type FireEventResponse struct{}

// FireEvent pushes an event notification to every currently connected
// plugin, fire-and-forget (the teacher's BlockService.UpdateBlock and
// PlayerService.removePlayer both fan out this way with sess.Go and a nil
// done channel, never waiting on the result).
func (l *Listener) FireEvent(eventType string, payload map[string]interface{}) {
	req := &FireEventRequest{EventType: eventType, Payload: payload}
	l.conns.Range(func(_, v interface{}) bool {
		client := v.(*rpc.Client)
		client.Go("PluginCallback.OnEvent", req, new(FireEventResponse), nil)
		return true
	})
}

// Request/response pairs, one per RPC method. net/rpc requires exactly two
// arguments (request, response pointer) per method.

type RegisterEventRequest struct {
	EventType  string
	PluginName string
}
type RegisterEventResponse struct{}

type TriggerEventRequest struct {
	EventType string
	Payload   map[string]interface{}
}
type TriggerEventResponse struct{}

type SetFlagRequest struct {
	Name  string
	Value bool
}
type SetFlagResponse struct{}

type GetFlagRequest struct {
	Name string
}
type GetFlagResponse struct {
	Value bool
}

type BroadcastRequest struct {
	Message string
}
type BroadcastResponse struct{}

type GetWorldNamesRequest struct{}
type GetWorldNamesResponse struct {
	Names []string
}

type KickByNameRequest struct {
	Name   string
	Reason string
}
type KickByNameResponse struct{}

// service is the RPC-visible surface; every method has the
// func(*Request, *Response) error shape net/rpc requires.
type service struct {
	backend Backend
}

func (s *service) RegisterEvent(req *RegisterEventRequest, rep *RegisterEventResponse) error {
	return s.backend.RegisterEvent(req.EventType, req.PluginName)
}

func (s *service) TriggerEvent(req *TriggerEventRequest, rep *TriggerEventResponse) error {
	return s.backend.TriggerEvent(req.EventType, req.Payload)
}

func (s *service) SetFlag(req *SetFlagRequest, rep *SetFlagResponse) error {
	return s.backend.SetFlag(req.Name, req.Value)
}

func (s *service) GetFlag(req *GetFlagRequest, rep *GetFlagResponse) error {
	value, err := s.backend.GetFlag(req.Name)
	rep.Value = value
	return err
}

func (s *service) Broadcast(req *BroadcastRequest, rep *BroadcastResponse) error {
	return s.backend.Broadcast(req.Message)
}

func (s *service) GetWorldNames(req *GetWorldNamesRequest, rep *GetWorldNamesResponse) error {
	names, err := s.backend.GetWorldNames()
	rep.Names = names
	return err
}

func (s *service) KickByName(req *KickByNameRequest, rep *KickByNameResponse) error {
	return s.backend.KickByName(req.Name, req.Reason)
}
