// Command gocraftd runs the server: load config, open the store, build
// every world, then drive the accept/poll/dispatch loop in internal/server
// until an OS signal asks it to stop.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/gocraftd/gocraftd/internal/auth"
	"github.com/gocraftd/gocraftd/internal/command"
	"github.com/gocraftd/gocraftd/internal/config"
	"github.com/gocraftd/gocraftd/internal/events"
	"github.com/gocraftd/gocraftd/internal/events/plugin"
	"github.com/gocraftd/gocraftd/internal/heartbeat"
	"github.com/gocraftd/gocraftd/internal/logging"
	"github.com/gocraftd/gocraftd/internal/server"
	"github.com/gocraftd/gocraftd/internal/store"
	"github.com/gocraftd/gocraftd/internal/world"
)

var (
	configPath   = flag.String("config", "server.ini", "path to the main server config file")
	worldsDir    = flag.String("worlds", "worlds", "directory of per-world config files")
	operatorFile = flag.String("ops", "ops.txt", "path to the plain-text operator list")
	storePath    = flag.String("store", "gocraftd.db", "path to the BoltDB map store")
	pluginAddr   = flag.String("plugin-listen", "", "address to accept plugin connections on (empty disables plugins)")
)

// defaultWorldX, defaultWorldY and defaultWorldZ size the always-present
// "default" world, matching original_source/Server.cpp's flat "scrap"
// world (GenerateFlatMap(256, 16, 256)).
const (
	defaultWorldX = 256
	defaultWorldY = 16
	defaultWorldZ = 256
)

func main() {
	flag.Parse()

	bootLog := logging.New(logging.Config{Debug: true})

	cfg := config.Load(*configPath, bootLog)
	log := logging.New(logging.Config{Debug: cfg.Debug})

	if !cfg.VerifyNames {
		log.Warn().Msg("verify_names is off — this is NOT secure outside of testing")
	}

	st, err := store.Open(*storePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("gocraftd: could not open store")
	}
	defer st.Close()

	worlds := buildWorlds(*worldsDir, st, log)

	salt := auth.NewSalt()
	ops := auth.NewOperatorList(*operatorFile)
	gate := auth.New(salt, cfg.VerifyNames, cfg.MaxUsers, localAddr(log), ops)

	bus := events.New(log)

	srv := server.New(server.Config{Name: cfg.Name, Motd: cfg.Motd}, gate, bus, command.DefaultHandler{}, log)
	for _, w := range worlds {
		srv.AddWorld(w)
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		log.Fatal().Err(err).Int("port", cfg.Port).Msg("gocraftd: could not listen")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *pluginAddr != "" {
		pluginLn, err := net.Listen("tcp", *pluginAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", *pluginAddr).Msg("gocraftd: could not listen for plugins")
		}
		pl := plugin.New(srv, log)
		srv.SetPluginListener(pl)
		go func() {
			if err := pl.Serve(pluginLn); err != nil {
				log.Warn().Err(err).Msg("gocraftd: plugin listener stopped")
			}
		}()
	}

	if cfg.Heartbeat {
		hb := heartbeat.New(heartbeatURL(), func() heartbeat.Info {
			return heartbeat.Info{
				Public:  cfg.Public,
				Max:     cfg.MaxUsers,
				Users:   gate.AuthedCount(),
				Port:    cfg.Port,
				Version: config.DefaultVersion,
				Salt:    salt,
				Name:    cfg.Name,
			}
		}, log)
		go hb.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("gocraftd: shutting down")
		cancel()
	}()

	log.Info().Int("port", cfg.Port).Str("name", cfg.Name).Msg("gocraftd: listening")
	if err := srv.Run(ctx, ln); err != nil {
		log.Error().Err(err).Msg("gocraftd: server loop exited")
	}
}

// buildWorlds always materializes a flat "default" world, then loads every
// worlds/*.ini file, attaching the shared store to each and skipping
// autoload==false worlds' initial Load (they still exist, with the flat
// fallback map),
// mirroring original_source/Server.cpp's Init: the "scrap" world is
// created unconditionally before the worlds/ directory is scanned.
func buildWorlds(dir string, st *store.Store, log zerolog.Logger) []*world.World {
	def := world.New("default", defaultWorldX, defaultWorldY, defaultWorldZ)
	def.Options.Autosave = false
	def.Options.Build = true
	def.Active = true
	def.SetStore(st)

	out := []*world.World{def}

	for _, cw := range config.LoadWorlds(dir, log) {
		w := world.New(cw.Name, cw.SizeX, cw.SizeY, cw.SizeZ)
		w.Spawn = world.Position{X: cw.SpawnX, Y: cw.SpawnY, Z: cw.SpawnZ}
		w.Options.Autosave = cw.Autosave
		w.Options.Build = cw.Build
		w.Options.Autoload = cw.Autoload
		w.SetStore(st)

		if cw.Autoload {
			if err := w.Load(); err != nil {
				log.Warn().Err(err).Str("world", cw.Name).Msg("gocraftd: could not load persisted map")
			}
			w.Active = true
		} else {
			log.Debug().Str("world", cw.Name).Msg("gocraftd: world not autoloaded")
		}

		out = append(out, w)
	}

	return out
}

// localAddr resolves the server process's own non-loopback address, used
// by auth.Gate for its same-subnet key-check bypass. A resolution failure
// degrades to no bypass rather than aborting startup.
func localAddr(log zerolog.Logger) net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		log.Warn().Err(err).Msg("gocraftd: could not resolve local address")
		return nil
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

func heartbeatURL() string {
	return config.DefaultHeartbeatURL
}
