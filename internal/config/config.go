// Package config loads the INI configuration layout of spec.md §6 using
// gopkg.in/ini.v1, the de facto standard INI library for Go — the example
// corpus carries no INI dependency to imitate; original_source uses
// boost::property_tree::ini_parser for the same file, the closest analogue
// in spirit this module has to follow.
package config

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
)

// Defaults mirror spec.md §7's literal fallback values, applied whenever
// the main config file is missing or fails to parse.
const (
	DefaultPort         = 25565
	DefaultVersion      = 7
	DefaultMaxUsers     = 8
	DefaultVerifyNames  = true
	DefaultHeartbeatURL = "https://www.classicube.net/server/heartbeat"
)

// Server holds the [Server] section of the main config file.
type Server struct {
	Name        string
	Motd        string
	Port        int
	Heartbeat   bool
	Public      bool
	MaxUsers    int
	VerifyNames bool
	Debug       bool
}

// Default returns the literal fallback Server config of spec.md §7.
func Default() Server {
	return Server{
		Name:        "A gocraftd server",
		Motd:        "Welcome!",
		Port:        DefaultPort,
		Heartbeat:   true,
		Public:      false,
		MaxUsers:    DefaultMaxUsers,
		VerifyNames: DefaultVerifyNames,
		Debug:       false,
	}
}

// Load reads path as the main server config. A missing or malformed file
// is logged at warning and the literal defaults of spec.md §7 are returned,
// mirroring original_source's per-file try/catch around world loading.
func Load(path string, log zerolog.Logger) Server {
	cfg := Default()

	f, err := ini.Load(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config: using defaults")
		return cfg
	}

	sec := f.Section("Server")
	cfg.Name = sec.Key("name").MustString(cfg.Name)
	cfg.Motd = sec.Key("motd").MustString(cfg.Motd)
	cfg.Port = sec.Key("port").MustInt(cfg.Port)
	cfg.Heartbeat = sec.Key("heartbeat").MustBool(cfg.Heartbeat)
	cfg.Public = sec.Key("public").MustBool(cfg.Public)
	cfg.MaxUsers = sec.Key("max_users").MustInt(cfg.MaxUsers)
	cfg.VerifyNames = sec.Key("verify_names").MustBool(cfg.VerifyNames)
	cfg.Debug = sec.Key("debug").MustBool(cfg.Debug)

	return cfg
}

// World holds the [World], [Size], [Spawn] and [Options] sections of a
// single worlds/*.ini file.
type World struct {
	Name string
	Map  string

	SizeX, SizeY, SizeZ int16

	SpawnX, SpawnY, SpawnZ int16

	Autosave bool
	Build    bool
	Autoload bool
}

// LoadWorld reads a single worlds/*.ini file. A malformed file is logged
// at warning and (World{}, false) is returned so the caller skips it
// without aborting the rest of the load, per spec.md §7.
func LoadWorld(path string, log zerolog.Logger) (World, bool) {
	f, err := ini.Load(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config: skipping unreadable world file")
		return World{}, false
	}

	w := World{
		Name:     filepath.Base(path),
		SizeX:    256,
		SizeY:    64,
		SizeZ:    256,
		Autosave: true,
		Build:    true,
		Autoload: true,
	}

	w.Name = f.Section("World").Key("name").MustString(w.Name)
	w.Map = f.Section("World").Key("map").MustString(w.Map)

	size := f.Section("Size")
	w.SizeX = int16(size.Key("x").MustInt(int(w.SizeX)))
	w.SizeY = int16(size.Key("y").MustInt(int(w.SizeY)))
	w.SizeZ = int16(size.Key("z").MustInt(int(w.SizeZ)))

	spawn := f.Section("Spawn")
	w.SpawnX = int16(spawn.Key("x").MustInt(int(w.SpawnX)))
	w.SpawnY = int16(spawn.Key("y").MustInt(int(w.SpawnY)))
	w.SpawnZ = int16(spawn.Key("z").MustInt(int(w.SpawnZ)))

	opts := f.Section("Options")
	w.Autosave = opts.Key("autosave").MustBool(w.Autosave)
	w.Build = opts.Key("build").MustBool(w.Build)
	w.Autoload = opts.Key("autoload").MustBool(w.Autoload)

	return w, true
}

// LoadWorlds globs dir for *.ini files and loads each with LoadWorld,
// skipping any that fail to parse. Worlds with Autoload==false are still
// returned; it is the caller's job (cmd/gocraftd) to decide whether to
// materialize them at startup.
func LoadWorlds(dir string, log zerolog.Logger) []World {
	matches, err := filepath.Glob(filepath.Join(dir, "*.ini"))
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("config: could not glob world directory")
		return nil
	}

	var worlds []World
	for _, path := range matches {
		if w, ok := LoadWorld(path, log); ok {
			worlds = append(worlds, w)
		}
	}
	return worlds
}
