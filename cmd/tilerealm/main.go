package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/handler"
	gonet "github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/persist"
	"github.com/tilerealm/server/internal/scripting"
	"github.com/tilerealm/server/internal/system"
	"github.com/tilerealm/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func printSection(title string) {
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", 40-len(title)))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dots := 36 - len(label) - len(numStr)
	if dots < 3 {
		dots = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dots), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func run() error {
	cfgPath := flag.String("config", "config/server.toml", "path to the TOML config")
	flag.Parse()
	if p := os.Getenv("TILEREALM_CONFIG"); p != "" {
		*cfgPath = p
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	fmt.Printf("\n  \033[36;1m%s\033[0m\n\n", cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Content ──
	printSection("content")
	grid, err := data.ManifestLoader{Path: cfg.World.MapManifest}.Load()
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	printStat("floors", int(grid.Floors))
	creatures, err := data.LoadCreatureTable(cfg.World.Creatures)
	if err != nil {
		return fmt.Errorf("load creatures: %w", err)
	}
	printStat("creature templates", creatures.Count())
	spawns, err := data.LoadSpawnList(cfg.World.Spawns)
	if err != nil {
		return fmt.Errorf("load spawns: %w", err)
	}
	printStat("spawn points", len(spawns))

	var formulas combat.Formulas = combat.Standard{}
	if cfg.Scripting.Dir != "" {
		engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer engine.Close()
		formulas = engine
		printOK(fmt.Sprintf("lua overrides: %s", strings.Join(engine.Overrides(), ", ")))
	}
	fmt.Println()

	// ── World ──
	clock := &coresys.Clock{}
	bus := event.NewBus()
	ws := world.NewState(grid, clock, bus, world.Options{
		CellSize:   cfg.World.CellSize,
		TilePixels: cfg.World.TilePixels,
		ViewRangeX: cfg.World.ViewRangeX,
		ViewRangeY: cfg.World.ViewRangeY,
	})
	dice := rand.New(rand.NewSource(time.Now().UnixNano()))

	// ── Network ──
	frames, err := gonet.NewFrameCodec(cfg.Network.CompressThreshold)
	if err != nil {
		return fmt.Errorf("frame codec: %w", err)
	}
	defer frames.Close()
	versions := packet.DefaultVersions()
	initial, exact := versions.Resolve(cfg.Network.ProtocolVersion)
	if !exact {
		log.Warn("configured protocol version unknown, using newest",
			zap.Uint8("configured", cfg.Network.ProtocolVersion),
			zap.Uint8("using", initial.Version()),
		)
	}
	transport, err := newTransport(cfg, frames, initial, log)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer transport.Shutdown()

	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, &handler.Deps{
		Config:   cfg,
		Log:      log,
		World:    ws,
		Formulas: formulas,
	})
	store := gonet.NewSessionStore()

	// ── Systems (registration order is the order within a phase) ──
	combatSys := system.NewCombatSystem(ws, cfg, dice, formulas, log)
	spawnSys, err := system.NewSpawnSystem(ws, creatures, spawns, cfg.Spawn, dice, log)
	if err != nil {
		return fmt.Errorf("spawns: %w", err)
	}
	inputSys := system.NewInputSystem(transport, pktReg, store, frames, versions, ws, cfg.Network, log)
	replication := system.NewReplicationSystem(ws, store, formulas, log)
	cleanup := system.NewCleanupSystem(ws)

	runner := coresys.NewRunner()
	runner.Register(inputSys)
	runner.Register(system.NewCreatureAISystem(ws, cfg.AI, combatSys, dice, log))
	runner.Register(combatSys)
	runner.Register(system.NewMovementSystem(ws))
	runner.Register(spawnSys)
	runner.Register(system.NewRegenSystem(ws, cfg.Player))
	spatial := system.NewSpatialSystem(ws)
	runner.Register(spatial)
	runner.Register(replication)
	runner.Register(cleanup)

	if cfg.Database.DSN != "" {
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if err := persist.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		audit := system.NewAuditSystem(ws, persist.NewAuditRepo(db), cfg.Database.FlushIntervalTicks, log)
		defer audit.Close()
		runner.Register(audit)
		printOK("audit log enabled")
	}

	printStat("creatures spawned", spawnSys.Populate())
	ws.RebuildAOI()
	printOK(fmt.Sprintf("listening on %s (%s)", transport.Addr(), cfg.Network.Transport))
	fmt.Println()

	loop := coresys.NewLoop(runner, clock, log)
	err = loop.Run(ctx)

	in := inputSys.Stats()
	full, delta := replication.Sent()
	interest := spatial.Stats()
	log.Info("server stopped",
		zap.Uint64("ticks", clock.Now()),
		zap.Uint64("frames", in.Frames),
		zap.Uint64("rate_dropped", in.RateDropped),
		zap.Uint64("replayed", in.Replayed),
		zap.Uint64("kicked", in.Kicked),
		zap.Uint64("full_snapshots", full),
		zap.Uint64("deltas", delta),
		zap.Uint64("moves", interest.Moves),
		zap.Uint64("cell_crossings", interest.CellCrossings),
		zap.Uint64("player_crossings", interest.PlayerCrossings),
		zap.Uint64("destroyed", cleanup.Destroyed()),
	)
	store.ForEach(func(s *gonet.Session) { s.Close() })
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newTransport(cfg *config.Config, frames *gonet.FrameCodec, codec packet.Codec, log *zap.Logger) (gonet.Transport, error) {
	opts := gonet.SessionOptions{
		InQueueSize:    cfg.Network.InQueueSize,
		OutQueueSize:   cfg.Network.InQueueSize,
		RateWindow:     cfg.RateLimit.Window,
		RateLimit:      cfg.RateLimit.PacketsPerWindow,
		AbuseThreshold: cfg.RateLimit.AbuseThreshold,
	}
	switch cfg.Network.Transport {
	case "websocket":
		srv, err := gonet.NewWSServer(cfg.Network.BindAddress, cfg.Network.WSPath, opts, frames, codec, log)
		if err != nil {
			return nil, err
		}
		go srv.Serve()
		return srv, nil
	default:
		srv, err := gonet.NewUDPServer(cfg.Network.BindAddress, opts, frames, codec, log)
		if err != nil {
			return nil, err
		}
		go srv.ReadLoop()
		return srv, nil
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	log, err := zapCfg.Build()
	if err != nil || cfg.File == "" {
		return log, err
	}

	// Tee into a rotating file; the file always gets plain JSON.
	rotate := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), rotate, zapCfg.Level)
	return log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}
