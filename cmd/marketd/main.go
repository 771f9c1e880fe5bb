package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"marketchain/config"
	"marketchain/core"
	"marketchain/core/events"
	"marketchain/observability"
	"marketchain/observability/logging"
	"marketchain/rpc"
	"marketchain/storage"
)

type eventRecorder struct {
	log *slog.Logger
}

func (r *eventRecorder) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	observability.EngineMetrics().RecordEvent(evt.EventType())
	r.log.Info("engine event", "type", evt.EventType())
}

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	log := logging.Setup("marketd", cfg.Env, logging.Options{FilePath: cfg.LogFile})

	owner, err := cfg.Owner()
	if err != nil {
		log.Error("invalid owner address", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		log.Error("failed to open database", "dataDir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	node, err := core.NewNode(db, owner)
	if err != nil {
		log.Error("failed to initialise node", "error", err)
		os.Exit(1)
	}
	node.SetEmitter(&eventRecorder{log: log})

	server := rpc.NewServer(node, log, rpc.Options{
		AuthToken:       os.Getenv(cfg.RPCAuthTokenEnv),
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	log.Info("marketd starting", "network", cfg.NetworkName, "rpc", cfg.RPCAddress)
	if err := server.Start(cfg.RPCAddress); err != nil {
		log.Error("rpc server stopped", "error", err)
		os.Exit(1)
	}
}
