package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/matchserver/config"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/monitor"
	"github.com/wfunc/matchserver/persistence"
	"github.com/wfunc/matchserver/server"
	"github.com/wfunc/matchserver/services"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	var recorder *services.MatchRecorder
	if cfg.Database.Enabled {
		db, err := openDatabase(cfg)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		recorder = services.NewMatchRecorder(db)
		logger.Log.Info("Database connection successful, match recording enabled.")
	}

	mon := monitor.NewMonitor("matchserver")
	mon.StartServer(cfg.Server.MetricsAddress)

	gameServer := server.NewGameServer(cfg, recorder, mon)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Log.Infof("Received %v, shutting down", sig)
		gameServer.Shutdown()
	}()

	logger.Log.Infof("Starting game server on %s", cfg.Server.WSAddress)
	if err := gameServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func openDatabase(cfg *config.Config) (persistence.Database, error) {
	pg := cfg.Database.Postgres
	if cfg.Database.Driver == "pq" {
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
}
