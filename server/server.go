package server

import (
	"context"
	"net/http"
	"net/rpc"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/matchserver/config"
	"github.com/wfunc/matchserver/dispatcher"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/monitor"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/room"
	matchserver_rpc "github.com/wfunc/matchserver/rpc"
	"github.com/wfunc/matchserver/services"
	"github.com/wfunc/matchserver/session"
)

// GameServer accepts websocket connections, admits player sessions
// and pumps their protocol steps through the dispatcher.
type GameServer struct {
	cfg        config.ServerConfig
	upgrader   websocket.Upgrader
	registry   *session.Registry
	pool       *room.Pool
	dispatcher *dispatcher.Dispatcher
	monitor    *monitor.Monitor
	rpcServer  *matchserver_rpc.Server
	httpServer *http.Server

	connMutex    sync.Mutex
	conns        map[network.Connection]struct{}
	shutdownChan chan struct{}
}

func NewGameServer(cfg *config.Config, recorder *services.MatchRecorder, mon *monitor.Monitor) *GameServer {
	templates := make([]room.Config, 0, len(cfg.Rooms))
	for _, tmpl := range cfg.Rooms {
		templates = append(templates, room.Config{
			GameType:   tmpl.GameType,
			MinPlayers: tmpl.MinPlayers,
			MaxPlayers: tmpl.MaxPlayers,
			WaitTime:   tmpl.WaitTime,
		})
	}

	var onStarted room.StartedFunc
	if recorder != nil {
		onStarted = recorder.RecordStart
	}

	s := &GameServer{
		cfg:          cfg.Server,
		registry:     session.NewRegistry(cfg.Server.MaxSessions),
		pool:         room.NewPool(templates, onStarted),
		monitor:      mon,
		conns:        make(map[network.Connection]struct{}),
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.dispatcher = dispatcher.New(s.registry, s.pool)

	rpcServer, err := matchserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(matchserver_rpc.NewStatsService(s.registry, s.pool))

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.cfg.WSAddress, Handler: mux}

	logger.Log.Infof("Game server listening on %s", s.cfg.WSAddress)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the listeners and closes every live connection so
// the per-connection goroutines drain through their cleanup path.
func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}

	s.connMutex.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMutex.Unlock()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn, s.cfg.SendTimeout))
}

func (s *GameServer) handleConnection(conn network.Connection) {
	connID := uuid.New().String()

	playerID, err := s.registry.Admit()
	if err != nil {
		logger.Log.Warnf("Rejected connection %s from %s: %v", connID, conn.RemoteAddr(), err)
		conn.SendJSON(network.ErrorReply{Step: network.StepWelcome, Error: network.ErrTextServerFull})
		conn.Close()
		return
	}

	s.trackConn(conn)
	s.monitor.IncOnlinePlayers()
	logger.Log.Infof("New connection %s from %s, player %d", connID, conn.RemoteAddr(), playerID)

	defer func() {
		// Runs for explicit exit and abnormal disconnect alike; the
		// dispatcher makes the second pass after an exit a no-op.
		s.dispatcher.Disconnect(playerID)
		s.monitor.DecOnlinePlayers()
		s.monitor.SetOpenRooms(s.pool.InstanceCount())
		s.untrackConn(conn)
		conn.Close()
		logger.Log.Infof("Connection %s closed, player %d", connID, playerID)
	}()

	if err := conn.SendJSON(network.NewWelcome(playerID)); err != nil {
		return
	}

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}

		req, err := conn.ReadRequest()
		if err != nil {
			return
		}

		start := time.Now()
		reply, closed := s.dispatcher.Dispatch(playerID, conn, req)
		s.monitor.IncMessagesReceived()
		s.monitor.ObserveMessageLatency(time.Since(start))
		s.monitor.SetOpenRooms(s.pool.InstanceCount())

		if reply != nil {
			if err := conn.SendJSON(reply); err != nil {
				return
			}
		}
		if closed {
			return
		}
	}
}

func (s *GameServer) trackConn(conn network.Connection) {
	s.connMutex.Lock()
	s.conns[conn] = struct{}{}
	s.connMutex.Unlock()
}

func (s *GameServer) untrackConn(conn network.Connection) {
	s.connMutex.Lock()
	delete(s.conns, conn)
	s.connMutex.Unlock()
}
