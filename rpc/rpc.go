package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/room"
	"github.com/wfunc/matchserver/session"
)

// Server manages the admin RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
}

// StatsService exposes live server counters over net/rpc for
// operational tooling.
type StatsService struct {
	registry *session.Registry
	pool     *room.Pool
}

func NewStatsService(registry *session.Registry, pool *room.Pool) *StatsService {
	return &StatsService{registry: registry, pool: pool}
}

type ServerStatsArgs struct{}

type ServerStatsReply struct {
	OnlineSessions int
	Rooms          map[string]room.GameTypeStats
}

// GetServerStats follows the net/rpc signature: exported method,
// exported arguments, pointer reply, error return.
func (s *StatsService) GetServerStats(args *ServerStatsArgs, reply *ServerStatsReply) error {
	reply.OnlineSessions = s.registry.Count()
	reply.Rooms = s.pool.Stats()
	return nil
}
