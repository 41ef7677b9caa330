package rpc

import (
	"net"
	"net/rpc"

	"github.com/openracer/raceserver/logger"
	"github.com/openracer/raceserver/room"
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
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// RelayService exposes read-only room inspection over net/rpc. Everything
// it returns is a point-in-time copy of live in-memory state.
type RelayService struct {
	store *room.Store
}

func NewRelayService(store *room.Store) *RelayService {
	return &RelayService{store: store}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []room.RoomInfo
}

func (rs *RelayService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = rs.store.ListRooms()
	return nil
}

type RoomInfoArgs struct {
	Code string
}

type RoomInfoReply struct {
	Found bool
	Room  room.RoomInfo
}

func (rs *RelayService) RoomInfo(args *RoomInfoArgs, reply *RoomInfoReply) error {
	info, found := rs.store.GetRoom(args.Code)
	reply.Found = found
	reply.Room = info
	return nil
}
