package server

import (
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/openracer/raceserver/broadcast"
	"github.com/openracer/raceserver/config"
	"github.com/openracer/raceserver/logger"
	"github.com/openracer/raceserver/monitor"
	"github.com/openracer/raceserver/network"
	"github.com/openracer/raceserver/room"
	relayrpc "github.com/openracer/raceserver/rpc"
	"github.com/openracer/raceserver/session"
	"github.com/openracer/raceserver/timer"
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	store          *room.Store
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	monitor        *monitor.Monitor
	rpcServer      *relayrpc.Server
	timers         *timer.Manager
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config) *GameServer {
	store := room.NewStore()
	store.LateJoin = cfg.Relay.LateJoin

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		store:          store,
		sessionManager: session.NewManager(),
		monitor:        monitor.NewMonitor("raceserver"),
		timers:         timer.NewManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // host and player pages may be served from another origin
			},
		},
	}

	s.broadcaster = broadcast.NewRoomBroadcaster(s.store, s.sessionManager)

	rpcServer, err := relayrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.RegisterName("Relay", relayrpc.NewRelayService(s.store))

	s.monitor.StartServer(cfg.Server.MetricsAddress)
	s.timers.AddTimer(0, 5*time.Second, func() {
		s.monitor.SetActiveRooms(s.store.RoomCount())
		s.monitor.SetActivePlayers(s.store.PlayerCount())
	})

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	router := httprouter.New()
	router.GET("/", s.handleHostPage)
	router.GET("/player", s.handlePlayerPage)
	router.GET("/test/car", s.handleCarTestPage)
	router.GET("/qrcode/:code", s.handleQRCode)
	router.GET("/ws", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.handleWebSocket(w, r)
	})

	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, router)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	if s.monitor != nil {
		s.monitor.IncOnlineConnections()
	}

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.handleDisconnect(sess)
		s.sessionManager.Remove(sess.GetID())
		wsConn.Close()
		if s.monitor != nil {
			s.monitor.DecOnlineConnections()
		}
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			msg, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			s.handleEvent(sess, msg)
		}
	}
}

// handleDisconnect runs the session teardown: a host disconnect
// destroys the whole room after every remaining player hears about it; a
// player disconnect removes just that player and tells the host. A session
// with no membership is a no-op.
func (s *GameServer) handleDisconnect(sess *session.Session) {
	if code, remaining, ok := s.store.RemoveHost(sess); ok {
		for _, ps := range remaining {
			ps.Send(network.EventHostDisconnected, nil)
		}
		logger.Log.Infof("Host disconnected, room %s closed", code)
		return
	}

	if code, p, hostID, ok := s.store.RemovePlayer(sess); ok {
		s.broadcaster.SendTo(hostID, network.EventPlayerLeft, network.PlayerLeftEvent{
			PlayerID:   p.ID,
			PlayerName: p.Name,
		})
		logger.Log.Infof("Player %s disconnected from room %s", p.Name, code)
	}
}
