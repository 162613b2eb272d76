package subscription

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shopsync/internal/identity"
)

// Executor runs one GraphQL operation and streams its results. Queries and
// mutations yield a single result; subscriptions yield until ctx ends.
// *graphql.Schema satisfies it.
type Executor interface {
	Subscribe(ctx context.Context, query, operationName string, variables map[string]interface{}) (<-chan interface{}, error)
}

const (
	defaultInitTimeout = 3 * time.Second
	writeWait          = 10 * time.Second
	maxMessageSize     = 1 << 20
)

type Option func(*Server)

// WithInitTimeout bounds how long a client may take to send connection_init.
func WithInitTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.initTimeout = d
		}
	}
}

// WithAllowedOrigins restricts the Origin header on upgrade. No origins
// means any origin is accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			if o != "" {
				allowed[o] = struct{}{}
			}
		}
		if len(allowed) == 0 {
			return
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

// Server upgrades HTTP requests and runs one protocol session per
// connection.
type Server struct {
	exec        Executor
	extractor   *identity.Extractor
	upgrader    websocket.Upgrader
	initTimeout time.Duration
	logger      *zap.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

func NewServer(exec Executor, extractor *identity.Extractor, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = identity.NewExtractor(logger)
	}
	s := &Server{
		exec:        exec,
		extractor:   extractor,
		initTimeout: defaultInitTimeout,
		logger:      logger,
		conns:       make(map[*conn]struct{}),
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := newConn(s, ws)
	if ws.Subprotocol() != Subprotocol {
		c.close(CloseSubprotocol, "Subprotocol not acceptable")
		return
	}

	s.track(c, true)
	defer s.track(c, false)
	c.run()
}

// Connections returns the number of open sessions.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown closes every open session.
func (s *Server) Shutdown() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (s *Server) track(c *conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

type conn struct {
	srv    *Server
	ws     *websocket.Conn
	id     string
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu        sync.Mutex
	initSeen  bool
	acked     bool
	owner     identity.Identity
	ops       map[string]*operation
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newConn(s *Server, ws *websocket.Conn) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &conn{
		srv:    s,
		ws:     ws,
		id:     id,
		logger: s.logger.With(zap.String("conn_id", id)),
		ctx:    ctx,
		cancel: cancel,
		ops:    make(map[string]*operation),
	}
}

func (c *conn) run() {
	defer func() {
		c.cancel()
		c.wg.Wait()
		c.close(websocket.CloseNormalClosure, "")
		c.logger.Debug("websocket session ended")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	timer := time.AfterFunc(c.srv.initTimeout, func() {
		c.mu.Lock()
		seen := c.initSeen
		c.mu.Unlock()
		if !seen {
			c.close(CloseInitTimeout, "Connection initialisation timeout")
		}
	})
	defer timer.Stop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.close(CloseBadRequest, "Invalid message received")
			return
		}
		if !c.handle(msg) {
			return
		}
	}
}
