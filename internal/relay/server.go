package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"keybridge/internal/crypto"
	"keybridge/internal/domain"
)

// Server speaks the relay side of NIP-01 over websocket, backed by a Hub.
// It verifies event ids and signatures before accepting them.
type Server struct {
	hub      *Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

var _ http.Handler = (*Server)(nil)

func NewServer(hub *Hub, log zerolog.Logger) *Server {
	return &Server{
		hub: hub,
		log: log.With().Str("component", "relay-server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}
	c := &serverConn{
		ws:   ws,
		hub:  s.hub,
		log:  s.log.With().Str("remote", r.RemoteAddr).Logger(),
		subs: make(map[string][]string),
	}
	c.log.Debug().Msg("client connected")
	defer c.shutdown()

	for {
		_, b, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("client read failed")
			}
			return
		}
		c.handle(b)
	}
}

type serverConn struct {
	ws  *websocket.Conn
	hub *Hub
	log zerolog.Logger

	wmu sync.Mutex

	mu   sync.Mutex
	subs map[string][]string // client sub id -> hub sub ids
}

func (c *serverConn) handle(b []byte) {
	label, rest, err := decodeMessage(b)
	if err != nil {
		c.write(labelNotice, "invalid: "+err.Error())
		return
	}
	switch label {
	case labelEvent:
		if len(rest) < 1 {
			c.write(labelNotice, "invalid: EVENT without event")
			return
		}
		var e domain.Event
		if err := json.Unmarshal(rest[0], &e); err != nil {
			c.write(labelNotice, "invalid: "+err.Error())
			return
		}
		if err := crypto.VerifyEvent(e); err != nil {
			c.write(labelOK, e.ID, false, "invalid: "+err.Error())
			return
		}
		if !c.hub.Publish(e) {
			c.write(labelOK, e.ID, true, "duplicate: already have this event")
			return
		}
		c.write(labelOK, e.ID, true, "")
	case labelReq:
		if len(rest) < 1 {
			c.write(labelNotice, "invalid: REQ without subscription id")
			return
		}
		subID, err := decodeString(rest[0])
		if err != nil || subID == "" {
			c.write(labelNotice, "invalid: bad subscription id")
			return
		}
		filters := make([]domain.Filter, 0, len(rest)-1)
		for _, raw := range rest[1:] {
			var f domain.Filter
			if err := json.Unmarshal(raw, &f); err != nil {
				c.write(labelClosed, subID, "invalid: "+err.Error())
				return
			}
			filters = append(filters, f)
		}
		if len(filters) == 0 {
			filters = append(filters, domain.Filter{})
		}
		c.subscribe(subID, filters)
	case labelClose:
		if len(rest) < 1 {
			return
		}
		if subID, err := decodeString(rest[0]); err == nil {
			c.unsubscribe(subID)
		}
	default:
		c.write(labelNotice, "unsupported: "+label)
	}
}

// subscribe replaces any subscription already open under subID. EOSE is sent
// once every filter has replayed its stored events.
func (c *serverConn) subscribe(subID string, filters []domain.Filter) {
	c.unsubscribe(subID)

	var remaining atomic.Int32
	remaining.Store(int32(len(filters)))
	eose := func() {
		if remaining.Add(-1) == 0 {
			c.write(labelEOSE, subID)
		}
	}

	ids := make([]string, 0, len(filters))
	for _, f := range filters {
		ids = append(ids, c.hub.Subscribe(f, func(e domain.Event) {
			c.write(labelEvent, subID, e)
		}, eose))
	}
	c.mu.Lock()
	c.subs[subID] = ids
	c.mu.Unlock()
}

func (c *serverConn) unsubscribe(subID string) {
	c.mu.Lock()
	ids := c.subs[subID]
	delete(c.subs, subID)
	c.mu.Unlock()
	for _, id := range ids {
		c.hub.Unsubscribe(id)
	}
}

func (c *serverConn) write(label string, parts ...any) {
	b, err := encodeMessage(label, parts...)
	if err != nil {
		c.log.Warn().Err(err).Msg("encode failed")
		return
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		c.log.Debug().Err(err).Msg("client write failed")
	}
}

func (c *serverConn) shutdown() {
	c.mu.Lock()
	all := c.subs
	c.subs = make(map[string][]string)
	c.mu.Unlock()
	for _, ids := range all {
		for _, id := range ids {
			c.hub.Unsubscribe(id)
		}
	}
	_ = c.ws.Close()
	c.log.Debug().Msg("client disconnected")
}
