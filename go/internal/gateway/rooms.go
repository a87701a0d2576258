package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/academy/go/internal/events"
)

// Room groups the sockets following one trainee's lesson.
type Room struct {
	LessonID uuid.UUID
	UserID   uuid.UUID
}

type RoomsConfig struct {
	WriteTimeout time.Duration
	// SendBuffer is how many events may queue for a socket before it is dropped.
	SendBuffer  int
	CheckOrigin func(r *http.Request) bool
}

func DefaultRoomsConfig() RoomsConfig {
	return RoomsConfig{
		WriteTimeout: 10 * time.Second,
		SendBuffer:   32,
		CheckOrigin:  func(r *http.Request) bool { return true },
	}
}

// RoomStats summarises open sockets.
type RoomStats struct {
	TotalConnections int `json:"total_connections"`
	ActiveRooms      int `json:"active_rooms"`
}

// Rooms tracks websocket subscribers per lesson room and pushes lesson
// events to them. Clients only listen; anything they send is discarded.
type Rooms struct {
	config   RoomsConfig
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	members map[Room]map[*subscriber]struct{}
}

type subscriber struct {
	id   string
	room Room
	conn *websocket.Conn
	send chan []byte
}

func NewRooms(config RoomsConfig) *Rooms {
	return &Rooms{
		config:   config,
		upgrader: websocket.Upgrader{CheckOrigin: config.CheckOrigin},
		members:  make(map[Room]map[*subscriber]struct{}),
	}
}

// Join upgrades the request and keeps the socket in room until either side
// closes it.
func (r *Rooms) Join(w http.ResponseWriter, req *http.Request, room Room) error {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	s := &subscriber{
		id:   uuid.NewString(),
		room: room,
		conn: conn,
		send: make(chan []byte, r.config.SendBuffer),
	}

	r.mu.Lock()
	if r.members[room] == nil {
		r.members[room] = make(map[*subscriber]struct{})
	}
	r.members[room][s] = struct{}{}
	r.mu.Unlock()

	go r.write(s)
	go r.discardReads(s)

	log.Info().
		Str("connection_id", s.id).
		Str("lesson_id", room.LessonID.String()).
		Str("user_id", room.UserID.String()).
		Msg("lesson socket joined")
	return nil
}

// leave is safe to call more than once; the first call closes s.send.
func (r *Rooms) leave(s *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.members[s.room]
	if !ok {
		return
	}
	if _, ok := room[s]; !ok {
		return
	}
	delete(room, s)
	close(s.send)
	if len(room) == 0 {
		delete(r.members, s.room)
	}
	log.Debug().Str("connection_id", s.id).Msg("lesson socket left")
}

// Broadcast queues env for every socket in room. A socket whose queue is
// full is disconnected; its client resyncs over HTTP when it reconnects.
func (r *Rooms) Broadcast(room Room, env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*subscriber
	r.mu.RLock()
	sent := 0
	for s := range r.members[room] {
		select {
		case s.send <- data:
			sent++
		default:
			slow = append(slow, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range slow {
		log.Warn().Str("connection_id", s.id).Msg("send queue full, closing lesson socket")
		r.leave(s)
		s.conn.Close()
	}

	log.Debug().
		Str("event_type", string(env.EventType)).
		Str("lesson_id", room.LessonID.String()).
		Int("connections", sent).
		Msg("event broadcasted")
}

func (r *Rooms) Stats() RoomStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RoomStats{ActiveRooms: len(r.members)}
	for _, room := range r.members {
		stats.TotalConnections += len(room)
	}
	return stats
}

func (r *Rooms) write(s *subscriber) {
	defer func() {
		s.conn.Close()
		r.leave(s)
	}()

	for data := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(r.config.WriteTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Str("connection_id", s.id).Msg("lesson socket write failed")
			return
		}
	}
	s.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(r.config.WriteTimeout))
}

// discardReads notices when the client goes away.
func (r *Rooms) discardReads(s *subscriber) {
	defer func() {
		r.leave(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", s.id).Msg("lesson socket closed unexpectedly")
			}
			return
		}
	}
}
