package bridge

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Wire format for the bridge WebSocket: one JSON frame per message.
//
//	surface → shell: {"type":"msg",  "channel":..., "payload":{...}}
//	surface → shell: {"type":"call", "id":...,      "channel":..., "payload":{...}}
//	shell → surface: {"type":"event","channel":..., "payload":...}
//	shell → surface: {"type":"reply","id":...,      "payload":...} | {"type":"error","id":...}
const (
	frameMsg   = "msg"
	frameCall  = "call"
	frameEvent = "event"
	frameReply = "reply"
	frameError = "error"
)

type wsFrame struct {
	Type    string         `json:"type"`
	ID      string         `json:"id,omitempty"`
	Channel string         `json:"channel,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Result  any            `json:"result,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The bridge server binds 127.0.0.1 only; the picker page is served from
	// the same origin, so no cross-origin sockets are expected here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSurface is one connected surface (a picker window). Writes are
// serialized with a mutex because the bus fans out from multiple goroutines.
type wsSurface struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSurface) Emit(channel string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.conn.WriteJSON(struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		Payload any    `json:"payload,omitempty"`
	}{frameEvent, channel, payload})
	if err != nil {
		log.Printf("BRIDGE: ws emit %s to %s: %v", channel, s.id, err)
	}
}

func (s *wsSurface) reply(id string, result any, callErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if callErr != nil {
		_ = s.conn.WriteJSON(wsFrame{Type: frameError, ID: id})
		return
	}
	_ = s.conn.WriteJSON(wsFrame{Type: frameReply, ID: id, Result: result})
}

// ServeWS upgrades an HTTP request to a bridge WebSocket, attaches the
// surface as an emitter and pumps inbound frames through the bus until the
// socket closes. onClose (optional) runs once after detach — the selector
// uses it to treat surface disappearance as implicit cancellation.
func (b *Bus) ServeWS(w http.ResponseWriter, r *http.Request, onClose func(surfaceID string)) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("BRIDGE: ws upgrade: %v", err)
		return
	}

	s := &wsSurface{id: "surface-" + uuid.NewString(), conn: conn}
	b.AttachEmitter(s.id, s)
	log.Printf("BRIDGE: surface %s connected", s.id)

	defer func() {
		b.DetachEmitter(s.id)
		_ = conn.Close()
		log.Printf("BRIDGE: surface %s disconnected", s.id)
		if onClose != nil {
			onClose(s.id)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f wsFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Printf("BRIDGE: ws bad frame from %s: %v", s.id, err)
			continue
		}
		switch f.Type {
		case frameMsg:
			b.Dispatch(s.id, f.Channel, f.Payload)
		case frameCall:
			result, callErr := b.Call(s.id, f.Channel, f.Payload)
			s.reply(f.ID, result, callErr)
		default:
			log.Printf("BRIDGE: ws unknown frame type %q from %s", f.Type, s.id)
		}
	}
}
