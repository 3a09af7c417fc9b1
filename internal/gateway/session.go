package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/neuropath/rtcore/internal/auth"
	"github.com/neuropath/rtcore/internal/proto"
	"github.com/neuropath/rtcore/internal/registry"

	"github.com/gorilla/websocket"
)

// session is the actor for one WebSocket: a read pump on the calling
// goroutine and a write pump on its own.
type session struct {
	g        *Gateway
	ws       *websocket.Conn
	conn     *registry.Conn
	identity auth.Identity
}

func (s *session) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := s.g.deps.Registry
	reg.Register(s.conn)
	log.Infof("user %s (%s) connected as %s from %s", s.identity.UserID, s.identity.Role, s.conn.ID, s.ws.RemoteAddr())

	s.reply(proto.EventHello, "", proto.HelloPayload{
		ConnectionID: s.conn.ID,
		UserID:       s.identity.UserID,
		Role:         s.identity.Role,
		ICEServers:   s.g.opts.ICEServers,
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	err := s.readPump(ctx)

	reg.Unregister(s.conn)
	s.conn.Close()
	<-writerDone
	s.ws.Close()

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Infof("user %s: connection %s lost: %v", s.identity.UserID, s.conn.ID, err)
	} else {
		log.Infof("user %s: connection %s closed", s.identity.UserID, s.conn.ID)
	}
}

func (s *session) readPump(ctx context.Context) error {
	s.ws.SetReadLimit(s.g.opts.MaxFrameBytes)
	_ = s.ws.SetReadDeadline(time.Now().Add(s.g.opts.PongWait))
	s.ws.SetPongHandler(func(string) error {
		if p := s.g.deps.Presence; p != nil {
			p.Touch(s.identity.UserID)
		}
		return s.ws.SetReadDeadline(time.Now().Add(s.g.opts.PongWait))
	})

	for {
		mt, data, err := s.ws.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}
		_ = s.ws.SetReadDeadline(time.Now().Add(s.g.opts.PongWait))

		select {
		case <-s.conn.Done():
			return errors.New("connection closed by server")
		default:
		}

		s.handle(ctx, data)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.g.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.conn.Outbound():
			_ = s.ws.SetWriteDeadline(time.Now().Add(s.g.opts.WriteWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debugf("write to %s: %v", s.conn.ID, err)
				s.ws.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.g.opts.WriteWait)
			if err := s.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debugf("ping %s: %v", s.conn.ID, err)
				s.ws.Close()
				return
			}
		case <-s.conn.Done():
			deadline := time.Now().Add(s.g.opts.WriteWait)
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "closing")
			_ = s.ws.WriteControl(websocket.CloseMessage, msg, deadline)
			// Unblocks the read pump if the server initiated the close.
			s.ws.Close()
			return
		}
	}
}

// reply queues a frame for this connection only.
func (s *session) reply(event, ref string, data any) {
	frame, err := proto.Encode(event, ref, data)
	if err != nil {
		log.Errorf("encode %s: %v", event, err)
		return
	}
	if !s.conn.Enqueue(frame) {
		log.Warnf("user %s: dropped %s for connection %s", s.identity.UserID, event, s.conn.ID)
	}
}
