package relay

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"CardArena/logger"
	"CardArena/tools/ids"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	readLimit    = 1 << 20
	teardownWait = 2 * time.Second
)

// HandleWS upgrades the request and runs the connection's read loop. Each
// connection is serviced sequentially with respect to itself; handlers for
// different connections interleave freely.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[WS] upgrade err=%v", err)
		return
	}
	ws.SetReadLimit(readLimit)

	conn := NewConn(ids.GenerateString(), ws)
	s.reg.Admit(conn)
	logger.Infof("[WS] admitted conn=%s remote=%s total=%d", conn.ID, ws.RemoteAddr(), s.reg.Len())

	defer s.teardown(conn)

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed conn=%s", conn.ID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout conn=%s err=%v", conn.ID, rerr)
			} else {
				logger.Infof("[WS] read err conn=%s err=%v", conn.ID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.Dispatch(conn, data)
	}
}

// teardown is the only close-time side effect: drop the connection from
// the registry and, when that was the user's last device, clear presence.
func (s *Server) teardown(conn *Conn) {
	s.reg.Remove(conn)

	if code := conn.UserCode(); code != "" && !s.reg.IsOnline(conn.UserID()) {
		ctx, cancel := context.WithTimeout(context.Background(), teardownWait)
		s.MarkOffline(ctx, code)
		cancel()
	}

	conn.Close()
	logger.Infof("[WS] closed conn=%s user=%d total=%d", conn.ID, conn.UserID(), s.reg.Len())
}
