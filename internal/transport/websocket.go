package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/treesync/internal/protocol/frame"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrUnexpectedMessage = errors.New("transport: unexpected websocket message type")

// WebSocket carries one frame per binary message. Empty binary messages are pings.
type WebSocket struct {
	ws     *websocket.Conn
	limits frame.Limits

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func NewWebSocket(ws *websocket.Conn, limits frame.Limits) *WebSocket {
	ws.SetReadLimit(int64(limits.MaxPayloadBytes + limits.MaxAuthBytes + uint64(frame.FixedHeaderLen)))
	return &WebSocket{ws: ws, limits: limits, closed: make(chan struct{})}
}

func (w *WebSocket) Send(ctx context.Context, f frame.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := frame.Marshal(f, w.limits)
	if err != nil {
		return err
	}
	return w.write(ctx, b)
}

// Ping writes an empty binary message.
func (w *WebSocket) Ping(ctx context.Context) error {
	return w.write(ctx, []byte{})
}

func (w *WebSocket) write(ctx context.Context, b []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.ws.SetWriteDeadline(deadline(ctx))
	if err := w.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return w.mapErr(err)
	}
	return nil
}

func (w *WebSocket) Receive(ctx context.Context) (frame.Frame, error) {
	stop := watch(ctx, w)
	defer stop()
	_ = w.ws.SetReadDeadline(deadline(ctx))
	for {
		messageType, message, err := w.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return frame.Frame{}, ctx.Err()
			}
			return frame.Frame{}, w.mapErr(err)
		}
		switch messageType {
		case websocket.BinaryMessage:
			if len(message) == 0 {
				continue
			}
			return frame.Unmarshal(message, w.limits)
		default:
			return frame.Frame{}, fmt.Errorf("%w: %d", ErrUnexpectedMessage, messageType)
		}
	}
}

func (w *WebSocket) mapErr(err error) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

// Close sends a close message when possible and closes the socket.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		_ = w.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = w.ws.Close()
	})
	return err
}

// DialWebSocket connects to a ws:// or wss:// url.
func DialWebSocket(ctx context.Context, url string, tlsCfg *tls.Config, header http.Header, limits frame.Limits) (*WebSocket, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
		TLSClientConfig:  tlsCfg,
	}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: websocket dial %s: status=%d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("transport: websocket dial %s: %w", url, err)
	}
	log.Debug().Msgf("transport.DialWebSocket url=%s", url)
	return NewWebSocket(ws, limits), nil
}

// WebSocketHandler upgrades requests and hands each connection to handle.
// The connection is closed when handle returns.
func WebSocketHandler(ctx context.Context, limits frame.Limits, handle func(context.Context, Conn)) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  32 * 1024,
		WriteBufferSize: 32 * 1024,
	}
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			log.Warn().Msgf("transport.WebSocketHandler upgrade remote=%s err=%v", r.RemoteAddr, err)
			return
		}
		conn := NewWebSocket(ws, limits)
		defer conn.Close()
		handle(ctx, conn)
	})
}
