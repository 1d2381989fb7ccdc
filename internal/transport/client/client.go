package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wrongjunior/eventfeed/internal/domain"
)

const (
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	initialBackoff = time.Second
)

// ClientTransport subscribes to the feed over WebSocket and pushes decoded
// records onto Out, reconnecting with exponential backoff.
type ClientTransport struct {
	ServerURL  string
	Limit      int
	MaxBackoff time.Duration
	Out        chan<- domain.RawEvent
	Logger     zerolog.Logger
	dialer     *websocket.Dialer
}

// NewClientTransport returns a transport asking for a replay of the newest
// limit records on every (re)connect.
func NewClientTransport(serverURL string, limit int, out chan<- domain.RawEvent, logger zerolog.Logger) *ClientTransport {
	return &ClientTransport{
		ServerURL:  serverURL,
		Limit:      limit,
		MaxBackoff: 30 * time.Second,
		Out:        out,
		Logger:     logger,
		dialer:     websocket.DefaultDialer,
	}
}

// subscribeURL adds the replay limit to the server URL.
func (ct *ClientTransport) subscribeURL() (string, error) {
	u, err := url.Parse(ct.ServerURL)
	if err != nil {
		return "", err
	}
	if ct.Limit > 0 {
		q := u.Query()
		q.Set("limit", strconv.Itoa(ct.Limit))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// connect dials the feed.
func (ct *ClientTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	target, err := ct.subscribeURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := ct.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	ct.Logger.Info().Str("url", target).Msg("Connected to feed")
	return conn, nil
}

// Listen runs until ctx is done, then closes Out.
func (ct *ClientTransport) Listen(ctx context.Context) {
	defer close(ct.Out)
	backoff := initialBackoff
	for {
		conn, err := ct.connect(ctx)
		if err == nil {
			backoff = initialBackoff
			err = ct.readLoop(ctx, conn)
		}
		if ctx.Err() != nil {
			ct.Logger.Info().Msg("Client transport shutting down")
			return
		}
		ct.Logger.Error().Err(err).Dur("backoff", backoff).Msg("Feed connection lost, reconnecting")

		select {
		case <-ctx.Done():
			ct.Logger.Info().Msg("Reconnection cancelled")
			return
		case <-time.After(backoff):
		}
		if backoff < ct.MaxBackoff {
			backoff *= 2
			if backoff > ct.MaxBackoff {
				backoff = ct.MaxBackoff
			}
		}
	}
}

// readLoop decodes records from conn until it fails or ctx is done.
func (ct *ClientTransport) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		var event domain.RawEvent
		if err := json.Unmarshal(message, &event); err != nil {
			ct.Logger.Error().Err(err).Msg("JSON unmarshal error")
			continue
		}
		select {
		case ct.Out <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
