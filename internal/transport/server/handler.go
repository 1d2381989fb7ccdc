package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/wrongjunior/eventfeed/internal/domain"
	"github.com/wrongjunior/eventfeed/internal/ingest"
	"github.com/wrongjunior/eventfeed/internal/metrics"
	eservice "github.com/wrongjunior/eventfeed/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxPayloadSize = 5 << 20
	defaultLimit   = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Feed widgets are embedded on other sites; CORS below governs HTTP.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the feed over HTTP and WebSocket.
type Handler struct {
	Feed          *eservice.FeedService
	Logger        zerolog.Logger
	WebhookSecret string
	now           func() time.Time
}

// NewHandler returns a Handler stamping webhook records with the wall clock.
func NewHandler(feed *eservice.FeedService, logger zerolog.Logger, webhookSecret string) *Handler {
	return &Handler{
		Feed:          feed,
		Logger:        logger,
		WebhookSecret: webhookSecret,
		now:           time.Now,
	}
}

// Options configures SetupRouter.
type Options struct {
	WSPath         string
	WebhookSecret  string
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer
}

// SetupRouter mounts every feed route on a chi router.
func SetupRouter(feed *eservice.FeedService, logger zerolog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-GitHub-Event", "X-Hub-Signature-256"},
		MaxAge:         300,
	}))

	h := NewHandler(feed, logger, opts.WebhookSecret)
	r.Get("/", h.Home)
	r.Get("/handler", h.WebhookInfo)
	r.Post("/handler", h.Webhook)
	r.Get("/events", h.ListEvents)
	r.Post("/events", h.PostEvent)
	r.Get(opts.WSPath, h.ServeHTTP)
	if opts.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(opts.Gatherer))
	}
	return r
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, "<h3>Pyblish Universe</h3>")
}

func (h *Handler) WebhookInfo(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "This is where you'll point events.")
}

// Webhook accepts a GitHub webhook delivery and appends it to the feed.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := ingest.VerifySignature(h.WebhookSecret, r.Header.Get("X-Hub-Signature-256"), body); err != nil {
		h.Logger.Warn().Err(err).Msg("Webhook rejected")
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	githubEvent := r.Header.Get("X-GitHub-Event")
	if githubEvent == "ping" {
		io.WriteString(w, "pong")
		return
	}
	tag, ok := ingest.ConvertEvent(githubEvent)
	if !ok {
		h.Logger.Info().Str("github_event", githubEvent).Msg("Webhook event ignored")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, githubEvent+" not supported")
		return
	}

	ev, err := ingest.Parse(body, tag, h.now())
	if err != nil {
		h.Logger.Error().Err(err).Str("event", tag).Msg("Webhook parse failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.append(w, ev)
}

// PostEvent appends a raw feed record posted as JSON.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.RawEvent
	dec := json.NewDecoder(io.LimitReader(r.Body, maxPayloadSize))
	if err := dec.Decode(&ev); err != nil {
		http.Error(w, "decode event: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.append(w, ev)
}

func (h *Handler) append(w http.ResponseWriter, ev domain.RawEvent) {
	stored, err := h.Feed.Append(ev)
	if errors.Is(err, eservice.ErrShutdown) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.Logger.Error().Err(err).Msg("Append failed")
		http.Error(w, "append failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// ListEvents returns the newest records as JSON, oldest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultLimit)
	events, err := h.Feed.Recent(limit)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to retrieve events")
		http.Error(w, "Failed to retrieve events: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []domain.RawEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ServeHTTP upgrades the connection and streams the feed: the replay of the
// newest ?limit= records (all when absent or 0), then live records.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 0)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	replay, sub, err := h.Feed.Subscribe(limit)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Subscribe failed")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	defer h.Feed.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writePump(ctx, conn, replay, sub)
	h.readPump(conn)
}

// readPump discards client messages and returns when the connection fails.
func (h *Handler) readPump(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
	}
}

// writePump is the only writer on conn.
func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, replay []domain.RawEvent, sub *eservice.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for _, ev := range replay {
		if err := writeEvent(conn, ev); err != nil {
			h.Logger.Error().Err(err).Msg("Replay write failed")
			return
		}
	}
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				h.Logger.Error().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Logger.Error().Err(err).Msg("Ping error")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev domain.RawEvent) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

func parseLimit(r *http.Request, fallback int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
