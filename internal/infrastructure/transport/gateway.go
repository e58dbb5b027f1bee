package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/domain/entity"
)

const Version = "0.3.0"

// Gateway owns the websocket endpoint and the per-tab session map. Entries
// are created lazily on a tab's first message and removed on disconnect, so
// the map's lifetime is bound to the transport connections.
type Gateway struct {
	factory     HandlerFactory
	transcriber output.TranscriberPort
	log         output.LoggerPort
	sessions    *sessionMap
	upgrader    websocket.Upgrader
}

func NewGateway(factory HandlerFactory, transcriber output.TranscriberPort, log output.LoggerPort) *Gateway {
	return &Gateway{
		factory:     factory,
		transcriber: transcriber,
		log:         log,
		sessions:    newSessionMap(),
		upgrader: websocket.Upgrader{
			// the extension's page origin is not known ahead of time
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router mounts the gateway's HTTP surface.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(httplog.NewLogger("browser-operator", httplog.Options{
		JSON:    true,
		Concise: true,
	})))
	r.Get("/ws", g.handleWS)
	r.Post("/transcribe", g.handleTranscribe)
	r.Get("/health", g.handleHealth)
	return r
}

// SessionCount reports how many tabs are currently connected.
func (g *Gateway) SessionCount() int {
	return g.sessions.count()
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	go g.serveConn(r.Context(), conn)
}

// serveConn is a tab's single message-handling loop. Everything that
// touches the tab's state runs here, one message at a time.
func (g *Gateway) serveConn(parent context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	var sess *session

	defer func() {
		cancel()
		if sess != nil {
			g.sessions.remove(sess.tabID)
			sess.handler.Close()
			g.log.Info("session closed", "tab", sess.tabID)
		}
		_ = conn.Close()
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Warn("connection read failed", "error", err)
			}
			return
		}

		if sess == nil {
			sess = g.openSession(env.TabID, conn, cancel)
		}
		g.dispatch(ctx, sess, env)
	}
}

func (g *Gateway) openSession(tabID string, conn *websocket.Conn, cancel context.CancelFunc) *session {
	if tabID == "" {
		tabID = uuid.NewString()
	}
	sess := &session{tabID: tabID, conn: conn, cancel: cancel}
	sess.handler = g.factory(tabID, sess)
	g.sessions.put(sess)
	g.log.Info("session opened", "tab", tabID)
	return sess
}

func (g *Gateway) dispatch(ctx context.Context, sess *session, env Envelope) {
	switch env.Type {
	case TypeRegisterTab:
		// registration only pins the tab id; openSession already ran

	case TypePageMapUpdate:
		var pm entity.PageMap
		if err := json.Unmarshal(env.Data, &pm); err != nil {
			g.log.Warn("bad page map payload", "tab", sess.tabID, "error", err)
			return
		}
		sess.handler.HandlePageMap(&pm)

	case TypeUserTranscript:
		var p TranscriptPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			g.log.Warn("bad transcript payload", "tab", sess.tabID, "error", err)
			return
		}
		sess.handler.HandleTranscript(ctx, p.Transcript)

	case TypeToolResult:
		var p ToolResultPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			g.log.Warn("bad tool result payload", "tab", sess.tabID, "error", err)
			return
		}
		sess.handler.HandleToolResult(ctx, p.Token, p.Result, p.IsError)

	default:
		g.log.Warn("unknown envelope type", "tab", sess.tabID, "type", env.Type)
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"service":  "browser-operator",
		"version":  Version,
		"sessions": g.sessions.count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
