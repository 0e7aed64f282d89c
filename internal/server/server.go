package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"nhooyr.io/websocket"
)

// Message types sent by the extension.
const (
	TypeTabCreated       = "tab.created"
	TypeTabUpdated       = "tab.updated"
	TypeTabRemoved       = "tab.removed"
	TypeLinkMiddleClick  = "link.middleClick"
	TypeUndo             = "undo"
	TypeExtensionStarted = "hello"
)

const (
	DefaultTimeout = 10 * time.Second
	AskTimeout     = 5 * time.Minute
)

// IncomingMsg is an event from the extension or a reply to a command.
type IncomingMsg struct {
	Type       string          `json:"type,omitempty"`
	Tab        json.RawMessage `json:"tab,omitempty"`
	Tabs       json.RawMessage `json:"tabs,omitempty"`
	TabID      int             `json:"tabId,omitempty"`
	WindowID   int             `json:"windowId,omitempty"`
	ChangeInfo json.RawMessage `json:"changeInfo,omitempty"`
	URL        string          `json:"url,omitempty"`
	Undo       json.RawMessage `json:"undo,omitempty"`
	// Command response fields
	ID      string  `json:"id,omitempty"`
	OK      *bool   `json:"ok,omitempty"`
	Error   string  `json:"error,omitempty"`
	GroupID int     `json:"groupId,omitempty"`
	Name    *string `json:"name,omitempty"`
	Version string  `json:"version,omitempty"`
}

// IsReply reports whether the message answers a command.
func (m IncomingMsg) IsReply() bool {
	return m.Type == "" && m.ID != ""
}

// OutgoingMsg is a command from the daemon to the extension.
type OutgoingMsg struct {
	ID       string               `json:"id"`
	Action   string               `json:"action"`
	TabID    int                  `json:"tabId,omitempty"`
	TabIDs   []int                `json:"tabIds,omitempty"`
	GroupID  int                  `json:"groupId,omitempty"`
	WindowID int                  `json:"windowId,omitempty"`
	URL      string               `json:"url,omitempty"`
	Name     string               `json:"name,omitempty"`
	Update   *browser.GroupUpdate `json:"update,omitempty"`
	Title    string               `json:"title,omitempty"`
	Message  string               `json:"message,omitempty"`
	Undo     *browser.UndoAction  `json:"undo,omitempty"`
}

type reply struct {
	msg IncomingMsg
	err error
}

// Server manages the WebSocket connection to the extension and implements
// browser.API on top of it.
type Server struct {
	port       int
	msgs       chan IncomingMsg
	timeout    time.Duration
	askTimeout time.Duration
	stats      func() (map[string]int, error)

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan reply
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:       port,
		msgs:       make(chan IncomingMsg, 256),
		timeout:    DefaultTimeout,
		askTimeout: AskTimeout,
		pending:    make(map[string]chan reply),
	}
}

// SetTimeouts overrides the reply timeouts for regular commands and for
// the group name prompt.
func (s *Server) SetTimeouts(def, ask time.Duration) {
	s.timeout = def
	s.askTimeout = ask
}

// SetStatsFunc sets the source of the /stats endpoint.
func (s *Server) SetStatsFunc(fn func() (map[string]int, error)) {
	s.stats = fn
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of events from the extension.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send writes a command to the connected extension without waiting for a reply.
func (s *Server) Send(ctx context.Context, msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return browser.ErrNotConnected
	}

	applog.Debug("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// call sends msg under a fresh id and waits for the matching reply.
func (s *Server) call(ctx context.Context, msg OutgoingMsg, timeout time.Duration) (IncomingMsg, error) {
	msg.ID = uuid.NewString()
	ch := make(chan reply, 1)

	s.mu.Lock()
	s.pending[msg.ID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.Send(ctx, msg); err != nil {
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, r.err)
		}
		if r.msg.Error != "" || (r.msg.OK != nil && !*r.msg.OK) {
			return r.msg, &browser.APIError{Action: msg.Action, Message: r.msg.Error}
		}
		return r.msg, nil
	case <-ctx.Done():
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}

func (s *Server) resolve(msg IncomingMsg) {
	s.mu.Lock()
	ch, ok := s.pending[msg.ID]
	s.mu.Unlock()
	if !ok {
		applog.Debug("ws.reply.orphan", "id", msg.ID)
		return
	}
	select {
	case ch <- reply{msg: msg}:
	default:
	}
}

// failPending ends every outstanding call with err.
func (s *Server) failPending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.pending {
		select {
		case ch <- reply{err: err}:
		default:
		}
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(4 << 20) // queryTabs replies list every tab of a window

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			current := s.conn == conn
			if current {
				s.conn = nil
			}
			s.mu.Unlock()
			if current {
				s.failPending(browser.ErrNotConnected)
			}
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			if msg.IsReply() {
				s.resolve(msg)
				continue
			}
			applog.Debug("ws.recv", "type", msg.Type, "tab", msg.TabID)
			select {
			case s.msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	})
}

// Router mounts the WebSocket endpoint and the status endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Handle("/", s.Handler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"connected": s.Connected(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, map[string]int{})
		return
	}
	counters, err := s.stats()
	if err != nil {
		applog.Error("http.stats", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Error("http.write", err)
	}
}

// ListenAndServe serves the router on 127.0.0.1 until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
