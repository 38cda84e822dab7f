// Package playground serves the interpreter over a websocket so programs
// can be run from a browser.
package playground

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"decipher/pkg/config"
	"decipher/pkg/diag"
	"decipher/pkg/eval"
	"decipher/pkg/runner"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	maxMessageSize = 1 << 20
	writeWait      = 10 * time.Second
)

// Message is the envelope of every frame a client sends.
type Message struct {
	Type    string          `json:"type"` // "run", "cancel", "ping"
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the envelope of every frame the server sends.
type Response struct {
	Type    string      `json:"type"` // "output", "error", "exit", "pong"
	Payload interface{} `json:"payload,omitempty"`
}

// RunPayload carries a program and everything its READ statements consume.
type RunPayload struct {
	Source string `json:"source"`
	Input  string `json:"input,omitempty"`
}

type OutputPayload struct {
	Data string `json:"data"`
}

// ErrorPayload reports either a protocol problem (Code only) or a program
// diagnostic.
type ErrorPayload struct {
	Code    string `json:"code"`
	Class   string `json:"class,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

type ExitPayload struct {
	Code        int                    `json:"code"`
	Session     string                 `json:"session"`
	Fingerprint string                 `json:"fingerprint"`
	Elapsed     string                 `json:"elapsed"`
	Globals     map[string]interface{} `json:"globals"`
}

type Server struct {
	cfg      config.PlaygroundConfig
	runner   *runner.Runner
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// New returns a playground serving programs through r. A nil logger
// discards everything.
func New(cfg config.PlaygroundConfig, r *runner.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		cfg:    cfg,
		runner: r,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may connect; runs are gated by the bearer token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("GET /run", s.handleRun)
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("playground listening", "addr", s.cfg.Addr, "auth", s.cfg.JWTSecret != "")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down playground")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.cfg.JWTSecret == "" || s.cfg.PasswordHash == "" {
		http.Error(w, "token issuing is disabled", http.StatusNotFound)
		return
	}

	var req struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !VerifyPassword(s.cfg.PasswordHash, req.Password) {
		s.log.Warn("token request rejected", "remote", r.RemoteAddr)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	subject := req.User
	if subject == "" {
		subject = "playground"
	}
	tok, expires, err := SignToken(subject, s.cfg.JWTSecret, s.cfg.TokenTTL.Duration)
	if err != nil {
		s.log.Error("signing token failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"token":      tok,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	subject := "anonymous"
	if s.cfg.JWTSecret != "" {
		sub, err := VerifyToken(bearer(r), s.cfg.JWTSecret)
		if err != nil {
			s.log.Warn("run rejected", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		subject = sub
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.New().String()
	sess := &session{
		id:   id,
		conn: conn,
		log:  s.log.With("session", id, "subject", subject),
	}
	s.serve(sess)
}

// session is one websocket connection. At most one program runs at a time.
type session struct {
	id   string
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	runMu  sync.Mutex
	cancel context.CancelFunc // nil when idle
	wg     sync.WaitGroup
}

func (ss *session) send(typ string, payload interface{}) error {
	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	ss.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ss.conn.WriteJSON(Response{Type: typ, Payload: payload})
}

func (ss *session) sendError(code, msg string) {
	if err := ss.send("error", ErrorPayload{Code: code, Message: msg}); err != nil {
		ss.log.Debug("send failed", "error", err)
	}
}

func (ss *session) stop() {
	ss.runMu.Lock()
	if ss.cancel != nil {
		ss.cancel()
	}
	ss.runMu.Unlock()
}

func (s *Server) serve(sess *session) {
	defer sess.conn.Close()
	sess.conn.SetReadLimit(maxMessageSize)
	sess.log.Info("session opened", "remote", sess.conn.RemoteAddr().String())

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		sess.wg.Wait()
		sess.log.Info("session closed")
	}()

	for {
		var msg Message
		if err := sess.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.log.Warn("websocket read error", "error", err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			sess.send("pong", nil)

		case "cancel":
			sess.stop()

		case "run":
			var payload RunPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				sess.sendError("invalid_payload", "invalid run payload")
				continue
			}
			s.start(ctx, sess, payload)

		default:
			sess.sendError("unknown_type", "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) start(ctx context.Context, sess *session, payload RunPayload) {
	sess.runMu.Lock()
	defer sess.runMu.Unlock()
	if sess.cancel != nil {
		sess.sendError("busy", "a program is already running")
		return
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if d := s.cfg.RunTimeout.Duration; d > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	sess.cancel = cancel

	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		s.execute(runCtx, sess, payload)

		sess.runMu.Lock()
		sess.cancel()
		sess.cancel = nil
		sess.runMu.Unlock()
	}()
}

func (s *Server) execute(ctx context.Context, sess *session, payload RunPayload) {
	start := time.Now()
	res, err := s.runner.Run(ctx, payload.Source,
		eval.WithInput(strings.NewReader(payload.Input)),
		eval.WithOutput(outputWriter{sess}),
		eval.WithPrompt(""),
	)

	code := 0
	if err != nil {
		code = 1
		p := ErrorPayload{Code: "internal", Message: err.Error()}
		if d, ok := diag.As(err); ok {
			code = diag.ExitCode
			p = ErrorPayload{
				Code:    "diagnostic",
				Class:   d.Kind.Class(),
				Kind:    d.Kind.String(),
				Message: d.Msg,
				Line:    d.Line,
				Column:  d.Column,
			}
		}
		sess.send("error", p)
	}

	elapsed := time.Since(start)
	sess.log.Info("program finished", "fingerprint", res.Fingerprint, "code", code, "elapsed", elapsed)
	if err := sess.send("exit", ExitPayload{
		Code:        code,
		Session:     sess.id,
		Fingerprint: res.Fingerprint,
		Elapsed:     elapsed.String(),
		Globals:     eval.Snapshot(res.Global),
	}); err != nil {
		sess.log.Debug("send failed", "error", err)
	}
}

// outputWriter forwards each PRINT line as an output frame.
type outputWriter struct {
	sess *session
}

func (w outputWriter) Write(p []byte) (int, error) {
	if err := w.sess.send("output", OutputPayload{Data: string(p)}); err != nil {
		return 0, err
	}
	return len(p), nil
}
