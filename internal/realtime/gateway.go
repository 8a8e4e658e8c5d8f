package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"jobboard-messaging/internal/auth"
	"jobboard-messaging/internal/domain"
	"jobboard-messaging/internal/usecase"
)

const (
	maxFrameBytes    = 64 << 10
	defaultOpTimeout = 10 * time.Second
)

// ProfileSource resolves the connecting user's display profile.
type ProfileSource interface {
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

// Gateway serves the websocket endpoint. Each socket gets its own
// usecase.Session, so one socket has at most one live message stream.
type Gateway struct {
	svc      *usecase.Service
	verifier auth.Verifier
	profiles ProfileSource
	validate *validator.Validate
	upgrader websocket.Upgrader
	logger   *slog.Logger

	opTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*Connection
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithAllowedOrigins restricts browser origins. Without it any origin is accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(g *Gateway) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
		}
		g.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

func NewGateway(svc *usecase.Service, verifier auth.Verifier, profiles ProfileSource, opts ...Option) (*Gateway, error) {
	if svc == nil {
		return nil, errors.New("realtime: service must not be nil")
	}
	if verifier == nil {
		return nil, errors.New("realtime: verifier must not be nil")
	}
	if profiles == nil {
		return nil, errors.New("realtime: profile source must not be nil")
	}
	g := &Gateway{
		svc:      svc,
		verifier: verifier,
		profiles: profiles,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:    slog.Default(),
		opTimeout: defaultOpTimeout,
		conns:     make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway")
	return g, nil
}

// Register mounts the gateway routes.
func (g *Gateway) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/ws", g.handleSocket)
}

// Close disconnects every socket.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.conns = make(map[string]*Connection)
	g.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutdown")
	}
}

// ConnectionCount reports the number of open sockets.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

func (g *Gateway) handleSocket(c *gin.Context) {
	userID, err := g.authenticate(c)
	if err != nil {
		g.logger.Info("websocket rejected", "err", err)
		c.JSON(http.StatusUnauthorized, errorFrame{
			Type:    frameError,
			Code:    string(usecase.ErrorNotAuthenticated),
			Message: (&usecase.Error{Code: usecase.ErrorNotAuthenticated}).Message(),
		})
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		g.logger.Debug("upgrade failed", "user_id", userID, "err", err)
		return
	}

	conn := NewConnection(userID, ws, g.logger)
	conn.Start()
	g.track(conn)
	defer func() {
		g.untrack(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	_ = conn.SendFrame(connectedFrame{Type: frameConnected, UserID: userID})

	sess, err := g.svc.OpenSession(ctx, g.profile(ctx, userID), observerFor(conn, userID))
	if err != nil {
		_ = conn.SendFrame(newErrorFrame("", err))
		return
	}
	defer sess.Close()

	g.readLoop(ctx, conn, ws, sess)
}

func (g *Gateway) authenticate(c *gin.Context) (string, error) {
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		// Browsers cannot set headers on websocket upgrades.
		token = strings.TrimSpace(c.Query("token"))
	}
	return g.verifier.Verify(c.Request.Context(), token)
}

func (g *Gateway) profile(ctx context.Context, userID string) domain.UserProfile {
	p, err := g.profiles.GetUserProfile(ctx, userID)
	if err != nil {
		g.logger.Warn("profile lookup failed", "user_id", userID, "err", err)
	}
	if err != nil || p == nil {
		return domain.UserProfile{ID: userID, FullName: domain.UnknownUserName}
	}
	out := *p
	out.ID = userID
	return out
}

func (g *Gateway) readLoop(ctx context.Context, conn *Connection, ws *websocket.Conn, sess *usecase.Session) {
	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				conn.logger.Info("websocket read ended", "err", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = conn.SendFrame(newErrorFrame("", &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "malformed_frame", Err: err}))
			continue
		}
		if err := g.validate.Struct(frame); err != nil {
			_ = conn.SendFrame(newErrorFrame(frame.Ref, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_frame", Err: err}))
			continue
		}

		opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
		reply := g.dispatch(opCtx, sess, frame)
		cancel()
		_ = conn.SendFrame(reply)
	}
}

func (g *Gateway) dispatch(ctx context.Context, sess *usecase.Session, f inboundFrame) any {
	ack := ackFrame{Type: frameAck, Ref: f.Ref, Command: f.Type, ConversationID: f.ConversationID}
	var err error
	switch f.Type {
	case frameStart:
		ack.ConversationID, err = sess.StartConversation(ctx, f.OtherUserID, domain.JobRef{ID: f.JobID, Title: f.JobTitle})
	case frameSelect:
		err = sess.SelectConversation(ctx, f.ConversationID)
	case frameSend:
		var msg domain.Message
		msg, err = sess.SendMessage(ctx, usecase.MessageDraft{
			Content:  f.Content,
			Type:     f.MessageType,
			MediaURL: f.MediaURL,
			ReplyTo:  f.ReplyTo,
		})
		if err == nil {
			ack.Message = &msg
			ack.ConversationID = msg.ConversationID
		}
	case frameTyping:
		err = sess.SetTyping(ctx, *f.Value)
	case frameRead:
		err = sess.MarkAsRead(ctx, f.ConversationID)
	case frameRemove:
		err = sess.RemoveConversation(ctx, f.ConversationID)
	case framePin:
		err = sess.SetPinned(ctx, f.ConversationID, *f.Value)
	case frameArchive:
		err = sess.SetArchived(ctx, f.ConversationID, *f.Value)
	}
	if err != nil {
		g.logger.Debug("command failed", "command", f.Type, "user_id", sess.User().ID, "err", err)
		return newErrorFrame(f.Ref, err)
	}
	return ack
}

func (g *Gateway) track(conn *Connection) {
	g.mu.Lock()
	g.conns[conn.ID] = conn
	g.mu.Unlock()
}

func (g *Gateway) untrack(conn *Connection) {
	g.mu.Lock()
	delete(g.conns, conn.ID)
	g.mu.Unlock()
}

// observerFor pushes session views to the socket. It never blocks: a full
// buffer closes the connection instead.
func observerFor(conn *Connection, userID string) usecase.Observer {
	return usecase.ObserverFuncs{
		Conversations: func(convs []domain.Conversation) {
			_ = conn.SendFrame(conversationsFrame{
				Type:          frameConversations,
				Conversations: convs,
				TotalUnread:   domain.TotalUnread(convs, userID),
			})
		},
		Messages: func(conversationID string, msgs []domain.Message) {
			_ = conn.SendFrame(messagesFrame{Type: frameMessages, ConversationID: conversationID, Messages: msgs})
		},
	}
}

func asUsecaseError(err error) (*usecase.Error, bool) {
	var ue *usecase.Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
