package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"studybuddy-chat/internal/models"
	"studybuddy-chat/internal/observability"
)

type authenticator interface {
	Authenticate(ctx context.Context, authField, header string) (models.User, error)
}

// Handler authenticates websocket handshakes and serves the connections.
type Handler struct {
	hub      *Hub
	router   *EventRouter
	fanout   *Fanout
	auth     authenticator
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler. An empty allowedOrigins accepts any origin.
func NewHandler(hub *Hub, router *EventRouter, fanout *Fanout, auth authenticator, allowedOrigins []string) *Handler {
	return &Handler{
		hub:    hub,
		router: router,
		fanout: fanout,
		auth:   auth,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Handle authenticates the handshake, upgrades, and starts the pumps. The
// token comes from the "token" query field or the Authorization header.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("studybuddy-chat/ws").Start(c.Request.Context(), "ws.handshake", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, err := h.auth.Authenticate(ctx, c.Query("token"), c.GetHeader("Authorization"))
	if err != nil {
		span.SetStatus(codes.Error, "unauthenticated")
		observability.IncWSEvent("ws_auth_failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication error"})
		return
	}

	span.SetAttributes(attribute.String("user.id", user.ID))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(info.ConnID, &user, info, conn, h.hub.sendBuffer)
	h.hub.Register(client)

	observability.IncWSActive()
	publishLifecycle(context.Background(), "ws_connect", info, "")

	go client.writePump()
	go h.serve(client)
}

func (h *Handler) serve(client *Client) {
	var closeReason string
	defer func() {
		h.hub.Unregister(client)
		client.conn.Close()
		observability.DecWSActive()
		publishLifecycle(context.Background(), "ws_disconnect", client.info, closeReason)
	}()

	err := client.readPump(func(raw []byte) {
		h.dispatch(context.Background(), client, raw)
	})
	closeReason = err.Error()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		publishLifecycle(context.Background(), "ws_error", client.info, closeReason)
	}
}
