package proxy

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/casefiler/internal/session"
	"github.com/shehryarbajwa/casefiler/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TargetResolver finds the provider connect URL of an open submission
type TargetResolver interface {
	LiveTarget(tenantID, submissionID string) (string, error)
}

// Server bridges an operator's websocket to the provider session under
// review
type Server struct {
	targets     TargetResolver
	dialer      *websocket.Dialer
	dialTimeout time.Duration
}

// NewServer creates a live view proxy
func NewServer(targets TargetResolver) *Server {
	return &Server{
		targets:     targets,
		dialer:      websocket.DefaultDialer,
		dialTimeout: 10 * time.Second,
	}
}

// HandleLiveConnection upgrades the request and relays frames both ways
// until either side closes
func (s *Server) HandleLiveConnection(w http.ResponseWriter, r *http.Request, tenantID, submissionID string) {
	target, err := s.targets.LiveTarget(tenantID, submissionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, "Submission not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Submission has no open session", http.StatusConflict)
		return
	}

	// Dial the provider first so a dead session fails as plain HTTP
	ctx, cancel := context.WithTimeout(r.Context(), s.dialTimeout)
	defer cancel()

	upstream, _, err := s.dialer.DialContext(ctx, target, nil)
	if err != nil {
		log.Printf("❌ Failed to reach session for submission %s: %v", models.ShortID(submissionID), err)
		http.Error(w, "Session unreachable", http.StatusBadGateway)
		return
	}
	defer upstream.Close()

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer clientConn.Close()

	log.Printf("✓ Operator attached to submission %s", models.ShortID(submissionID))

	errChan := make(chan error, 2)

	go func() {
		errChan <- s.proxyMessages(clientConn, upstream, "operator→session")
	}()
	go func() {
		errChan <- s.proxyMessages(upstream, clientConn, "session→operator")
	}()

	// Wait for either direction to close
	err = <-errChan
	if err != nil && err != io.EOF && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Printf("Proxy error for submission %s: %v", models.ShortID(submissionID), err)
	}

	log.Printf("🔌 Operator detached from submission %s", models.ShortID(submissionID))
}

func (s *Server) proxyMessages(src, dst *websocket.Conn, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error (%s): %v", direction, err)
			}
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			log.Printf("Failed to write message (%s): %v", direction, err)
			return err
		}
	}
}
