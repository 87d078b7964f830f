package models

import "time"

// SessionStatus represents the local view of a remote browser session
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// SessionHandle identifies one live remote browser session.
// It is passed by value through every provider call; nothing holds it globally.
type SessionHandle struct {
	ID         string        `json:"id"`
	ConnectURL string        `json:"connectUrl,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	Status     SessionStatus `json:"status"`
}

// ShortID returns the first 8 characters of the session ID for log lines
func (h SessionHandle) ShortID() string {
	return ShortID(h.ID)
}

// ShortID truncates an identifier to 8 characters
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Viewport is the browser window size requested from the provider
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SessionConfig is the payload for creating a new remote session
type SessionConfig struct {
	ProjectID      string   `json:"projectId,omitempty"`
	ContextID      string   `json:"contextId,omitempty"`
	Viewport       Viewport `json:"viewport"`
	Locales        []string `json:"locales,omitempty"`
	KeepAlive      bool     `json:"keepAlive"`
	TimeoutSeconds int      `json:"timeout,omitempty"`
}

// DefaultSessionConfig mirrors what the portal needs: an Arabic locale,
// a desktop viewport and a session that outlives the automation so an
// operator can review it.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Viewport:       Viewport{Width: 1920, Height: 1080},
		Locales:        []string{"ar-QA", "ar"},
		KeepAlive:      true,
		TimeoutSeconds: 1800,
	}
}
