package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/casefiler/pkg/models"
)

type providerStub struct {
	createStatus int
	createBody   string
	lastCreate   map[string]interface{}
	navigated    []string
	evaluated    []string
	deleted      []string
	authHeaders  []string
}

func (p *providerStub) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p.authHeaders = append(p.authHeaders, req.Header.Get("Authorization"))
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/v1/sessions", func(w http.ResponseWriter, req *http.Request) {
		json.NewDecoder(req.Body).Decode(&p.lastCreate)
		w.WriteHeader(p.createStatus)
		w.Write([]byte(p.createBody))
	}).Methods("POST")
	r.HandleFunc("/v1/sessions/{id}/navigate", func(w http.ResponseWriter, req *http.Request) {
		var body struct{ URL string }
		json.NewDecoder(req.Body).Decode(&body)
		p.navigated = append(p.navigated, body.URL)
		w.Write([]byte(`{"status":"success"}`))
	}).Methods("POST")
	r.HandleFunc("/v1/sessions/{id}/evaluate", func(w http.ResponseWriter, req *http.Request) {
		var body struct{ Code string }
		json.NewDecoder(req.Body).Decode(&body)
		p.evaluated = append(p.evaluated, body.Code)
		if body.Code == "undefined" {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"result":{"ok":true}}`))
	}).Methods("POST")
	r.HandleFunc("/v1/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		p.deleted = append(p.deleted, id)
		if id == "broken" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods("DELETE")
	r.HandleFunc("/v1/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		switch id := mux.Vars(req)["id"]; id {
		case "gone":
			http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		case "blank":
			w.Write([]byte(`{"id":"blank"}`))
		default:
			w.Write([]byte(`{"id":"` + id + `","status":"RUNNING"}`))
		}
	}).Methods("GET")
	return r
}

func newStub(t *testing.T, p *providerStub) *Client {
	srv := httptest.NewServer(p.router())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret-token", "proj-1", 5*time.Second)
}

func TestCreateSession(t *testing.T) {
	p := &providerStub{
		createStatus: http.StatusCreated,
		createBody:   `{"id":"abc123456789","connectUrl":"ws://localhost:9222","status":"RUNNING"}`,
	}
	c := newStub(t, p)

	h, err := c.CreateSession(context.Background(), models.DefaultSessionConfig())
	require.NoError(t, err)

	assert.Equal(t, "abc123456789", h.ID)
	assert.Equal(t, "ws://localhost:9222", h.ConnectURL)
	assert.Equal(t, models.SessionActive, h.Status)
	assert.False(t, h.CreatedAt.IsZero())
	assert.Equal(t, "proj-1", p.lastCreate["projectId"])
	assert.Equal(t, true, p.lastCreate["keepAlive"])
	assert.Equal(t, []string{"Bearer secret-token"}, p.authHeaders)
}

func TestCreateSession_ProviderError(t *testing.T) {
	p := &providerStub{createStatus: http.StatusTooManyRequests, createBody: "concurrency limit reached"}
	c := newStub(t, p)

	_, err := c.CreateSession(context.Background(), models.DefaultSessionConfig())
	require.ErrorIs(t, err, ErrSessionCreation)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "concurrency limit reached")
}

func TestCreateSession_MalformedBody(t *testing.T) {
	p := &providerStub{createStatus: http.StatusCreated, createBody: `{"status":`}
	c := newStub(t, p)

	_, err := c.CreateSession(context.Background(), models.DefaultSessionConfig())
	assert.ErrorIs(t, err, ErrSessionCreation)
}

func TestCreateSession_MissingID(t *testing.T) {
	p := &providerStub{createStatus: http.StatusCreated, createBody: `{"status":"RUNNING"}`}
	c := newStub(t, p)

	_, err := c.CreateSession(context.Background(), models.DefaultSessionConfig())
	assert.ErrorIs(t, err, ErrSessionCreation)
}

func TestNavigateAndEvaluate(t *testing.T) {
	p := &providerStub{}
	c := newStub(t, p)
	h := models.SessionHandle{ID: "abc"}

	require.NoError(t, c.Navigate(context.Background(), h, "https://taqadi.sjc.gov.qa/itc/"))
	assert.Equal(t, []string{"https://taqadi.sjc.gov.qa/itc/"}, p.navigated)

	res, err := c.Evaluate(context.Background(), h, "1+1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(res))

	res, err = c.Evaluate(context.Background(), h, "undefined")
	require.NoError(t, err)
	assert.Equal(t, "null", string(res))
}

func TestNavigate_TransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "t", "", time.Second)

	err := c.Navigate(context.Background(), models.SessionHandle{ID: "abc"}, "https://example.com")
	assert.ErrorIs(t, err, ErrNavigation)
}

func TestCloseSession_NeverFails(t *testing.T) {
	p := &providerStub{}
	c := newStub(t, p)

	c.CloseSession(context.Background(), models.SessionHandle{ID: "abc"})
	c.CloseSession(context.Background(), models.SessionHandle{ID: "broken"})
	assert.Equal(t, []string{"abc", "broken"}, p.deleted)
}

func TestSessionStatus(t *testing.T) {
	p := &providerStub{}
	c := newStub(t, p)

	status, err := c.SessionStatus(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", status)
	assert.Equal(t, "Bearer secret-token", p.authHeaders[len(p.authHeaders)-1])

	_, err = c.SessionStatus(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "404")

	_, err = c.SessionStatus(context.Background(), "blank")
	assert.ErrorIs(t, err, ErrStatus)
}
