package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jwebster45206/rule-horror/internal/handlers"
	"github.com/jwebster45206/rule-horror/internal/services/events"
	"github.com/jwebster45206/rule-horror/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions/{key}/commands", func(w http.ResponseWriter, r *http.Request) {
		var req chat.CommandRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Command {
		case "join":
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(chat.CommandResponse{Status: "solo_mode", Messages: []string{"This is a solo game."}})
		case "":
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(handlers.ErrorResponse{Error: "command cannot be empty"})
		default:
			_ = json.NewEncoder(w).Encode(chat.CommandResponse{OK: true, Status: "ok", Messages: []string{r.PathValue("key") + ":" + req.Args}})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(srv.URL+"/", nil)
	ctx := context.Background()

	resp, code, err := c.Command(ctx, "night ward", chat.CommandRequest{PlayerID: "ann", Command: "act", Args: "wait"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.OK)
	assert.Equal(t, []string{"night ward:wait"}, resp.Messages)

	resp, code, err = c.Command(ctx, "ward", chat.CommandRequest{PlayerID: "bob", Command: "join"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, resp.OK)
	assert.Equal(t, "solo_mode", resp.Status)

	_, code, err = c.Command(ctx, "ward", chat.CommandRequest{PlayerID: "bob"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "command cannot be empty", apiErr.Message)
}

func TestSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/{key}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("key") {
		case "ward":
			_ = json.NewEncoder(w).Encode(handlers.SessionView{Key: "ward", SceneName: "Pine Hill", Active: true})
		case "broken":
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(handlers.ErrorResponse{Error: "storage unavailable"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(srv.URL, srv.Client())
	ctx := context.Background()

	view, err := c.Session(ctx, "ward")
	require.NoError(t, err)
	assert.Equal(t, "Pine Hill", view.SceneName)

	view, err = c.Session(ctx, "attic")
	require.NoError(t, err)
	assert.Nil(t, view)

	_, err = c.Session(ctx, "broken")
	assert.EqualError(t, err, "API returned status 503: storage unavailable")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL, nil).Health(context.Background()))
	srv.Close()
	assert.Error(t, New(srv.URL, nil).Health(context.Background()))
}

func TestEvents(t *testing.T) {
	joined, err := json.Marshal(events.Event{Type: events.EventTypePlayerJoined, SessionKey: "ward", PlayerID: "bob", Data: map[string]any{"name": "Bob"}})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: connected\ndata: {\"session_key\":\"ward\"}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: player.joined\ndata: not json\n\n")
		fmt.Fprintf(w, "event: player.joined\ndata: %s\n\n", joined)
	}))
	defer srv.Close()

	out := make(chan events.Event, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, New(srv.URL, nil).Events(ctx, "ward", out))
	close(out)

	var got []events.Event
	for ev := range out {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, events.EventTypePlayerJoined, got[0].Type)
	assert.Equal(t, "Bob", got[0].Data["name"])
}

func TestEvents_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(handlers.ErrorResponse{Error: "Events are not enabled."})
	}))
	defer srv.Close()

	err := New(srv.URL, nil).Events(context.Background(), "ward", make(chan events.Event))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
}
