package roomserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Username is the basic auth user the REST endpoints accept.
const Username = "APP"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Development server: any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type createRoomRequest struct {
	CustomSessionID string `json:"customSessionId"`
	RecordingMode   string `json:"recordingMode"`
}

// Routes builds the HTTP surface of the room server.
func Routes(hub *Hub, secret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthCheck)
	r.Get("/ws", serveWs(hub))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.BasicAuth("roomview", map[string]string{Username: secret}))
		r.Post("/rooms", createRoom(hub))
		r.Post("/rooms/{roomID}/connections", createConnection(hub))
	})
	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Room server is healthy."))
}

func createRoom(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid body")
				return
			}
		}

		id, created, err := hub.CreateRoom(r.Context(), req.CustomSessionID)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if !created {
			writeError(w, http.StatusConflict, "room already exists")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "createdAt": time.Now().UnixMilli()})
	}
}

func createConnection(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		token, err := hub.IssueToken(r.Context(), roomID)
		switch {
		case errors.Is(err, ErrRoomNotFound):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": token, "room": roomID})
	}
}

// serveWs upgrades the request and hands the connection to the hub.
func serveWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "error", err)
			return
		}

		client := &Client{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, sendBuffer),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
