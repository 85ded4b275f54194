package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/duoquiz/duo-server/internal/middleware"
	"github.com/duoquiz/duo-server/internal/sse"
)

type RoomSubscriber interface {
	Subscribe(roomID, userID string) (*sse.Client, error)
	Unsubscribe(client *sse.Client)
}

// EventsHandler streams room events as Server-Sent Events.
type EventsHandler struct {
	broker    RoomSubscriber
	rooms     RoomService
	heartbeat time.Duration
}

func NewEventsHandler(broker RoomSubscriber, rooms RoomService) *EventsHandler {
	return &EventsHandler{
		broker:    broker,
		rooms:     rooms,
		heartbeat: sse.HeartbeatInterval,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomId")
	ctx := r.Context()

	view, err := h.rooms.GetRoom(ctx, roomID)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Streaming not supported"})
		return
	}

	client, err := h.broker.Subscribe(view.ID, userID)
	if err != nil {
		log.Error().Err(err).Str("roomId", view.ID).Msg("failed to subscribe to room events")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "Event stream unavailable"})
		return
	}
	defer h.broker.Unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	log.Info().
		Str("roomId", view.ID).
		Str("userId", userID).
		Msg("sse connection established")

	if err := h.sendEvent(w, flusher, sse.EventConnected, view); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("roomId", view.ID).Str("userId", userID).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("roomId", view.ID).Str("userId", userID).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Debug().Err(err).Msg("failed to send event")
				return
			}
			if event.Type == sse.EventRoomDeleted {
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("roomId", view.ID).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
