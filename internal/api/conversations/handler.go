package conversations

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/conversations"
	"github.com/Vasu1712/campus-marketplace/internal/httputil"
	"github.com/Vasu1712/campus-marketplace/internal/metrics"
	"github.com/Vasu1712/campus-marketplace/internal/middleware"
	"github.com/Vasu1712/campus-marketplace/internal/models"
	"github.com/Vasu1712/campus-marketplace/internal/realtime"
)

type Handler struct {
	Service  *conversations.Service
	Hub      *realtime.Hub
	Upgrader *websocket.Upgrader
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	convs, err := h.Service.GetUserConversations(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, convs)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	conv, err := h.Service.GetConversation(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, conv)
}

// Create starts a conversation. The caller is always added as a participant.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	var req models.NewConversation
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.ParticipantIDs = append([]string{user.ID}, req.ParticipantIDs...)

	conv, err := h.Service.CreateConversation(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, conv)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	var req struct {
		Content string `json:"content"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	msg, err := h.Service.SendMessage(r.Context(), models.NewMessage{
		ConversationID: mux.Vars(r)["id"],
		Content:        req.Content,
	}, user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

// ServeWS streams new messages of one conversation to a participant.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	convID := mux.Vars(r)["id"]
	if !h.Service.IsParticipant(r.Context(), convID, user.ID) {
		httputil.WriteError(w, apperr.AccessDenied("Access denied to this conversation"))
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.WithError(err).WithField("conversation_id", convID).Warn("websocket upgrade failed")
		return
	}
	if h.Metrics != nil {
		h.Metrics.WebsocketOpened()
		defer h.Metrics.WebsocketClosed()
	}
	realtime.Serve(h.Hub, conn, convID, user.ID, h.Log)
}
