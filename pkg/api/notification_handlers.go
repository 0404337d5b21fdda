package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/appcuatri/backend/pkg/apierr"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/middleware"
	"github.com/appcuatri/backend/pkg/observability"
	"github.com/appcuatri/backend/pkg/push"
	"github.com/appcuatri/backend/pkg/storage"
)

// NotificationHandlers serves push notification dispatch
type NotificationHandlers struct {
	users   storage.UserStore
	sender  push.Sender
	metrics *observability.Metrics
}

// NewNotificationHandlers creates the notification handler group
func NewNotificationHandlers(users storage.UserStore, sender push.Sender, metrics *observability.Metrics) *NotificationHandlers {
	return &NotificationHandlers{users: users, sender: sender, metrics: metrics}
}

// RegisterRoutes mounts the notification endpoints under /notifications
func (h *NotificationHandlers) RegisterRoutes(router *mux.Router, authMW *middleware.AuthMiddleware) {
	sub := router.PathPrefix("/notifications").Subrouter()
	sub.Use(authMW.RequireAuth)
	sub.HandleFunc("/send", h.Send).Methods("POST")
}

// Send handles POST /api/notifications/send. It multicasts to every
// device token registered by the target user and prunes tokens FCM
// reports as unregistered.
func (h *NotificationHandlers) Send(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		httputil.WriteError(w, r, apierr.New("Notificaciones push no disponibles", http.StatusServiceUnavailable, apierr.CodeInternal))
		return
	}

	var req SendNotificationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, r, apierr.NotFound("Usuario no encontrado", apierr.CodeUserNotFound))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	if len(user.FCMTokens) == 0 {
		httputil.WriteError(w, r, apierr.NotFound("El usuario no tiene tokens de notificación registrados", apierr.CodeNoFCMTokens))
		return
	}

	result, err := h.sender.SendToTokens(r.Context(), user.FCMTokens, push.Notification{
		Title: req.Title,
		Body:  req.Body,
		Data:  req.Data,
	})
	if err != nil {
		h.countSend("error")
		httputil.WriteError(w, r, err)
		return
	}
	h.countSend("success")

	if len(result.StaleTokens) > 0 {
		h.pruneStaleTokens(r, user.ID, user.FCMTokens, result.StaleTokens)
	}

	httputil.WriteSuccess(w, http.StatusOK, result, "Notificación enviada")
}

func (h *NotificationHandlers) pruneStaleTokens(r *http.Request, userID int64, tokens, stale []string) {
	staleSet := make(map[string]bool, len(stale))
	for _, t := range stale {
		staleSet[t] = true
	}
	remaining := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !staleSet[t] {
			remaining = append(remaining, t)
		}
	}

	if err := h.users.SetFCMTokens(r.Context(), userID, remaining); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to prune stale FCM tokens")
		return
	}
	if h.metrics != nil {
		h.metrics.StaleFCMTokensRemoved.Add(float64(len(stale)))
	}
}

func (h *NotificationHandlers) countSend(status string) {
	if h.metrics != nil {
		h.metrics.NotificationsSentTotal.WithLabelValues(status).Inc()
	}
}
