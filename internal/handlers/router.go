package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/murmurnet/murmur/internal/auth"
	"github.com/murmurnet/murmur/internal/metrics"
)

// NewRouter wires the REST surface, the websocket endpoint, and the ops
// endpoints.
func NewRouter(h *Handler, authMW *auth.Middleware, m *metrics.Metrics, gatherer prometheus.Gatherer, corsOrigins []string) http.Handler {
	r := mux.NewRouter()

	// Auth.
	r.HandleFunc("/auth/signup", h.rateLimited(h.SignupHandler)).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify", h.rateLimited(h.VerifyHandler)).Methods(http.MethodPost)
	r.HandleFunc("/auth/resend", h.rateLimited(h.ResendCodeHandler)).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.rateLimited(h.LoginHandler)).Methods(http.MethodPost)

	// Posts. The search route registers before the {id} route so "search"
	// never parses as a post id.
	r.HandleFunc("/posts/search", h.SearchPostsHandler).Methods(http.MethodGet)
	r.HandleFunc("/posts", h.ListPostsHandler).Methods(http.MethodGet)
	r.HandleFunc("/posts", authMW.RequireAuth(h.CreatePostHandler)).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}", h.GetPostHandler).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", authMW.RequireAuth(h.UpdatePostHandler)).Methods(http.MethodPatch)
	r.HandleFunc("/posts/{id}", authMW.RequireAuth(h.DeletePostHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/posts/{id}/likePost", authMW.RequireAuth(h.LikePostHandler)).Methods(http.MethodPatch)
	r.HandleFunc("/posts/{id}/commentPost", authMW.RequireAuth(h.CommentPostHandler)).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/comments/{commentId}/like", authMW.RequireAuth(h.LikeCommentHandler)).Methods(http.MethodPatch)
	r.HandleFunc("/posts/{id}/share", authMW.RequireAuth(h.SharePostHandler)).Methods(http.MethodPatch)

	// Users and notifications. Fixed segments register before {id}.
	r.HandleFunc("/user/search", h.SearchUsersHandler).Methods(http.MethodGet)
	r.HandleFunc("/user/notifications", authMW.RequireAuth(h.ListNotificationsHandler)).Methods(http.MethodGet)
	r.HandleFunc("/user/notifications/unread", authMW.RequireAuth(h.UnreadCountHandler)).Methods(http.MethodGet)
	r.HandleFunc("/user/notifications/read", authMW.RequireAuth(h.MarkReadHandler)).Methods(http.MethodPatch)
	r.HandleFunc("/user/notifications", authMW.RequireAuth(h.ClearNotificationsHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/user/{id}", h.GetUserHandler).Methods(http.MethodGet)
	r.HandleFunc("/user/{id}", authMW.RequireAuth(h.UpdateUserHandler)).Methods(http.MethodPatch)
	r.HandleFunc("/user/{id}", authMW.RequireAuth(h.DeleteUserHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/user/{id}/follow", authMW.RequireAuth(h.FollowHandler)).Methods(http.MethodPatch)
	r.HandleFunc("/user/{id}/unfollow", authMW.RequireAuth(h.UnfollowHandler)).Methods(http.MethodPatch)

	// Chat.
	r.HandleFunc("/message/chat", authMW.RequireAuth(h.CreateChatHandler)).Methods(http.MethodPost)
	r.HandleFunc("/message/chats", authMW.RequireAuth(h.ListChatsHandler)).Methods(http.MethodGet)
	r.HandleFunc("/message", authMW.RequireAuth(h.SendMessageHandler)).Methods(http.MethodPost)
	r.HandleFunc("/message/{id}", authMW.RequireAuth(h.DeleteMessageHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/message/{chatId}", authMW.RequireAuth(h.GetMessagesHandler)).Methods(http.MethodGet)

	// Realtime.
	r.HandleFunc("/ws", authMW.RequireAuth(h.WebSocketHandler(corsOrigins)))

	// Ops.
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return corsMiddleware(corsOrigins, countRequests(m, r))
}

// countRequests increments the request counter by method and status class.
func countRequests(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		class := fmt.Sprintf("%dxx", recorder.status/100)
		m.HTTPRequests.WithLabelValues(r.Method, class).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// corsMiddleware answers preflights and stamps allow headers for origins on
// the configured list.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods",
				strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete}, ", "))
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
