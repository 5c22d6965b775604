package handlers

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"syncdisplay/internal/observability"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Presentation *PresentationHandler
	Decks        *DeckHandler
	Clickers     *ClickerHandler
	WebSocket    *WebSocketHandler

	// Static serves the control and kiosk pages; optional.
	Static http.Handler
}

// SetupRoutes builds the router with request logging and CORS.
func SetupRoutes(h Handlers, corsOrigins []string, log *observability.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(log.WithComponent("http")))

	api := r.PathPrefix("/api").Subrouter()

	// Presentation
	api.HandleFunc("/presentation/state", h.Presentation.GetState).Methods("GET")
	api.HandleFunc("/presentation/start", h.Presentation.Start).Methods("POST")
	api.HandleFunc("/presentation/stop", h.Presentation.Stop).Methods("POST")
	api.HandleFunc("/presentation/navigate", h.Presentation.Navigate).Methods("POST")
	api.HandleFunc("/presentation/relative", h.Presentation.Relative).Methods("POST")
	api.HandleFunc("/presentation/key", h.Presentation.Key).Methods("POST")
	api.HandleFunc("/presentation/clear", h.Presentation.Clear).Methods("POST")
	api.HandleFunc("/presentation/show", h.Presentation.Show).Methods("POST")
	api.HandleFunc("/presentation/fade", h.Presentation.SetFade).Methods("POST")
	api.HandleFunc("/presentation/sync", h.Presentation.SetSync).Methods("POST")
	api.HandleFunc("/settings", h.Presentation.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.Presentation.PutSettings).Methods("PUT")

	// Decks
	api.HandleFunc("/decks", h.Decks.ListDecks).Methods("GET")
	api.HandleFunc("/decks/{language}/convert", h.Decks.ConvertDeck).Methods("POST")
	api.HandleFunc("/decks/{language}/reload", h.Decks.ReloadDeck).Methods("POST")
	r.HandleFunc("/slides/{language}/{file}", h.Decks.ServeSlide).Methods("GET", "HEAD")

	// Clickers
	api.HandleFunc("/clicker/press", h.Clickers.Press).Methods("POST")
	api.HandleFunc("/clicker/register", h.Clickers.Register).Methods("POST")
	api.HandleFunc("/clicker/list", h.Clickers.List).Methods("GET")
	api.HandleFunc("/clicker/{mac}", h.Clickers.Update).Methods("PUT")
	api.HandleFunc("/clicker/{mac}", h.Clickers.Delete).Methods("DELETE")

	// Displays
	api.HandleFunc("/displays", h.WebSocket.ListDisplays).Methods("GET")
	r.HandleFunc("/ws/display/{outputId}", h.WebSocket.ServeDisplay)
	r.HandleFunc("/ws/control", h.WebSocket.ServeControl)

	if h.Static != nil {
		r.PathPrefix("/").Handler(h.Static)
	}

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})
	return corsHandler.Handler(r)
}

func loggingMiddleware(log *observability.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Msg("Request")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}
