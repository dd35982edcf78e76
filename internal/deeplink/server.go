package deeplink

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"gig-marketplace/client/internal/identity/service"
	"gig-marketplace/client/internal/platform/errkind"
)

// fromFragment marks a request re-issued by the bounce page with the fragment moved to the query.
const fromFragment = "from_fragment"

// Server is the loopback HTTP receiver for OAuth redirects on desktop and dev builds.
type Server struct {
	Addr       string
	dispatcher *Dispatcher
	results    chan error
}

// NewServer returns a server listening on addr (e.g. 127.0.0.1:8765) once started.
func NewServer(addr string, dispatcher *Dispatcher) *Server {
	return &Server{Addr: addr, dispatcher: dispatcher, results: make(chan error, 1)}
}

// CallbackURL is the redirect target to register with the provider.
func (s *Server) CallbackURL() string {
	return "http://" + s.Addr + "/auth/callback"
}

// Results receives the outcome of each handled callback (nil on success). Outcomes are dropped
// when nobody is reading.
func (s *Server) Results() <-chan error { return s.results }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.NoCache)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/auth/callback", s.handleCallback)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("deeplink: listen %s: %w", s.Addr, err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	log.Printf("deeplink: listening on %s", ln.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	carriesResult := q.Has("access_token") || q.Has("refresh_token") || q.Has("error")
	if !carriesResult && !q.Has(fromFragment) {
		// Tokens may be in the fragment, which browsers never send; bounce it into the query.
		writePage(w, http.StatusOK, bouncePage, nil)
		return
	}

	u := *r.URL
	u.Scheme = "http"
	u.Host = r.Host
	_, err := s.dispatcher.Deliver(r.Context(), u.String())
	s.report(err)

	switch {
	case err == nil:
		writePage(w, http.StatusOK, resultPage, resultData{Title: "Signed in", Message: "You can close this window and return to the app."})
	case errors.Is(err, service.ErrUnsolicitedCallback):
		writePage(w, http.StatusConflict, resultPage, resultData{Title: "No sign-in in progress", Message: "Start signing in from the app, then try again."})
	default:
		writePage(w, http.StatusBadRequest, resultPage, resultData{Title: "Sign-in failed", Message: errkind.UserMessage(err)})
	}
}

func (s *Server) report(err error) {
	select {
	case s.results <- err:
	default:
	}
}

type resultData struct {
	Title   string
	Message string
}

var (
	bouncePage = template.Must(template.New("bounce").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Signing in…</title></head>
<body><p>Signing in…</p>
<script>
var f = window.location.hash.substring(1);
window.location.replace(window.location.pathname + "?" + (f ? f + "&" : "") + "` + fromFragment + `=1");
</script>
</body></html>`))
	resultPage = template.Must(template.New("result").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><h1>{{.Title}}</h1><p>{{.Message}}</p></body></html>`))
)

func writePage(w http.ResponseWriter, status int, t *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.Execute(w, data); err != nil {
		log.Printf("deeplink: render page: %v", err)
	}
}
