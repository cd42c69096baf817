// Package server serves the status page and the WebSocket control channel.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	"github.com/soar/padmux/internal/control"
	"github.com/soar/padmux/internal/hub"
)

type Server struct {
	hub         *hub.Hub
	broadcaster *hub.Broadcaster
	ctl         *control.Controller
	frontendFS  fs.FS
	addr        string
	httpServer  *http.Server
	page        []byte
}

func New(h *hub.Hub, b *hub.Broadcaster, ctl *control.Controller, frontendFS fs.FS, addr string) (*Server, error) {
	page, err := minifyPage(frontendFS, "index.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		hub:         h,
		broadcaster: b,
		ctl:         ctl,
		frontendFS:  frontendFS,
		addr:        addr,
		page:        page,
	}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s, nil
}

// minifyPage loads an HTML page and minifies it along with its inline
// styles and scripts.
func minifyPage(fsys fs.FS, name string) ([]byte, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("text/javascript", js.Minify)
	page, err := m.Bytes("text/html", raw)
	if err != nil {
		return nil, fmt.Errorf("minify %s: %w", name, err)
	}
	return page, nil
}

// Handler routes the page, static files and the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", handleWebSocket(s.hub, s.broadcaster, commander{s.ctl}))

	fileServer := http.FileServer(http.FS(s.frontendFS))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || strings.EqualFold(r.URL.Path, "/index.html") {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write(s.page)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
	return mux
}

// ListenAndServe serves until Shutdown. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	log.Printf("HTTP server listening on http://%s", ln.Addr())
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
