// Package httpserver exposes a vfs.Mount over HTTP: a JSON listing of every
// entry, and byte-range file downloads under /file/.
package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/icrashstuff/ndsvfs/config"
	"github.com/icrashstuff/ndsvfs/vfs"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/log"
)

// Server serves a vfs.Mount's contents over HTTP.
type Server struct {
	mount    *vfs.Mount
	settings *config.Settings
	handler  http.Handler
}

// New builds a Server for mount, configured from settings.
func New(mount *vfs.Mount, settings *config.Settings) *Server {
	s := &Server{mount: mount, settings: settings}
	chain := alice.New(recoverMiddleware, loggingMiddleware)
	s.handler = chain.Then(http.HandlerFunc(s.route))
	return s
}

// Run blocks, serving HTTP until the process exits or ListenAndServe fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.settings.HTTPPort)
	log.Info().Str("addr", addr).Msg("starting http server")
	return http.ListenAndServe(addr, s.handler)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is allowed", http.StatusMethodNotAllowed)
		return
	}

	head, tail := ShiftPath(r.URL.Path)
	switch head {
	case "file":
		r.URL.Path = tail
		s.httpHandleFile(w, r)
	case "list.json":
		s.httpHandleListJSON(w, r)
	case "", "index.html":
		s.httpHandleIndex(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) httpHandleListJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	entries := s.mount.Enumerate()
	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryToJSON(e))
	}
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Error().Err(err).Msg("encoding entry list failed")
		http.Error(w, "encoding failed", http.StatusInternalServerError)
	}
}

func (s *Server) httpHandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	fmt.Fprintf(w, "<html><head><title>%s</title></head><body><h1>%s</h1><ul>\n", s.settings.ServerMOTD, s.mount.Header.FriendlyName())
	for _, e := range s.mount.Enumerate() {
		if e.IsDir {
			continue
		}
		fmt.Fprintf(w, "<li><a href=\"/file/%s\">%s</a> (%d bytes)</li>\n", e.Path, e.Path, e.Size)
	}
	fmt.Fprint(w, "</ul></body></html>")
}

// ShiftPath splits off the front portion of the provided path into head and
// returns the remainder in tail.
func ShiftPath(pathIn string) (head, tail string) {
	pathIn = path.Clean("/" + pathIn)
	i := strings.Index(pathIn[1:], "/") + 1
	if i <= 0 {
		return pathIn[1:], "/"
	}
	return pathIn[1:i], pathIn[i:]
}
