package ftp

import (
	"github.com/icrashstuff/ndsvfs/config"
	"github.com/icrashstuff/ndsvfs/vfs"
	"github.com/rs/zerolog/log"
	ftpserver "goftp.io/server/v2"
)

// Server wraps a goftp.io/server/v2 Server bound to a Driver.
type Server struct {
	server *ftpserver.Server
}

// New builds an FTP server exposing mount, configured from settings.
func New(mount *vfs.Mount, settings *config.Settings) (*Server, error) {
	driver := NewDriver(mount, settings)
	perm := ftpserver.NewSimplePerm("nobody", "nobody")
	opt := &ftpserver.Options{
		Name:           "ndsvfs",
		Driver:         driver,
		Port:           settings.FTPPort,
		Auth:           driver,
		Perm:           perm,
		WelcomeMessage: settings.ServerMOTD,
	}
	s, err := ftpserver.NewServer(opt)
	if err != nil {
		return nil, err
	}
	return &Server{server: s}, nil
}

// Start blocks, serving FTP connections until Stop is called.
func (s *Server) Start() {
	if err := s.server.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("ftp server stopped")
	}
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server != nil {
		_ = s.server.Shutdown()
	}
}
