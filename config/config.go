// Package config defines the JSON-backed settings used by cmd/ndsvfs and the
// server packages, following the same load/save shape the teacher used for
// its own settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// Settings holds every knob the mount and the servers built on top of it
// need.
type Settings struct {
	// CartridgePath is the .nds image to mount.
	CartridgePath string `json:"cartridgePath"`
	// CheckCRC requires the header's stored CRC-16 to validate on mount.
	CheckCRC bool `json:"checkCrc"`
	// FNTMaxDepth caps NitroROM directory recursion; 0 means use nitrofs's
	// own default.
	FNTMaxDepth int `json:"fntMaxDepth"`

	HTTPPort int `json:"httpPort"`
	FTPPort  int `json:"ftpPort"`

	FTPUser     string `json:"ftpUser"`
	FTPPassword string `json:"ftpPassword"`

	ServerMOTD string `json:"serverMotd"`

	filePath string
}

// New returns Settings with sane defaults, then loads and re-saves path so
// that any fields missing from an existing file get filled in.
func New(path string) *Settings {
	s := &Settings{
		filePath:    path,
		CheckCRC:    true,
		FNTMaxDepth: 0,
		HTTPPort:    8040,
		FTPPort:     2121,
		FTPUser:     "anonymous",
		FTPPassword: "",
		ServerMOTD:  "ndsvfs",
	}
	s.Load()
	s.Save()
	return s
}

// Load reads the settings file at s.filePath if it exists, overwriting
// defaults with whatever it contains. A missing file is not an error.
func (s *Settings) Load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, s); err != nil {
		log.Warn().Err(err).Str("path", s.filePath).Msg("couldn't parse settings file")
	}
}

// Save writes the current settings back to s.filePath.
func (s *Settings) Save() {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("couldn't marshal settings")
		return
	}
	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		log.Error().Err(err).Str("path", s.filePath).Msg("couldn't write settings file")
	}
}

// Validate checks that the settings are usable before mounting.
func (s *Settings) Validate() error {
	if s.CartridgePath == "" {
		return fmt.Errorf("config: cartridgePath is required")
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("config: invalid httpPort %d", s.HTTPPort)
	}
	if s.FTPPort <= 0 || s.FTPPort > 65535 {
		return fmt.Errorf("config: invalid ftpPort %d", s.FTPPort)
	}
	return nil
}
