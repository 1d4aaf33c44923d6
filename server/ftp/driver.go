// Package ftp exposes a vfs.Mount as a read-only FTP server, the same way
// the teacher's virtualftp package hosts a synthesized directory listing
// instead of real on-disk paths.
package ftp

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/icrashstuff/ndsvfs/config"
	"github.com/icrashstuff/ndsvfs/vfs"
	"github.com/rs/zerolog/log"
	ftpserver "goftp.io/server/v2"
)

// ErrNotAllowed is returned by every mutating Driver method; the mount is
// always read-only.
var ErrNotAllowed = errors.New("ftp: not allowed")

// Driver adapts a vfs.Mount to goftp.io/server/v2's Driver and Auth
// interfaces.
type Driver struct {
	mount    *vfs.Mount
	settings *config.Settings
}

// NewDriver returns a Driver serving mount, gated by the credentials in
// settings.
func NewDriver(mount *vfs.Mount, settings *config.Settings) *Driver {
	return &Driver{mount: mount, settings: settings}
}

func toVFSPath(p string) string {
	return strings.TrimPrefix(path.Clean(p), "/")
}

func (d *Driver) entryInfo(e vfs.Entry) os.FileInfo {
	name := path.Base(e.Path)
	if e.Path == "" || e.Path == "." {
		name = "/"
	}
	return &fileInfo{name: name, size: int64(e.Size), isDir: e.IsDir}
}

// ListDir implements ftpserver.Driver.
func (d *Driver) ListDir(ctx *ftpserver.Context, p string, callback func(os.FileInfo) error) error {
	vp := toVFSPath(p)
	for _, e := range d.mount.List(vp) {
		if err := callback(d.entryInfo(e)); err != nil {
			return err
		}
	}
	return nil
}

// Stat implements ftpserver.Driver.
func (d *Driver) Stat(ctx *ftpserver.Context, p string) (os.FileInfo, error) {
	vp := toVFSPath(p)
	if vp == "" {
		return &fileInfo{name: "/", isDir: true}, nil
	}
	e, err := d.mount.Stat(vp)
	if err != nil {
		return nil, err
	}
	return d.entryInfo(e), nil
}

// readSeekCloser wraps a bytes.Reader so GetFile can return an io.ReadCloser.
type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error { return nil }

// GetFile implements ftpserver.Driver.
func (d *Driver) GetFile(ctx *ftpserver.Context, p string, offset int64) (int64, io.ReadCloser, error) {
	vp := toVFSPath(p)
	e, err := d.mount.Stat(vp)
	if err != nil {
		return 0, nil, err
	}
	if e.IsDir {
		return 0, nil, fmt.Errorf("ftp: %s is a directory", p)
	}
	if offset < 0 || offset > int64(e.Size) {
		return 0, nil, errors.New("ftp: offset out of range")
	}

	remaining := int64(e.Size) - offset
	data, err := d.mount.Read(vp, offset, remaining)
	if err != nil {
		return 0, nil, err
	}
	r := bytes.NewReader(data)

	username, _ := ctx.Sess.Data["username"].(string)
	log.Info().Str("user", username).Str("path", p).Msg("started ftp stream")

	return remaining, readSeekCloser{r}, nil
}

// PutFile implements ftpserver.Driver. The mount is read-only, so this
// always fails.
func (d *Driver) PutFile(ctx *ftpserver.Context, destPath string, data io.Reader, offset int64) (int64, error) {
	return 0, ErrNotAllowed
}

// DeleteDir implements ftpserver.Driver.
func (d *Driver) DeleteDir(ctx *ftpserver.Context, p string) error { return ErrNotAllowed }

// DeleteFile implements ftpserver.Driver.
func (d *Driver) DeleteFile(ctx *ftpserver.Context, p string) error { return ErrNotAllowed }

// Rename implements ftpserver.Driver.
func (d *Driver) Rename(ctx *ftpserver.Context, fromPath string, toPath string) error {
	return ErrNotAllowed
}

// MakeDir implements ftpserver.Driver.
func (d *Driver) MakeDir(ctx *ftpserver.Context, p string) error { return ErrNotAllowed }

// CheckPasswd implements ftpserver.Auth. Anonymous access is allowed unless
// settings.FTPUser is non-empty, in which case the credentials must match.
func (d *Driver) CheckPasswd(ctx *ftpserver.Context, username string, password string) (bool, error) {
	if d.settings.FTPUser == "" {
		return true, nil
	}
	userMatch := subtle.ConstantTimeCompare([]byte(d.settings.FTPUser), []byte(username)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(d.settings.FTPPassword), []byte(password)) == 1
	return userMatch && passMatch, nil
}
