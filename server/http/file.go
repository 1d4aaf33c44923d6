package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/icrashstuff/ndsvfs/vfs"
)

// ErrInvalidHeader is returned when a Range header can't be parsed.
var ErrInvalidHeader = errors.New("httpserver: invalid range header")

// statVirtualPath resolves an HTTP URL path to a vfs path and its size,
// without reading any file data.
func (s *Server) statVirtualPath(p string) (vp string, name string, size int64, err error) {
	vp = strings.TrimPrefix(path.Clean("/"+p), "/")
	e, err := s.mount.Stat(vp)
	if err != nil {
		return "", "", 0, fmt.Errorf("couldn't stat %s: %w", p, err)
	}
	if e.IsDir {
		return "", "", 0, fmt.Errorf("%s is a directory", p)
	}
	return vp, path.Base(vp), int64(e.Size), nil
}

func parseRangeHeader(rangeHeader string) (int64, int64, error) {
	rangeHeader = strings.ReplaceAll(rangeHeader, "bytes=", "")
	rangeSplit := strings.Split(rangeHeader, "-")
	if len(rangeSplit) != 2 {
		return 0, 0, ErrInvalidHeader
	}
	startB, err := strconv.ParseInt(rangeSplit[0], 10, 64)
	if err != nil {
		return 0, 0, ErrInvalidHeader
	}
	endB, err := strconv.ParseInt(rangeSplit[1], 10, 64)
	if err != nil {
		return 0, 0, ErrInvalidHeader
	}
	return startB, endB, nil
}

func (s *Server) httpHandleFile(w http.ResponseWriter, r *http.Request) {
	vp, name, size, err := s.statVirtualPath(r.URL.Path)
	if err != nil {
		http.Error(w, "path not found", http.StatusNotFound)
		return
	}

	w.Header().Add("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Add("Accept-Ranges", "bytes")

	rangeHeader, ok := r.Header["Range"]
	if !ok {
		data, err := s.mount.Read(vp, 0, size)
		if err != nil {
			http.Error(w, "failed to read file", http.StatusInternalServerError)
			return
		}
		w.Header().Add("Content-Length", strconv.FormatInt(size, 10))
		_, _ = w.Write(data)
		return
	}

	startB, endB, err := parseRangeHeader(rangeHeader[0])
	if err != nil || startB < 0 || endB < startB || endB >= size {
		http.Error(w, "invalid range bytes", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	data, err := s.mount.Read(vp, startB, endB-startB+1)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Range", fmt.Sprintf("bytes %d-%d/%d", startB, endB, size))
	w.Header().Add("Content-Length", strconv.FormatInt(endB-startB+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(data)
}

func entryToJSON(e vfs.Entry) map[string]interface{} {
	return map[string]interface{}{
		"path":  e.Path,
		"isDir": e.IsDir,
		"size":  e.Size,
	}
}
