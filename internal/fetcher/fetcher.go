// Package fetcher resolves input locations (local paths, http(s):// and
// ftp:// URLs) to local files and parses tabular sources.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Resolver maps an input location to a readable local file. Every remote
// input is downloaded into its own subdirectory of Dir, so URLs sharing a
// base name never collide. With an empty Dir the resolver creates a scratch
// directory on first download and Cleanup removes it.
type Resolver struct {
	HTTP Fetcher
	FTP  Fetcher
	Dir  string

	mu      sync.Mutex
	scratch string
}

// NewResolver builds a Resolver from fetcher options.
func NewResolver(httpOpts HTTPOptions, ftpOpts FTPOptions, dir string) *Resolver {
	return &Resolver{
		HTTP: NewHTTPFetcher(httpOpts),
		FTP:  NewFTPFetcher(ftpOpts),
		Dir:  dir,
	}
}

// IsRemote reports whether src is an http(s) or ftp URL.
func IsRemote(src string) bool {
	switch scheme(src) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

func scheme(src string) string {
	i := strings.Index(src, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(src[:i])
}

// Resolve returns a local path for src. Local paths (and file:// URLs) must
// exist; remote URLs are downloaded keeping their base name so that
// extension-based format detection still works.
func (r *Resolver) Resolve(ctx context.Context, src string) (string, error) {
	switch scheme(src) {
	case "":
		return checkLocal(src)
	case "file":
		u, err := url.Parse(src)
		if err != nil {
			return "", eris.Wrapf(err, "fetcher: parse %s", src)
		}
		return checkLocal(u.Path)
	case "http", "https":
		return r.download(ctx, r.HTTP, src)
	case "ftp":
		return r.download(ctx, r.FTP, src)
	}
	return "", eris.Errorf("fetcher: unsupported scheme in %q", src)
}

func checkLocal(p string) (string, error) {
	if _, err := os.Stat(p); err != nil {
		return "", eris.Wrapf(err, "fetcher: input %s", p)
	}
	return p, nil
}

func (r *Resolver) download(ctx context.Context, f Fetcher, src string) (string, error) {
	if f == nil {
		return "", eris.Errorf("fetcher: no fetcher configured for %s", src)
	}
	u, err := url.Parse(src)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse %s", src)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "download"
	}

	root, err := r.root()
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(root, "dl-*")
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: create download dir in %s", root)
	}

	dst := filepath.Join(dir, name)
	n, err := f.DownloadToFile(ctx, src, dst)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", eris.Wrapf(err, "fetcher: download %s", src)
	}
	zap.L().Info("fetcher: downloaded input",
		zap.String("url", src),
		zap.String("path", dst),
		zap.Int64("bytes", n),
	)
	return dst, nil
}

// root returns the directory that receives per-download subdirectories.
func (r *Resolver) root() (string, error) {
	if r.Dir != "" {
		if err := os.MkdirAll(r.Dir, 0o755); err != nil {
			return "", eris.Wrapf(err, "fetcher: create %s", r.Dir)
		}
		return r.Dir, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scratch == "" {
		dir, err := os.MkdirTemp("", "flood-fetch-*")
		if err != nil {
			return "", eris.Wrap(err, "fetcher: temp dir")
		}
		r.scratch = dir
	}
	return r.scratch, nil
}

// Cleanup removes the scratch directory created for downloads when Dir is
// empty. Files under a configured Dir are kept.
func (r *Resolver) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scratch == "" {
		return nil
	}
	err := os.RemoveAll(r.scratch)
	r.scratch = ""
	return eris.Wrap(err, "fetcher: remove scratch dir")
}

// saveAtomic copies r into path through a sibling temp file so a failed
// transfer never leaves a truncated input behind.
func saveAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return n, eris.Wrapf(err, "fetcher: write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return n, eris.Wrapf(err, "fetcher: rename into %s", path)
	}
	return n, nil
}
