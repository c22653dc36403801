package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher downloads files over FTP.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

type ftpTarget struct {
	host     string
	path     string
	user     string
	password string
}

// parseFTPURL extracts host (with port), path and credentials from an FTP URL.
// Without user info the login is anonymous.
func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	tgt := ftpTarget{host: u.Host, path: u.Path, user: "anonymous", password: "anonymous@"}
	if _, _, splitErr := net.SplitHostPort(tgt.host); splitErr != nil {
		tgt.host = net.JoinHostPort(tgt.host, "21")
	}
	if tgt.path == "" {
		return ftpTarget{}, eris.New("empty path in ftp url")
	}
	if u.User != nil {
		tgt.user = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			tgt.password = pw
		}
	}
	return tgt, nil
}

// ftpBody releases the data connection and then the control connection.
type ftpBody struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Close() error {
	err := b.Response.Close()
	if qerr := b.conn.Quit(); err == nil {
		err = qerr
	}
	return eris.Wrap(err, "ftp: close")
}

// Download logs in (anonymously unless the URL carries credentials) and
// streams the file. Closing the body ends the session.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	tgt, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("ftp: retrieving", zap.String("host", tgt.host), zap.String("path", tgt.path))

	conn, err := ftp.Dial(tgt.host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "ftp: dial %s", tgt.host)
	}
	if err := conn.Login(tgt.user, tgt.password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp: login as %s", tgt.user)
	}
	resp, err := conn.Retr(tgt.path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp: retr %s", tgt.path)
	}
	return &ftpBody{Response: resp, conn: conn}, nil
}

// DownloadToFile saves the FTP file to path.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL, path string) (int64, error) {
	body, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck
	return saveAtomic(path, body)
}
