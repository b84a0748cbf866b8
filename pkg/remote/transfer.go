package remote

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"

	"github.com/arthur-debert/rollout/pkg/errors"
)

// sftpPath makes ~-relative paths relative to the login directory, which
// is where the SFTP subsystem starts.
func sftpPath(p string) string {
	switch {
	case p == "~":
		return "."
	case strings.HasPrefix(p, "~/"):
		return strings.TrimPrefix(p, "~/")
	}
	return p
}

func (s *sshSession) sftp() (*sftp.Client, error) {
	if s.IsClosed() {
		return nil, errors.Newf(errors.ErrConnection, "session to %s is closed", s.host)
	}
	c, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, connectionError(err, s.host, "could not start sftp on")
	}
	return c, nil
}

func (s *sshSession) Upload(ctx context.Context, local, remote string) error {
	s.logger.Debug().Str("local", local).Str("remote", remote).Msg("Uploading")

	client, err := s.sftp()
	if err != nil {
		return err
	}
	defer client.Close()

	dst := sftpPath(remote)
	if strings.HasSuffix(remote, "/") {
		dst = path.Join(dst, filepath.Base(local))
	} else if info, err := client.Stat(dst); err == nil && info.IsDir() {
		dst = path.Join(dst, filepath.Base(local))
	}

	src, err := os.Open(local)
	if err != nil {
		return transferError(err, s.host, "could not open %s", local)
	}
	defer src.Close()

	out, err := client.Create(dst)
	if err != nil {
		return transferError(err, s.host, "could not create %s", dst)
	}
	if _, err := copyContext(ctx, out, src); err != nil {
		_ = out.Close()
		return transferError(err, s.host, "upload of %s failed", local)
	}
	if err := out.Close(); err != nil {
		return transferError(err, s.host, "upload of %s failed", local)
	}
	return nil
}

func (s *sshSession) Download(ctx context.Context, remote, local string) error {
	s.logger.Debug().Str("local", local).Str("remote", remote).Msg("Downloading")

	client, err := s.sftp()
	if err != nil {
		return err
	}
	defer client.Close()

	src := sftpPath(remote)
	in, err := client.Open(src)
	if err != nil {
		return transferError(err, s.host, "could not open %s", remote)
	}
	defer in.Close()

	dst := local
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		dst = filepath.Join(local, path.Base(src))
	}
	out, err := os.Create(dst)
	if err != nil {
		return transferError(err, s.host, "could not create %s", dst)
	}
	if _, err := copyContext(ctx, out, in); err != nil {
		_ = out.Close()
		return transferError(err, s.host, "download of %s failed", remote)
	}
	if err := out.Close(); err != nil {
		return transferError(err, s.host, "download of %s failed", remote)
	}
	return nil
}

func transferError(err error, host, format string, args ...interface{}) error {
	return errors.Wrapf(err, errors.ErrResource, format, args...).WithDetail("host", host)
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

// copyContext stops between chunks once ctx is done.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, readerFunc(func(p []byte) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return src.Read(p)
	}))
}
