// Package archive writes flat file sets to a directory, a zip file or a
// zstd-compressed tar stream.
//
// Writers take entries in the order they are added and write them verbatim;
// callers sort entries when they need reproducible output. Timestamps are
// fixed so the same entries always produce the same bytes.
package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Format selects an output kind.
type Format string

const (
	FormatDir    Format = "dir"
	FormatZip    Format = "zip"
	FormatTarZst Format = "tar.zst"
)

// Formats lists all supported formats.
var Formats = []Format{FormatDir, FormatZip, FormatTarZst}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown archive format %q", s)
}

// Ext returns the file name extension of the format, empty for FormatDir.
func (f Format) Ext() string {
	if f == FormatDir {
		return ""
	}
	return "." + string(f)
}

// Writer receives archive entries.
type Writer interface {
	Add(name string, data []byte) error
	Close() error
}

// ModTime is the timestamp stamped on every archive entry.
var ModTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func checkName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || path.Clean(name) != name || strings.HasPrefix(name, "../") {
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}

type dirWriter struct {
	fsys billy.Filesystem
	root string
}

// NewDir returns a writer that creates files under root in fsys.
func NewDir(fsys billy.Filesystem, root string) Writer {
	return &dirWriter{fsys: fsys, root: root}
}

func (w *dirWriter) Add(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	p := fsysJoin(w.fsys, w.root, name)
	if err := w.fsys.MkdirAll(w.fsys.Join(p, ".."), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", name, err)
	}
	if err := util.WriteFile(w.fsys, p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (w *dirWriter) Close() error { return nil }

func fsysJoin(fsys billy.Filesystem, root, name string) string {
	parts := append([]string{root}, strings.Split(name, "/")...)
	return fsys.Join(parts...)
}

type zipWriter struct {
	zw *zip.Writer
}

// NewZip returns a writer producing a deflate-compressed zip on w.
func NewZip(w io.Writer) Writer {
	return &zipWriter{zw: zip.NewWriter(w)}
}

func (w *zipWriter) Add(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	f, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: ModTime,
	})
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	return nil
}

func (w *zipWriter) Close() error { return w.zw.Close() }

type tarZstWriter struct {
	enc *zstd.Encoder
	tw  *tar.Writer
}

// NewTarZst returns a writer producing a zstd-compressed tar on w.
// level is 1 (fastest) to 3 (best); anything else selects the default.
func NewTarZst(w io.Writer, level int) (Writer, error) {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(encoderLevel(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	return &tarZstWriter{enc: enc, tw: tar.NewWriter(enc)}, nil
}

func encoderLevel(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedDefault
	}
}

func (w *tarZstWriter) Add(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  ModTime,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar entry %s: %w", name, err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("tar entry %s: %w", name, err)
	}
	return nil
}

func (w *tarZstWriter) Close() error {
	if err := w.tw.Close(); err != nil {
		w.enc.Close()
		return err
	}
	return w.enc.Close()
}

// ReadAll decodes a zip or tar.zst archive into a name -> content map.
func ReadAll(format Format, data []byte) (map[string][]byte, error) {
	switch format {
	case FormatZip:
		return readZip(data)
	case FormatTarZst:
		return readTarZst(data)
	default:
		return nil, fmt.Errorf("cannot read %s archives", format)
	}
}

func readZip(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(rc)
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		out[f.Name] = b
	}
	return out, nil
}

func readTarZst(data []byte) (map[string][]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	out := make(map[string][]byte)
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		b, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		out[hdr.Name] = b
	}
}
