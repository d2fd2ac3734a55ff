package layerstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Store exposes the resources of one layer root inside a billy filesystem.
//
// Storage layout:
//
//	root/
//	  assets/<namespace>/...
//	  data/<namespace>/...
//
// Reads are safe for concurrent use. Write exists for scaffolding and must not
// race with readers of the same layer.
type Store struct {
	fsys          billy.Filesystem
	root          string
	roots         []string
	ignore        []string
	contentDigest bool
}

// Option configures a Store.
type Option func(*Store)

// WithResourceRoots replaces the resource roots that are enumerated.
func WithResourceRoots(roots ...string) Option {
	return func(s *Store) {
		if len(roots) > 0 {
			s.roots = slices.Clone(roots)
		}
	}
}

// WithIgnore replaces the doublestar patterns of files that are never resources.
func WithIgnore(patterns ...string) Option {
	return func(s *Store) { s.ignore = slices.Clone(patterns) }
}

// WithContentDigest makes Digest hash file contents instead of size and mtime.
func WithContentDigest(enabled bool) Option {
	return func(s *Store) { s.contentDigest = enabled }
}

// New returns a store for the layer rooted at root (slash or OS separated,
// relative to fsys).
func New(fsys billy.Filesystem, root string, opts ...Option) *Store {
	s := &Store{
		fsys:   fsys,
		root:   filepath.Clean(filepath.FromSlash(root)),
		roots:  slices.Clone(DefaultResourceRoots),
		ignore: slices.Clone(DefaultIgnore),
	}
	for _, opt := range opts {
		opt(s)
	}
	slices.Sort(s.roots)
	return s
}

// Root returns the layer root path within the filesystem.
func (s *Store) Root() string { return s.root }

// Exists reports whether the layer root is present.
func (s *Store) Exists() (bool, error) {
	info, err := s.fsys.Stat(s.root)
	if err != nil {
		if notExist(err) {
			return false, nil
		}
		return false, &UnreadableError{Root: s.root, Err: err}
	}
	if !info.IsDir() {
		return false, &UnreadableError{Root: s.root, Err: fmt.Errorf("not a directory")}
	}
	return true, nil
}

// ListKeys returns every resource key of the layer in sorted order.
// An absent layer yields no keys and no error.
func (s *Store) ListKeys() ([]Key, error) {
	var keys []Key
	err := s.walk(func(key Key, _ os.FileInfo) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

// Has reports whether key is a resource of this layer.
func (s *Store) Has(key Key) (bool, error) {
	p, err := s.keyPath(key)
	if err != nil {
		return false, err
	}
	if s.ignored(key) {
		return false, nil
	}
	info, err := s.fsys.Stat(p)
	if err != nil {
		if notExist(err) {
			return false, nil
		}
		return false, &UnreadableError{Root: s.root, Path: p, Err: err}
	}
	return !info.IsDir(), nil
}

// Read returns the content of key. It fails with ErrResourceMissing when the
// key is not part of this layer.
func (s *Store) Read(key Key) ([]byte, error) {
	p, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	if s.ignored(key) {
		return nil, fmt.Errorf("%w: %s", ErrResourceMissing, key)
	}

	f, err := s.fsys.Open(p)
	if err != nil {
		if notExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrResourceMissing, key)
		}
		return nil, &UnreadableError{Root: s.root, Path: p, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		// Reading a directory lands here on most filesystems.
		if info, serr := s.fsys.Stat(p); serr == nil && info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrResourceMissing, key)
		}
		return nil, &UnreadableError{Root: s.root, Path: p, Err: err}
	}
	return data, nil
}

// Write stores data under key, creating the layer root and parent
// directories as needed. Existing content is replaced.
func (s *Store) Write(key Key, data []byte) error {
	p, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := s.fsys.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := util.WriteFile(s.fsys, p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Digest fingerprints the layer. Entries are sorted before hashing so the
// result does not depend on directory enumeration order.
func (s *Store) Digest() (Digest, error) {
	var items []string
	err := s.walk(func(key Key, info os.FileInfo) error {
		if !s.contentDigest {
			items = append(items, string(key)+"\x00"+
				strconv.FormatInt(info.Size(), 10)+"\x00"+
				strconv.FormatInt(info.ModTime().UnixNano(), 10))
			return nil
		}
		data, err := s.Read(key)
		if err != nil {
			return err
		}
		h := sha256.Sum256(data)
		items = append(items, string(key)+"\x00"+hex.EncodeToString(h[:]))
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", nil
	}
	slices.Sort(items)
	h := sha256.Sum256([]byte(strings.Join(items, "\n")))
	return Digest(digestPrefix + hex.EncodeToString(h[:])), nil
}

func (s *Store) walk(fn func(key Key, info os.FileInfo) error) error {
	ok, err := s.Exists()
	if err != nil || !ok {
		return err
	}

	for _, r := range s.roots {
		top := filepath.Join(s.root, r)
		info, err := s.fsys.Lstat(top)
		if err != nil {
			if notExist(err) {
				continue
			}
			return &UnreadableError{Root: s.root, Path: top, Err: err}
		}
		if !info.IsDir() {
			continue
		}

		err = util.Walk(s.fsys, top, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return &UnreadableError{Root: s.root, Path: p, Err: err}
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(s.root, p)
			if err != nil {
				return &UnreadableError{Root: s.root, Path: p, Err: err}
			}
			key := Key(filepath.ToSlash(rel))
			if s.ignored(key) {
				return nil
			}
			return fn(key, info)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// notExist reports whether err means the path is absent. A file standing where
// a parent directory would be counts as absent.
func notExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func (s *Store) keyPath(key Key) (string, error) {
	k := string(key)
	if k == "" || strings.HasPrefix(k, "/") || path.Clean(k) != k || strings.HasPrefix(k, "../") || k == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, k)
	}
	if !slices.Contains(s.roots, key.Kind()) {
		return "", fmt.Errorf("%w: %q is outside resource roots %v", ErrInvalidKey, k, s.roots)
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

func (s *Store) ignored(key Key) bool {
	for _, pattern := range s.ignore {
		if match, _ := doublestar.Match(pattern, string(key)); match {
			return true
		}
	}
	return false
}
