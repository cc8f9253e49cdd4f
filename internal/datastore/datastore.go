// Package datastore implements the layered, read-mostly file archive of
// spec section 4.H: a list of search paths searched first-hit-wins for
// reads, with the last path in the list used for writes.
package datastore

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/blowfish"
)

const blockSize = 8

// defaultFileKey is the data store's fixed key for DecryptFile/EncryptFile,
// grounded on la2go's DefaultGSBlowfishKey constant — the same Blowfish
// ECB idiom reused here for file-at-rest obfuscation instead of a login
// handshake.
var defaultFileKey = []byte{
	0x5F, 0x3B, 0x76, 0x2E, 0x5D, 0x30, 0x35, 0x2D,
	0x33, 0x31, 0x21, 0x7C, 0x2B, 0x2D, 0x25, 0x78,
	0x54, 0x21, 0x5E, 0x5B, 0x24, 0x00,
}

// Store is a layered file archive. All paths passed to its methods are
// POSIX-style with '/' separators, independent of host OS; Store
// translates them to native paths against each search root.
type Store struct {
	searchPaths []string
	writeDir    string
	cipher      *blowfish.Cipher
}

// New builds a Store over searchPaths, searched in the given order for
// reads (first hit wins). The last path in the list is the write
// directory.
func New(searchPaths []string) (*Store, error) {
	if len(searchPaths) == 0 {
		return nil, fmt.Errorf("datastore: at least one search path is required")
	}
	c, err := blowfish.NewCipher(defaultFileKey)
	if err != nil {
		return nil, fmt.Errorf("datastore: building file cipher: %w", err)
	}
	return &Store{
		searchPaths: append([]string(nil), searchPaths...),
		writeDir:    searchPaths[len(searchPaths)-1],
		cipher:      c,
	}, nil
}

func toNative(p string) string {
	return filepath.FromSlash(strings.TrimPrefix(p, "/"))
}

func normalizePOSIX(p string) string {
	return "/" + strings.Trim(p, "/")
}

// resolve finds the first search path (in order) containing p.
func (s *Store) resolve(p string) (string, bool) {
	rel := toNative(p)
	for _, root := range s.searchPaths {
		full := filepath.Join(root, rel)
		if _, err := os.Stat(full); err == nil {
			return full, true
		}
	}
	return "", false
}

// Exists reports whether p resolves in any search path.
func (s *Store) Exists(p string) bool {
	_, ok := s.resolve(p)
	return ok
}

// ReadFile returns the contents of the first search-path hit for p.
func (s *Store) ReadFile(p string) ([]byte, error) {
	full, ok := s.resolve(p)
	if !ok {
		return nil, fmt.Errorf("datastore: %s not found", p)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("datastore: reading %s: %w", p, err)
	}
	return data, nil
}

// WriteFile writes data to p under the write directory (the last search
// path), creating parent directories as needed.
func (s *Store) WriteFile(p string, data []byte) error {
	full := filepath.Join(s.writeDir, toNative(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("datastore: creating parent dirs for %s: %w", p, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("datastore: writing %s: %w", p, err)
	}
	return nil
}

// DecryptFile reads p and decrypts it in place with the store's fixed key.
func (s *Store) DecryptFile(p string) ([]byte, error) {
	data, err := s.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if len(data)%blockSize != 0 {
		return nil, fmt.Errorf("datastore: decrypting %s: length %d is not a multiple of the cipher block size", p, len(data))
	}
	out := append([]byte(nil), data...)
	for i := 0; i < len(out); i += blockSize {
		s.cipher.Decrypt(out[i:i+blockSize], out[i:i+blockSize])
	}
	return out, nil
}

// EncryptFile encrypts data with the store's fixed key and writes the
// result to p. data's length must already be a multiple of the cipher's
// block size — the game-data blobs this protects are fixed binary/XML
// formats the caller controls, not arbitrary user input.
func (s *Store) EncryptFile(p string, data []byte) error {
	if len(data)%blockSize != 0 {
		return fmt.Errorf("datastore: encrypting %s: length %d is not a multiple of the cipher block size", p, len(data))
	}
	out := append([]byte(nil), data...)
	for i := 0; i < len(out); i += blockSize {
		s.cipher.Encrypt(out[i:i+blockSize], out[i:i+blockSize])
	}
	return s.WriteFile(p, out)
}

// Delete removes p, recursing into a directory's contents first when
// recursive is set.
func (s *Store) Delete(p string, recursive bool) error {
	full, ok := s.resolve(p)
	if !ok {
		return fmt.Errorf("datastore: %s not found", p)
	}
	if recursive {
		if err := os.RemoveAll(full); err != nil {
			return fmt.Errorf("datastore: deleting %s: %w", p, err)
		}
		return nil
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("datastore: deleting %s: %w", p, err)
	}
	return nil
}

// Mkdir creates directory p under the write directory.
func (s *Store) Mkdir(p string) error {
	full := filepath.Join(s.writeDir, toNative(p))
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("datastore: creating directory %s: %w", p, err)
	}
	return nil
}

// FileSize returns the size in bytes of p's first search-path hit.
func (s *Store) FileSize(p string) (int64, error) {
	full, ok := s.resolve(p)
	if !ok {
		return 0, fmt.Errorf("datastore: %s not found", p)
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("datastore: stat %s: %w", p, err)
	}
	return info.Size(), nil
}

// SHA1Hash returns the lowercase hex SHA-1 digest of p's contents.
func (s *Store) SHA1Hash(p string) (string, error) {
	data, err := s.ReadFile(p)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// List enumerates the union of every search path's view of directory p,
// splitting entries into files, directories, and symlinks. fullPath
// controls whether returned entries are POSIX-absolute or relative to p;
// recursive walks into subdirectories. Grounded on
// DataStore::GetListing's recursive splice algorithm.
func (s *Store) List(p string, recursive, fullPath bool) (files, dirs, symlinks []string, err error) {
	base := normalizePOSIX(p)
	files, dirs, symlinks, err = s.listAbsolute(base, recursive)
	if err != nil {
		return nil, nil, nil, err
	}
	if !fullPath {
		prefix := base
		if prefix != "/" {
			prefix += "/"
		} else {
			prefix = "/"
		}
		files = stripPrefixAll(files, prefix)
		dirs = stripPrefixAll(dirs, prefix)
		symlinks = stripPrefixAll(symlinks, prefix)
	}
	sort.Strings(files)
	sort.Strings(dirs)
	sort.Strings(symlinks)
	return files, dirs, symlinks, nil
}

// ListFiles satisfies internal/serverdata.FileSource's expectation of a
// flat directory listing: every
// regular file directly under dir, as full POSIX paths, non-recursive.
func (s *Store) ListFiles(dir string) ([]string, error) {
	files, _, _, err := s.List(dir, false, true)
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Store) listAbsolute(base string, recursive bool) (files, dirs, symlinks []string, err error) {
	seen := make(map[string]bool)
	rel := toNative(base)
	found := false
	for _, root := range s.searchPaths {
		dir := filepath.Join(root, rel)
		entries, rerr := os.ReadDir(dir)
		if rerr != nil {
			if os.IsNotExist(rerr) {
				continue
			}
			return nil, nil, nil, fmt.Errorf("datastore: listing %s: %w", base, rerr)
		}
		found = true
		for _, e := range entries {
			child := strings.TrimSuffix(base, "/") + "/" + e.Name()
			if seen[child] {
				continue
			}
			seen[child] = true

			info, ierr := e.Info()
			if ierr != nil {
				return nil, nil, nil, fmt.Errorf("datastore: stat %s: %w", child, ierr)
			}
			switch {
			case info.Mode()&os.ModeSymlink != 0:
				symlinks = append(symlinks, child)
			case e.IsDir():
				dirs = append(dirs, child)
				if recursive {
					cf, cd, cs, cerr := s.listAbsolute(child, recursive)
					if cerr != nil {
						return nil, nil, nil, cerr
					}
					files = append(files, cf...)
					dirs = append(dirs, cd...)
					symlinks = append(symlinks, cs...)
				}
			default:
				files = append(files, child)
			}
		}
	}
	if !found {
		return nil, nil, nil, fmt.Errorf("datastore: listing %s: %w", base, fs.ErrNotExist)
	}
	return files, dirs, symlinks, nil
}

func stripPrefixAll(in []string, prefix string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimPrefix(v, prefix)
	}
	return out
}
