// Package fs inventories local package files before they are uploaded to
// FOSSology and checks which of them already were.
package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/sha256-simd"
	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
)

const backlog = 1024

// Entry is one package file.
type Entry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	// Checksum is the hex sha256 of the content.
	Checksum string `json:"checksum"`
	MIME     string `json:"mime"`
}

// Inventory checksums the regular files directly under dir. Entries are
// sorted by path.
func Inventory(dir string) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("path", dir).Msg("unable to read package dir")

		return nil, fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}

	entries := []Entry{}

	for _, de := range dirents {
		if !de.Type().IsRegular() {
			log.Debug().Str("name", de.Name()).Msg("not a regular file, skipped")

			continue
		}

		info, err := de.Info()
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{Path: filepath.Join(dir, de.Name()), Size: info.Size()})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no files in %s", errors.ErrNotFound, dir)
	}

	pool := NewPool(runtime.NumCPU(), backlog)

	for i := range entries {
		entry := &entries[i]

		pool.Add(func() error {
			return entry.fill()
		})
	}

	if err := pool.Done(); err != nil {
		log.Error().Err(err).Str("path", dir).Msg("inventory failed")

		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	log.Info().Int("count", len(entries)).Str("path", dir).Msg("files found during inventory")

	return entries, nil
}

// fill computes the checksum and MIME type of the entry.
func (e *Entry) fill() error {
	fhandle, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer fhandle.Close()

	mtype, err := mimetype.DetectReader(fhandle)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Path, err)
	}

	e.MIME = mtype.String()

	if _, err := fhandle.Seek(0, io.SeekStart); err != nil {
		return err
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, fhandle); err != nil {
		return fmt.Errorf("%s: %w", e.Path, err)
	}

	e.Checksum = fmt.Sprintf("%x", hash.Sum(nil))

	return nil
}
