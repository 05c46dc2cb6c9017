package fs

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"stackerbuild.io/bomsync/errors"
	"stackerbuild.io/bomsync/pkg/bom"
)

// sha256 of "hello\n"
const helloSum = "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	return dir
}

func TestPool(t *testing.T) {
	var count atomic.Int32

	pool := NewPool(4, 2)
	for i := 0; i < 20; i++ {
		pool.Add(func() error {
			count.Add(1)

			return nil
		})
	}

	if err := pool.Done(); err != nil || count.Load() != 20 {
		t.Errorf("count = %d, err = %v", count.Load(), err)
	}

	failing := NewPool(2, 0)
	failing.Add(func() error { return errors.ErrNotFound })
	failing.Add(func() error { return nil })

	if err := failing.Done(); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestInventory(t *testing.T) {
	dir := writeFiles(t, map[string]string{"b.txt": "hello\n", "a.txt": "other\n"})
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o700); err != nil {
		t.Fatal(err)
	}

	entries, err := Inventory(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 2 || entries[0].Path != filepath.Join(dir, "a.txt") {
		t.Fatalf("entries = %+v", entries)
	}

	want := Entry{Path: filepath.Join(dir, "b.txt"), Size: 6, Checksum: helloSum, MIME: "text/plain; charset=utf-8"}
	if diff := cmp.Diff(want, entries[1]); diff != "" {
		t.Errorf("entry (-want +got)\n%s", diff)
	}
}

func TestInventoryEmpty(t *testing.T) {
	if _, err := Inventory(t.TempDir()); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if _, err := Inventory(filepath.Join(t.TempDir(), "missing")); !stderrors.Is(err, errors.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestVerify(t *testing.T) {
	entries := []Entry{
		{Path: "/pkgs/zlib.tar.gz", Checksum: helloSum},
		{Path: "/pkgs/left-pad.tgz", Checksum: "abc"},
	}

	absent, err := Verify(entries, []string{strings.ToUpper(helloSum), "abc"}, "")
	if err != nil || len(absent) != 0 {
		t.Errorf("absent = %+v, err = %v", absent, err)
	}

	path := filepath.Join(t.TempDir(), "missing.spdx.json")

	absent, err = Verify(entries, []string{helloSum}, path)
	if !stderrors.Is(err, errors.ErrIncomplete) {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}

	if diff := cmp.Diff(entries[1:], absent); diff != "" {
		t.Errorf("absent (-want +got)\n%s", diff)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(content, &doc); err != nil {
		t.Errorf("missing document is not json: %v", err)
	}

	if format, err := bom.DetectFormat(content); err != nil || format != bom.FormatSPDX {
		t.Errorf("missing document format = %q, err = %v, want spdx", format, err)
	}

	if !strings.Contains(string(content), "left-pad.tgz") || strings.Contains(string(content), "zlib.tar.gz") {
		t.Errorf("missing document does not list exactly the absent file:\n%s", content)
	}
}
