package crawler

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/dhtcrawler/internal/model"
)

func TestSnapshotPath(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2024, 3, 9, 7, 5, 3, 0, time.Local)
	got := SnapshotPath("/data", stamp)
	want := filepath.Join("/data", "2024-03-09", "070503.lst")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestWriteSnapshot(t *testing.T) {
	t.Parallel()

	peers := []model.Peer{testPeer(1), testPeer(2)}

	t.Run("writes one line per node and creates directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a", "b", "120000.lst")
		if err := writeSnapshot(path, peers, fakeLocator{location: "Japan, Tokyo, Tokyo"}, os.Rename); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // test path
		if err != nil {
			t.Fatalf("failed to read snapshot: %v", err)
		}
		want := peers[0].ID.String() + ", 198.51.100.1, Japan, Tokyo, Tokyo\n" +
			peers[1].ID.String() + ", 198.51.100.2, Japan, Tokyo, Tokyo\n"
		if string(data) != want {
			t.Errorf("unexpected content:\n%s\nwant:\n%s", data, want)
		}

		info, err := os.Stat(filepath.Dir(path))
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Mode().Perm() != 0700 {
			t.Errorf("expected directory mode 0700, got %v", info.Mode().Perm())
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Error("expected temporary file to be gone")
		}
	})

	t.Run("empty location keeps the field", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "x.lst")
		if err := writeSnapshot(path, peers[:1], noLocator{}, os.Rename); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := os.ReadFile(path) //nolint:gosec // test path
		if err != nil {
			t.Fatalf("failed to read snapshot: %v", err)
		}
		if want := peers[0].ID.String() + ", 198.51.100.1, \n"; string(data) != want {
			t.Errorf("expected %q, got %q", want, data)
		}
	})

	t.Run("same nodes give identical bytes", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		first := filepath.Join(dir, "1.lst")
		second := filepath.Join(dir, "2.lst")
		loc := fakeLocator{location: "Germany, Berlin, Berlin"}

		for _, p := range []string{first, second} {
			if err := writeSnapshot(p, peers, loc, os.Rename); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		a, _ := os.ReadFile(first)  //nolint:gosec // test path
		b, _ := os.ReadFile(second) //nolint:gosec // test path
		if !bytes.Equal(a, b) {
			t.Error("expected identical snapshots")
		}
	})

	t.Run("failed rename leaves nothing behind", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "fail.lst")
		injected := errors.New("injected rename failure")
		rename := func(oldpath, _ string) error {
			// The full content is on disk at this point.
			if _, err := os.Stat(oldpath); err != nil {
				t.Errorf("expected temporary file before rename: %v", err)
			}
			return injected
		}

		err := writeSnapshot(path, peers, noLocator{}, rename)
		if !errors.Is(err, injected) {
			t.Fatalf("expected injected error, got %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("final path must not exist after a failed rename")
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Error("temporary file must be removed after a failed rename")
		}
	})

	t.Run("unwritable directory", func(t *testing.T) {
		t.Parallel()

		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, nil, 0600); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := writeSnapshot(filepath.Join(blocker, "x.lst"), peers, noLocator{}, os.Rename); err == nil {
			t.Error("expected an error when the directory cannot be created")
		}
	})
}
