package crawler

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/nao1215/dhtcrawler/internal/model"
)

const (
	// snapshotExt is the extension of node list snapshots.
	snapshotExt = ".lst"

	// tempSuffix is appended to a snapshot's name while it is being written.
	tempSuffix = ".tmp"

	// snapshotDirMode is the mode of created snapshot directories.
	snapshotDirMode = 0700

	// snapshotFileMode is the mode of snapshot files.
	snapshotFileMode = 0600
)

// SnapshotPath returns where a session started at stamp writes its node
// list: dir/YYYY-MM-DD/HHMMSS.lst, in local time.
func SnapshotPath(dir string, stamp time.Time) string {
	local := stamp.Local()
	return filepath.Join(dir, local.Format("2006-01-02"), local.Format("150405")+snapshotExt)
}

// writeSnapshotLines writes one "identity, ip, location" line per peer.
// Locations are resolved now rather than reused from discovery time.
func writeSnapshotLines(w io.Writer, peers []model.Peer, loc Locator) error {
	bw := bufio.NewWriter(w)
	for _, p := range peers {
		if _, err := fmt.Fprintf(bw, "%s, %s, %s\n", p.ID, p.IP(), loc.Lookup(p.IP())); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeSnapshot writes peers to path. The content goes to path+".tmp"
// first and is renamed into place only once fully written and closed, so
// path never holds a partial list. The temporary file is removed on any
// failure.
func writeSnapshot(path string, peers []model.Peer, loc Locator, rename func(oldpath, newpath string) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), snapshotDirMode); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := path + tempSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, snapshotFileMode) //nolint:gosec // path is built from the configured data directory
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err := writeSnapshotLines(f, peers, loc); err != nil {
		return multierr.Combine(fmt.Errorf("failed to write snapshot: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temporary snapshot: %w", err)
	}
	if err := rename(tmp, path); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}
