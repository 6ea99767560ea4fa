package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeroexploit/slms/internal/library"
	"github.com/zeroexploit/slms/internal/media"
	"github.com/zeroexploit/slms/internal/probe"
)

type testProber struct{}

func (testProber) ParseFile(path string) (*media.Item, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", probe.ErrProbeFailed, path)
	}

	base := filepath.Base(path)
	item := &media.Item{
		FilePath:     path,
		FileSize:     uint64(fi.Size()),
		LastModified: fi.ModTime().Unix(),
		Duration:     "00:01:00.00",
	}
	item.Meta.FileName = strings.TrimSuffix(base, filepath.Ext(base))
	item.Meta.FileExtension = strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	item.Container.Name = "matroska"
	item.Tracks = []media.Stream{{Index: 0, Type: media.StreamVideo, CodecName: "h264", IsDefault: true}}
	item.DeriveType()
	return item, nil
}

func newWatcher(t *testing.T) (*Watcher, *library.Library, string) {
	t.Helper()
	share := filepath.Join(t.TempDir(), "media")
	require.NoError(t, os.MkdirAll(share, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(share, "movie.mkv"), []byte("payload"), 0o644))

	lib := library.New(filepath.Join(t.TempDir(), "db.xml"), []string{share}, testProber{})
	lib.BootUp()

	w, err := New(lib, []string{share})
	require.NoError(t, err)
	w.Start()
	t.Cleanup(w.Stop)

	return w, lib, share
}

func TestNewFileTriggersRefresh(t *testing.T) {
	_, lib, share := newWatcher(t)
	require.Len(t, lib.GetItemsFromParent(1), 1)

	require.NoError(t, os.WriteFile(filepath.Join(share, "second.mkv"), []byte("payload"), 0o644))

	assert.Eventually(t, func() bool {
		return len(lib.GetItemsFromParent(1)) == 2
	}, 10*time.Second, 100*time.Millisecond)
}

func TestNewDirectoryIsWatched(t *testing.T) {
	_, lib, share := newWatcher(t)

	sub := filepath.Join(share, "series")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	require.Eventually(t, func() bool {
		return len(lib.GetFoldersFromParent(1)) == 1
	}, 10*time.Second, 100*time.Millisecond)

	// The new directory joined the watch set, so files inside it are
	// picked up too.
	require.NoError(t, os.WriteFile(filepath.Join(sub, "clip.mkv"), []byte("payload"), 0o644))

	assert.Eventually(t, func() bool {
		folders := lib.GetFoldersFromParent(1)
		if len(folders) != 1 {
			return false
		}
		return len(lib.GetItemsFromParent(folders[0].ID)) == 1
	}, 10*time.Second, 100*time.Millisecond)
}

func TestHiddenAndTemporaryFilesIgnored(t *testing.T) {
	_, lib, share := newWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(share, ".hidden.mkv"), []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(share, "upload.mkv.part"), []byte("payload"), 0o644))

	time.Sleep(2 * debounceDelay)
	assert.Len(t, lib.GetItemsFromParent(1), 1)
}

func TestHidden(t *testing.T) {
	assert.True(t, hidden("/share/.config"))
	assert.False(t, hidden("/share/media"))
	assert.False(t, hidden("."))
}
