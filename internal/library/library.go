// Package library maintains the media catalog: an in-memory mirror of
// the shared folders, kept in sync with the filesystem lazily on access
// and persisted as an XML index.
package library

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeroexploit/slms/internal/media"
	"github.com/zeroexploit/slms/internal/probe"
)

// ErrNotFound marks lookups of object ids that are not in the catalog.
var ErrNotFound = errors.New("not found")

// Library is the mutex-guarded catalog. All public methods are safe for
// concurrent use; callers get copies, never pointers into the catalog.
type Library struct {
	mu        sync.Mutex
	indexPath string
	shares    []string
	prober    probe.Prober

	folders []*media.Folder
	items   []*media.Item
	formats []*media.Container

	nextID       uint64
	nextFormatID uint64
	updateID     uint32
}

// New creates an empty library persisting to indexPath and serving the
// given share directories.
func New(indexPath string, shares []string, p probe.Prober) *Library {
	return &Library{
		indexPath: indexPath,
		shares:    shares,
		prober:    p,
		nextID:    1,
		updateID:  1,
	}
}

// BootUp loads the persisted index, walks all shares to pick up changes
// made while the server was down, and writes the refreshed index back.
func (l *Library) BootUp() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loadIndex()
	for _, share := range l.shares {
		l.parseFolder(share, 0)
	}
	if err := l.saveIndex(true); err != nil {
		log.Printf("[library] save index: %v", err)
	}

	log.Printf("[library] catalog ready: %d folders, %d items", len(l.folders), len(l.items))
}

// Save persists the index, dropping entries that no longer match the
// filesystem.
func (l *Library) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveIndex(true)
}

// SystemUpdateID returns the catalog mutation counter.
func (l *Library) SystemUpdateID() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updateID
}

// GetFolderDirect returns the folder with the given id without touching
// the filesystem.
func (l *Library) GetFolderDirect(id uint64) (media.Folder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f := l.folderByID(id); f != nil {
		return *f, nil
	}
	return media.Folder{}, fmt.Errorf("folder %d: %w", id, ErrNotFound)
}

// GetItemDirect returns the item with the given id without touching the
// filesystem.
func (l *Library) GetItemDirect(id uint64) (media.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if item := l.itemByID(id); item != nil {
		return *item, nil
	}
	return media.Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
}

// GetFoldersFromParent returns the child folders of a container. If the
// parent directory changed on disk since the last walk, that one
// directory is re-walked first.
func (l *Library) GetFoldersFromParent(parentID uint64) []media.Folder {
	l.mu.Lock()
	defer l.mu.Unlock()

	if parentID != 0 {
		if parent := l.folderByID(parentID); parent != nil {
			if mtime := dirMtime(parent.Path); mtime > parent.LastModified {
				l.parseFolder(parent.Path, parent.ParentID)
			}
		}
	}

	var out []media.Folder
	for _, f := range l.folders {
		if f.ParentID == parentID {
			out = append(out, *f)
		}
	}
	return out
}

// GetItemsFromParent returns the items of a container. Items whose file
// changed on disk are re-probed in place; vanished files are skipped.
func (l *Library) GetItemsFromParent(parentID uint64) []media.Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []media.Item
	for i := 0; i < len(l.items); i++ {
		item := l.items[i]
		if item.ParentID != parentID {
			continue
		}
		fi, err := os.Stat(item.FilePath)
		if err != nil {
			continue
		}
		if fi.ModTime().Unix() > item.LastModified {
			if err := l.reprobe(item); err != nil {
				log.Printf("[library] dropping %s: %v", item.FilePath, err)
				l.items = append(l.items[:i], l.items[i+1:]...)
				l.updateID++
				i--
				continue
			}
		}
		out = append(out, *item)
	}
	return out
}

// RefreshPath re-walks the directory containing a changed path. Used by
// the filesystem watcher.
func (l *Library) RefreshPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	targets := []string{path, filepath.Dir(path)}
	for _, target := range targets {
		if f := l.folderByPath(target); f != nil {
			l.parseFolder(target, f.ParentID)
			return
		}
		for _, share := range l.shares {
			if share == target {
				l.parseFolder(target, 0)
				return
			}
		}
	}
}

// parseFolder mirrors one directory into the catalog, recursing into
// subdirectories. Hidden entries are never added. Caller holds the lock.
func (l *Library) parseFolder(path string, parentID uint64) {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return
	}

	title := filepath.Base(strings.TrimSuffix(path, "/"))
	if strings.HasPrefix(title, ".") {
		return
	}

	folder := l.folderByPath(path)
	if folder == nil {
		folder = &media.Folder{
			ID:           l.takeID(),
			ParentID:     parentID,
			Title:        title,
			Path:         path,
			LastModified: fi.ModTime().Unix(),
		}
		l.folders = append(l.folders, folder)
		l.updateID++
		log.Printf("[library] new folder: %s", path)
	} else if mtime := fi.ModTime().Unix(); mtime > folder.LastModified {
		folder.LastModified = mtime
		l.updateID++
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return
	}

	var children uint32
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		children++
		full := filepath.Join(path, name)
		if entry.IsDir() {
			l.parseFolder(full, folder.ID)
		} else {
			l.parseFile(full, folder.ID)
		}
	}
	folder.ChildCount = children
}

func (l *Library) parseFile(path string, parentID uint64) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}

	if existing := l.itemByPath(path); existing != nil {
		if fi.ModTime().Unix() > existing.LastModified {
			if err := l.reprobe(existing); err != nil {
				log.Printf("[library] dropping %s: %v", path, err)
				l.removeItem(existing.ID)
			}
		}
		return
	}

	item, err := l.prober.ParseFile(path)
	if err != nil {
		log.Printf("[library] skipping %s: %v", path, err)
		return
	}
	if item.Meta.FileName == "" || strings.HasPrefix(item.Meta.FileName, ".") {
		return
	}

	item.ID = l.takeID()
	item.ParentID = parentID
	l.registerContainer(item)
	l.items = append(l.items, item)
	l.updateID++
	log.Printf("[library] new item: %s", path)
}

// reprobe refreshes one item from disk, keeping its identity and
// thumbnail. Caller holds the lock.
func (l *Library) reprobe(item *media.Item) error {
	probed, err := l.prober.ParseFile(item.FilePath)
	if err != nil {
		return err
	}
	probed.ID = item.ID
	probed.ParentID = item.ParentID
	probed.Thumbnail = item.Thumbnail
	l.registerContainer(probed)
	*item = *probed
	l.updateID++
	return nil
}

// registerContainer links an item to the indexed container format with
// its name, creating the format entry on first sight.
func (l *Library) registerContainer(item *media.Item) {
	name := item.Container.Name
	if name == "" {
		return
	}
	mime := item.MimeType()
	for _, c := range l.formats {
		if c.Name == name {
			item.Container.ID = c.ID
			c.Extensions = mergeUnique(c.Extensions, item.Container.Extensions)
			c.MimeTypes = mergeUnique(c.MimeTypes, []string{mime})
			return
		}
	}
	format := &media.Container{
		ID:         l.takeFormatID(),
		Name:       name,
		Extensions: append([]string(nil), item.Container.Extensions...),
		MimeTypes:  []string{mime},
	}
	l.formats = append(l.formats, format)
	item.Container.ID = format.ID
}

func (l *Library) folderByID(id uint64) *media.Folder {
	for _, f := range l.folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func (l *Library) folderByPath(path string) *media.Folder {
	for _, f := range l.folders {
		if f.Path == path {
			return f
		}
	}
	return nil
}

func (l *Library) itemByID(id uint64) *media.Item {
	for _, item := range l.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (l *Library) itemByPath(path string) *media.Item {
	for _, item := range l.items {
		if item.FilePath == path {
			return item
		}
	}
	return nil
}

func (l *Library) removeItem(id uint64) {
	for i, item := range l.items {
		if item.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			l.updateID++
			return
		}
	}
}

func (l *Library) takeID() uint64 {
	id := l.nextID
	l.nextID++
	return id
}

func (l *Library) takeFormatID() uint64 {
	id := l.nextFormatID
	l.nextFormatID++
	return id
}

// observeID keeps the id counter above every id seen in the index.
func (l *Library) observeID(id uint64) {
	if id >= l.nextID {
		l.nextID = id + 1
	}
}

func dirMtime(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.ModTime().Unix()
}

func mergeUnique(existing, add []string) []string {
	for _, candidate := range add {
		seen := false
		for _, have := range existing {
			if have == candidate {
				seen = true
				break
			}
		}
		if !seen {
			existing = append(existing, candidate)
		}
	}
	return existing
}
