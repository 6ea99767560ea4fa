package library

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/zeroexploit/slms/internal/media"
	"github.com/zeroexploit/slms/internal/xmlcodec"
)

// saveIndex writes the catalog as XML. With consistencyCheck, entries
// whose backing path is missing or whose disk mtime moved past the
// recorded value are left out. Caller holds the lock.
func (l *Library) saveIndex(consistencyCheck bool) error {
	w := xmlcodec.NewWriter()

	w.OpenTag("root", []xmlcodec.Attr{
		{Name: "id", Value: "0"},
		{Name: "parentId", Value: "-1"},
		{Name: "title", Value: "root"},
		{Name: "path", Value: ""},
		{Name: "count", Value: strconv.Itoa(len(l.shares))},
		{Name: "lastModified", Value: "0"},
	}, true)

	for _, folder := range l.folders {
		if consistencyCheck {
			if _, err := os.Stat(folder.Path); err != nil {
				continue
			}
		}
		w.OpenTag("folder", []xmlcodec.Attr{
			{Name: "id", Value: strconv.FormatUint(folder.ID, 10)},
			{Name: "parentId", Value: strconv.FormatUint(folder.ParentID, 10)},
			{Name: "title", Value: folder.Title},
			{Name: "path", Value: folder.Path},
			{Name: "count", Value: strconv.FormatUint(uint64(folder.ChildCount), 10)},
			{Name: "lastModified", Value: strconv.FormatInt(folder.LastModified, 10)},
		}, true)

		for _, item := range l.items {
			if item.ParentID != folder.ID {
				continue
			}
			if consistencyCheck {
				fi, err := os.Stat(item.FilePath)
				if err != nil || fi.ModTime().Unix() > item.LastModified {
					continue
				}
			}
			writeItem(w, item)
		}

		w.CloseTag("folder")
	}

	w.CloseTag("root")

	for _, format := range l.formats {
		w.OpenTag("format", []xmlcodec.Attr{
			{Name: "id", Value: strconv.FormatUint(format.ID, 10)},
			{Name: "name", Value: format.Name},
		}, true)
		for _, ext := range format.Extensions {
			w.OpenTag("extension", []xmlcodec.Attr{{Name: "value", Value: ext}}, false)
		}
		for _, mime := range format.MimeTypes {
			w.OpenTag("mime", []xmlcodec.Attr{{Name: "value", Value: mime}}, false)
		}
		w.CloseTag("format")
	}

	return renameio.WriteFile(l.indexPath, []byte(w.String()), 0o644)
}

func writeItem(w *xmlcodec.Writer, item *media.Item) {
	w.OpenTag("item", []xmlcodec.Attr{
		{Name: "id", Value: strconv.FormatUint(item.ID, 10)},
		{Name: "parentId", Value: strconv.FormatUint(item.ParentID, 10)},
		{Name: "lastModified", Value: strconv.FormatInt(item.LastModified, 10)},
		{Name: "path", Value: item.FilePath},
		{Name: "type", Value: item.Type.Code()},
		{Name: "duration", Value: item.Duration},
		{Name: "size", Value: strconv.FormatUint(item.FileSize, 10)},
		{Name: "containerId", Value: strconv.FormatUint(item.Container.ID, 10)},
	}, true)

	for _, track := range item.Tracks {
		w.OpenTag("stream", []xmlcodec.Attr{
			{Name: "index", Value: strconv.FormatUint(uint64(track.Index), 10)},
			{Name: "type", Value: track.Type.Code()},
			{Name: "codecName", Value: track.CodecName},
			{Name: "bitrate", Value: strconv.FormatUint(track.Bitrate, 10)},
			{Name: "nrAudioChannels", Value: strconv.FormatUint(uint64(track.AudioChannels), 10)},
			{Name: "sampleFrequenzy", Value: strconv.FormatUint(uint64(track.SampleRate), 10)},
			{Name: "width", Value: strconv.FormatUint(uint64(track.Width), 10)},
			{Name: "height", Value: strconv.FormatUint(uint64(track.Height), 10)},
			{Name: "bitDepth", Value: strconv.FormatUint(uint64(track.BitDepth), 10)},
			{Name: "language", Value: track.Language},
			{Name: "isDefault", Value: formatBool(track.IsDefault)},
			{Name: "isForced", Value: formatBool(track.IsForced)},
		}, false)
	}

	if item.Thumbnail.Available() {
		w.OpenTag("thumbnail", []xmlcodec.Attr{
			{Name: "itemId", Value: strconv.FormatUint(item.Thumbnail.ItemID, 10)},
			{Name: "path", Value: item.Thumbnail.FilePath},
			{Name: "mimeType", Value: item.Thumbnail.MimeType},
			{Name: "size", Value: strconv.FormatUint(item.Thumbnail.FileSize, 10)},
			{Name: "width", Value: strconv.FormatUint(uint64(item.Thumbnail.Width), 10)},
			{Name: "height", Value: strconv.FormatUint(uint64(item.Thumbnail.Height), 10)},
		}, false)
	}

	for _, pair := range item.Meta.Pairs() {
		w.OpenTag("meta", []xmlcodec.Attr{
			{Name: "name", Value: pair.Name},
			{Name: "value", Value: pair.Value},
		}, false)
	}

	w.CloseTag("item")
}

// loadIndex reads the persisted catalog. Entries whose path vanished and
// entries with unparseable ids are skipped; a stale mtime alone does not
// disqualify an entry, the next access re-probes it. Caller holds the
// lock.
func (l *Library) loadIndex() {
	data, err := os.ReadFile(l.indexPath)
	if err != nil {
		log.Printf("[library] no usable index at %s: %v", l.indexPath, err)
		return
	}

	for _, top := range xmlcodec.Parse(string(data)) {
		switch top.Tag {
		case "root":
			for _, child := range top.Children {
				if child.Tag == "folder" {
					l.loadFolder(child)
				}
			}
		case "format":
			l.loadFormat(top)
		}
	}

	l.resolveContainers()
	log.Printf("[library] index loaded: %d folders, %d items", len(l.folders), len(l.items))
}

func (l *Library) loadFolder(entry *xmlcodec.Entry) {
	id, errID := strconv.ParseUint(entry.AttrValue("id"), 10, 64)
	parentID, errParent := strconv.ParseUint(entry.AttrValue("parentId"), 10, 64)
	if errID != nil || errParent != nil {
		log.Printf("[library] skipping corrupt folder entry (id=%q)", entry.AttrValue("id"))
		return
	}

	path := entry.AttrValue("path")
	if _, err := os.Stat(path); err != nil {
		return
	}

	lastModified, _ := strconv.ParseInt(entry.AttrValue("lastModified"), 10, 64)
	count, _ := strconv.ParseUint(entry.AttrValue("count"), 10, 32)

	l.observeID(id)
	l.folders = append(l.folders, &media.Folder{
		ID:           id,
		ParentID:     parentID,
		Title:        entry.AttrValue("title"),
		Path:         path,
		ChildCount:   uint32(count),
		LastModified: lastModified,
	})

	for _, child := range entry.Children {
		if child.Tag == "item" {
			l.loadItem(child)
		}
	}
}

func (l *Library) loadItem(entry *xmlcodec.Entry) {
	id, errID := strconv.ParseUint(entry.AttrValue("id"), 10, 64)
	parentID, errParent := strconv.ParseUint(entry.AttrValue("parentId"), 10, 64)
	if errID != nil || errParent != nil {
		log.Printf("[library] skipping corrupt item entry (id=%q)", entry.AttrValue("id"))
		return
	}

	path := entry.AttrValue("path")
	if _, err := os.Stat(path); err != nil {
		return
	}

	lastModified, _ := strconv.ParseInt(entry.AttrValue("lastModified"), 10, 64)
	size, _ := strconv.ParseUint(entry.AttrValue("size"), 10, 64)
	containerID, _ := strconv.ParseUint(entry.AttrValue("containerId"), 10, 64)

	item := &media.Item{
		ID:           id,
		ParentID:     parentID,
		LastModified: lastModified,
		FilePath:     path,
		FileSize:     size,
		Duration:     entry.AttrValue("duration"),
		Type:         media.MediaTypeFromCode(entry.AttrValue("type")),
	}
	item.Container.ID = containerID
	deriveNames(item)

	for _, child := range entry.Children {
		switch child.Tag {
		case "stream":
			item.Tracks = append(item.Tracks, loadStream(child))
		case "thumbnail":
			item.Thumbnail = loadThumbnail(child)
		case "meta":
			item.Meta.Set(child.AttrValue("name"), child.AttrValue("value"))
		}
	}

	l.observeID(id)
	l.items = append(l.items, item)
}

func loadStream(entry *xmlcodec.Entry) media.Stream {
	return media.Stream{
		Index:         uint8(attrUint(entry, "index")),
		Type:          media.StreamTypeFromCode(entry.AttrValue("type")),
		CodecName:     entry.AttrValue("codecName"),
		Bitrate:       attrUint(entry, "bitrate"),
		AudioChannels: uint8(attrUint(entry, "nrAudioChannels")),
		SampleRate:    uint32(attrUint(entry, "sampleFrequenzy")),
		Width:         uint16(attrUint(entry, "width")),
		Height:        uint16(attrUint(entry, "height")),
		BitDepth:      uint8(attrUint(entry, "bitDepth")),
		Language:      entry.AttrValue("language"),
		IsDefault:     parseBoolAttr(entry.AttrValue("isDefault")),
		IsForced:      parseBoolAttr(entry.AttrValue("isForced")),
	}
}

func loadThumbnail(entry *xmlcodec.Entry) media.Thumbnail {
	return media.Thumbnail{
		ItemID:   attrUint(entry, "itemId"),
		FilePath: entry.AttrValue("path"),
		MimeType: entry.AttrValue("mimeType"),
		FileSize: attrUint(entry, "size"),
		Width:    uint16(attrUint(entry, "width")),
		Height:   uint16(attrUint(entry, "height")),
	}
}

func (l *Library) loadFormat(entry *xmlcodec.Entry) {
	id, err := strconv.ParseUint(entry.AttrValue("id"), 10, 64)
	if err != nil {
		return
	}
	format := &media.Container{ID: id, Name: entry.AttrValue("name")}
	for _, child := range entry.Children {
		switch child.Tag {
		case "extension":
			format.Extensions = append(format.Extensions, child.AttrValue("value"))
		case "mime":
			format.MimeTypes = append(format.MimeTypes, child.AttrValue("value"))
		}
	}
	if id >= l.nextFormatID {
		l.nextFormatID = id + 1
	}
	l.formats = append(l.formats, format)
}

// resolveContainers re-links loaded items to their format entries, which
// sit after the root element in the index file.
func (l *Library) resolveContainers() {
	for _, item := range l.items {
		for _, format := range l.formats {
			if format.ID == item.Container.ID {
				item.Container.Name = format.Name
				break
			}
		}
	}
}

func deriveNames(item *media.Item) {
	base := filepath.Base(item.FilePath)
	ext := filepath.Ext(base)
	item.Meta.FileName = strings.TrimSuffix(base, ext)
	item.Meta.FileExtension = strings.ToLower(strings.TrimPrefix(ext, "."))
}

func attrUint(entry *xmlcodec.Entry, name string) uint64 {
	n, err := strconv.ParseUint(entry.AttrValue(name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseBoolAttr(value string) bool {
	return value == "true" || value == "1"
}

func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

