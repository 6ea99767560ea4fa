package upnp

import (
	"sort"
	"strconv"
	"strings"

	"github.com/zeroexploit/slms/internal/media"
)

type sortKey struct {
	field string
	desc  bool
}

// parseSortCriteria splits a comma-separated list of signed fields
// ("+dc:title,-dc:date") into sort keys. A bare field name sorts
// ascending.
func parseSortCriteria(criteria string) []sortKey {
	var keys []sortKey
	for _, part := range strings.Split(criteria, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := sortKey{field: part}
		switch part[0] {
		case '+':
			key.field = part[1:]
		case '-':
			key.field = part[1:]
			key.desc = true
		}
		if key.field != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// sortFolders orders folders by the given criteria, by title when the
// criteria are empty.
func sortFolders(folders []media.Folder, criteria string) {
	keys := parseSortCriteria(criteria)
	if len(keys) == 0 {
		sort.SliceStable(folders, func(i, j int) bool {
			return folders[i].Title < folders[j].Title
		})
		return
	}
	sort.SliceStable(folders, func(i, j int) bool {
		return lessByKeys(keys, func(field string) (string, string) {
			return folderField(&folders[i], field), folderField(&folders[j], field)
		})
	})
}

// sortItems orders items by the given criteria, by file name when the
// criteria are empty.
func sortItems(items []media.Item, criteria string) {
	keys := parseSortCriteria(criteria)
	if len(keys) == 0 {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Meta.FileName < items[j].Meta.FileName
		})
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return lessByKeys(keys, func(field string) (string, string) {
			return itemField(&items[i], field), itemField(&items[j], field)
		})
	})
}

// lessByKeys compares two objects field by field, resolving ties with
// the next criterion.
func lessByKeys(keys []sortKey, fields func(field string) (string, string)) bool {
	for _, key := range keys {
		a, b := fields(key.field)
		if a == b {
			continue
		}
		if key.desc {
			return a > b
		}
		return a < b
	}
	return false
}

func folderField(f *media.Folder, field string) string {
	switch field {
	case "dc:title":
		return f.Title
	case "dc:date":
		return strconv.FormatInt(f.LastModified, 10)
	default:
		return f.Title
	}
}

// itemField extracts the sortable value of one criterion field. Unknown
// fields and empty values fall back to the file name.
func itemField(item *media.Item, field string) string {
	var value string
	switch field {
	case "dc:title":
		value = item.Meta.Title
	case "dc:date":
		value = item.Meta.Date
	case "upnp:genre":
		value = item.Meta.Genre
	case "dc:description":
		value = item.Meta.Description
	case "upnp:longDescription":
		value = item.Meta.LongDesc
	case "upnp:producer":
		value = item.Meta.Producer
	case "upnp:rating":
		value = item.Meta.Rating
	case "upnp:actor":
		value = item.Meta.Actor
	case "upnp:director":
		value = item.Meta.Director
	case "dc:publisher":
		value = item.Meta.Publisher
	case "upnp:album":
		value = item.Meta.Album
	case "upnp:originalTrackNumber":
		value = item.Meta.TrackNumber
	case "upnp:playlist":
		value = item.Meta.Playlist
	case "dc:contributor":
		value = item.Meta.Contributor
	case "dc:language":
		if len(item.Meta.Languages) > 0 {
			value = item.Meta.Languages[0]
		}
	case "upnp:artist":
		if len(item.Meta.Artists) > 0 {
			value = item.Meta.Artists[0]
		}
	case "dc:rights":
		if len(item.Meta.Copyrights) > 0 {
			value = item.Meta.Copyrights[0]
		}
	}
	if value == "" {
		return item.Meta.FileName
	}
	return value
}
