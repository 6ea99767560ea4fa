// Package probe extracts media information from files by running ffprobe
// and mapping its XML report onto the catalog data model.
package probe

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zeroexploit/slms/internal/media"
	"github.com/zeroexploit/slms/internal/xmlcodec"
)

// ErrProbeFailed marks files the prober could not analyze. The library
// drops such files and carries on.
var ErrProbeFailed = errors.New("media probe failed")

// Prober analyzes a single file into a catalog item.
type Prober interface {
	ParseFile(path string) (*media.Item, error)
}

// FFProbe probes files by spawning the ffprobe binary.
type FFProbe struct {
	BinPath string
}

// New returns a prober using the ffprobe binary from PATH.
func New() *FFProbe {
	return &FFProbe{BinPath: "ffprobe"}
}

// ParseFile runs ffprobe on path and returns the resulting item. The
// item carries no id yet; the library assigns one.
func (p *FFProbe) ParseFile(path string) (*media.Item, error) {
	out, err := exec.Command(p.BinPath,
		"-v", "quiet",
		"-print_format", "xml",
		"-show_format",
		"-show_streams",
		"-unit",
		path,
	).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe %s: %v", ErrProbeFailed, path, err)
	}
	if !utf8.Valid(out) {
		return nil, fmt.Errorf("%w: ffprobe produced non-UTF-8 output for %s", ErrProbeFailed, path)
	}

	item, err := parseOutput(path, string(out))
	if err != nil {
		return nil, err
	}

	if fi, err := os.Stat(path); err == nil {
		item.LastModified = fi.ModTime().Unix()
		if item.FileSize == 0 {
			item.FileSize = uint64(fi.Size())
		}
	}

	return item, nil
}

func parseOutput(path, output string) (*media.Item, error) {
	entries := xmlcodec.Parse(output)
	format := xmlcodec.Find(entries, "format")
	streams := xmlcodec.Find(entries, "streams")
	if format == nil || streams == nil {
		return nil, fmt.Errorf("%w: incomplete ffprobe report for %s", ErrProbeFailed, path)
	}

	item := &media.Item{FilePath: path}

	base := filepath.Base(path)
	dotExt := filepath.Ext(base)
	item.Meta.FileName = strings.TrimSuffix(base, dotExt)
	item.Meta.FileExtension = strings.ToLower(strings.TrimPrefix(dotExt, "."))

	item.Container.Name = format.AttrValue("format_name")
	if item.Meta.FileExtension != "" {
		item.Container.Extensions = []string{item.Meta.FileExtension}
	}

	// With -unit, ffprobe appends a unit after a space; the number is
	// everything before it.
	if raw := format.AttrValue("duration"); raw != "" {
		duration, err := media.FormatDuration(trimUnit(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProbeFailed, path, err)
		}
		item.Duration = duration
	}
	if raw := format.AttrValue("size"); raw != "" {
		size, err := strconv.ParseUint(trimUnit(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad size %q", ErrProbeFailed, path, raw)
		}
		item.FileSize = size
	}

	for _, tag := range format.Children {
		if tag.Tag == "tag" {
			setMetaTag(&item.Meta, tag.AttrValue("key"), tag.AttrValue("value"))
		}
	}

	for _, entry := range streams.Children {
		if entry.Tag != "stream" {
			continue
		}
		streamType := media.StreamTypeFromCodecType(entry.AttrValue("codec_type"))
		if streamType == media.StreamUnknown {
			continue
		}

		index, err := strconv.ParseUint(entry.AttrValue("index"), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad stream index %q", ErrProbeFailed, path, entry.AttrValue("index"))
		}

		track := media.Stream{
			Index:         uint8(index),
			Type:          streamType,
			CodecName:     entry.AttrValue("codec_name"),
			Bitrate:       parseUint64(entry.AttrValue("bit_rate")),
			AudioChannels: uint8(parseUint64(entry.AttrValue("channels"))),
			SampleRate:    uint32(parseUint64(entry.AttrValue("sample_rate"))),
			Width:         uint16(parseUint64(entry.AttrValue("width"))),
			Height:        uint16(parseUint64(entry.AttrValue("height"))),
			BitDepth:      uint8(parseUint64(entry.AttrValue("bits_per_sample"))),
		}

		if disposition := entry.Child("disposition"); disposition != nil {
			track.IsDefault = disposition.AttrValue("default") == "1"
			track.IsForced = disposition.AttrValue("forced") == "1"
		}
		for _, tag := range entry.Children {
			if tag.Tag == "tag" && tag.AttrValue("key") == "language" {
				track.Language = tag.AttrValue("value")
			}
		}

		item.Tracks = append(item.Tracks, track)
	}

	if len(item.Tracks) == 0 {
		return nil, fmt.Errorf("%w: no recognized tracks in %s", ErrProbeFailed, path)
	}

	item.DeriveType()
	return item, nil
}

func setMetaTag(meta *media.MetaData, key, value string) {
	switch strings.ToLower(key) {
	case "title":
		meta.Set("title", value)
	case "album":
		meta.Set("album", value)
	case "artist":
		meta.Set("artist", value)
	case "composer":
		meta.Set("composer", value)
	case "copyright":
		meta.Set("copyright", value)
	case "date":
		meta.Set("date", value)
	case "comment":
		meta.Set("description", value)
	case "genre":
		meta.Set("genre", value)
	case "language":
		meta.Set("language", value)
	case "publisher":
		meta.Set("publisher", value)
	case "track":
		meta.Set("trackNumber", value)
	case "performer":
		meta.Set("actor", value)
	}
}

// trimUnit cuts a value at the first space, dropping the unit suffix
// ffprobe emits in -unit mode ("1048576 byte" -> "1048576").
func trimUnit(value string) string {
	if space := strings.IndexByte(value, ' '); space >= 0 {
		return value[:space]
	}
	return value
}

func parseUint64(value string) uint64 {
	n, err := strconv.ParseUint(trimUnit(value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
