// Package media holds the catalog data model: items, folders, streams,
// metadata and the derived presentation values (MIME type, DLNA duration).
package media

import (
	"fmt"
	"strconv"
	"strings"
)

// MediaType classifies an item by its recognized tracks.
type MediaType int

const (
	TypeUnknown MediaType = iota
	TypeAudio
	TypePicture
	TypeVideo
)

// Code returns the numeric form persisted in the index.
func (t MediaType) Code() string {
	return strconv.Itoa(int(t))
}

// MediaTypeFromCode parses the persisted numeric form. Unknown codes map
// to TypeUnknown.
func MediaTypeFromCode(code string) MediaType {
	switch code {
	case "1":
		return TypeAudio
	case "2":
		return TypePicture
	case "3":
		return TypeVideo
	default:
		return TypeUnknown
	}
}

// UPnPClass returns the object class advertised in DIDL-Lite.
func (t MediaType) UPnPClass() string {
	switch t {
	case TypeAudio:
		return "object.item.audioItem"
	case TypePicture:
		return "object.item.imageItem"
	case TypeVideo:
		return "object.item.videoItem"
	default:
		return "object.item"
	}
}

// StreamType classifies a single track inside a container.
type StreamType int

const (
	StreamUnknown StreamType = iota
	StreamAudio
	StreamVideo
	StreamImage
	StreamSubtitle
)

// Code returns the numeric form persisted in the index.
func (t StreamType) Code() string {
	return strconv.Itoa(int(t))
}

// StreamTypeFromCode parses the persisted numeric form.
func StreamTypeFromCode(code string) StreamType {
	switch code {
	case "1":
		return StreamAudio
	case "2":
		return StreamVideo
	case "3":
		return StreamImage
	case "4":
		return StreamSubtitle
	default:
		return StreamUnknown
	}
}

// StreamTypeFromCodecType maps an ffprobe codec_type value.
func StreamTypeFromCodecType(codecType string) StreamType {
	switch codecType {
	case "audio":
		return StreamAudio
	case "video":
		return StreamVideo
	case "image":
		return StreamImage
	case "subtitle":
		return StreamSubtitle
	default:
		return StreamUnknown
	}
}

// Stream is one track of a media file.
type Stream struct {
	Index         uint8
	Type          StreamType
	CodecName     string
	Bitrate       uint64
	AudioChannels uint8
	SampleRate    uint32
	Width         uint16
	Height        uint16
	BitDepth      uint8
	Language      string
	IsDefault     bool
	IsForced      bool
}

// MetaData carries the container-level tags of an item plus the names
// derived from its path.
type MetaData struct {
	Title         string
	Genre         string
	Description   string
	LongDesc      string
	Producer      string
	Rating        string
	Actor         string
	Director      string
	Publisher     string
	Album         string
	TrackNumber   string
	Playlist      string
	Contributor   string
	Date          string
	Composer      string
	FileName      string
	FileExtension string
	Languages     []string
	Artists       []string
	Copyrights    []string
}

// Thumbnail is an optional preview image attached to an item.
type Thumbnail struct {
	ItemID   uint64
	FilePath string
	FileSize uint64
	MimeType string
	Width    uint16
	Height   uint16
}

// Available reports whether a thumbnail has actually been generated.
func (t Thumbnail) Available() bool {
	return t.FilePath != ""
}

// Container describes an indexed container format with the extensions and
// MIME types it covers.
type Container struct {
	ID         uint64
	Name       string
	Extensions []string
	MimeTypes  []string
}

// Folder is one directory of a share, mirrored into the catalog.
type Folder struct {
	ID           uint64
	ParentID     uint64
	Title        string
	Path         string
	ChildCount   uint32
	LastModified int64
}

// Item is one probed media file.
type Item struct {
	ID           uint64
	ParentID     uint64
	LastModified int64
	FilePath     string
	FileSize     uint64
	Duration     string
	Type         MediaType
	Container    Container
	Tracks       []Stream
	Thumbnail    Thumbnail
	Meta         MetaData
}

// DefaultTrack returns the track flagged as default, falling back to the
// first one. Nil when the item has no tracks.
func (i *Item) DefaultTrack() *Stream {
	for idx := range i.Tracks {
		if i.Tracks[idx].IsDefault {
			return &i.Tracks[idx]
		}
	}
	if len(i.Tracks) > 0 {
		return &i.Tracks[0]
	}
	return nil
}

// DeriveType classifies the item from its tracks: any video track makes
// it a video, otherwise any audio track an audio item, otherwise any
// image track a picture.
func (i *Item) DeriveType() {
	i.Type = TypeUnknown
	hasAudio, hasImage := false, false
	for _, s := range i.Tracks {
		switch s.Type {
		case StreamVideo:
			i.Type = TypeVideo
			return
		case StreamAudio:
			hasAudio = true
		case StreamImage:
			hasImage = true
		}
	}
	if hasAudio {
		i.Type = TypeAudio
	} else if hasImage {
		i.Type = TypePicture
	}
}

// MimeType derives the HTTP content type from the file extension and the
// media type, with a wildcard per media class when the extension is not
// recognized.
func (i *Item) MimeType() string {
	ext := strings.ToLower(i.Meta.FileExtension)
	switch i.Type {
	case TypeVideo:
		switch ext {
		case "mkv":
			return "video/x-matroska"
		case "avi":
			return "video/x-msvideo"
		case "mpeg", "mpg", "mpe":
			return "video/mpeg"
		case "mov", "qt":
			return "video/quicktime"
		case "mp4":
			return "video/mp4"
		default:
			return "video/*"
		}
	case TypeAudio:
		switch ext {
		case "mp3":
			return "audio/mpeg"
		case "wav":
			return "audio/x-wav"
		case "flac":
			return "audio/flac"
		default:
			return "audio/*"
		}
	case TypePicture:
		switch ext {
		case "jpg", "jpeg", "jpe":
			return "image/jpeg"
		case "png":
			return "image/png"
		default:
			return "image/*"
		}
	default:
		return "*"
	}
}

// FormatDuration converts an ffprobe duration in seconds (e.g. "3723.456")
// to the DLNA form HH:MM:SS.fff. The fraction is carried over verbatim
// from the input, truncated to at most two digits; ".00" when absent.
func FormatDuration(raw string) (string, error) {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", fmt.Errorf("parse duration %q: %w", raw, err)
	}

	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	fraction := ".00"
	if dot := strings.IndexByte(raw, '.'); dot >= 0 {
		fraction = raw[dot:]
		if len(fraction) > 3 {
			fraction = fraction[:3]
		}
	}

	return fmt.Sprintf("%02d:%02d:%02d%s", hours, minutes, secs, fraction), nil
}
