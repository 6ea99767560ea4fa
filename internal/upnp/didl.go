package upnp

import (
	"fmt"
	"strings"

	"github.com/zeroexploit/slms/internal/config"
	"github.com/zeroexploit/slms/internal/media"
	"github.com/zeroexploit/slms/internal/xmlcodec"
)

const (
	didlOpen = `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
		` xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">`
	didlClose = `</DIDL-Lite>`
)

func folderDIDL(f *media.Folder) string {
	return fmt.Sprintf(`<container id="%d" childCount="%d" parentID="%d" restricted="1">`+
		`<dc:title>%s</dc:title>`+
		`<dc:date>%d</dc:date>`+
		`<upnp:storageMedium>HDD</upnp:storageMedium>`+
		`<upnp:class>object.container.storageFolder</upnp:class>`+
		`</container>`,
		f.ID, f.ChildCount, f.ParentID, sanitizeTitle(f.Title), f.LastModified)
}

func itemDIDL(item *media.Item, renderer *config.Renderer, cfg *config.Config) string {
	var sb strings.Builder

	title := item.Meta.FileName
	if !renderer.HideFileExtension && item.Meta.FileExtension != "" {
		title += "." + item.Meta.FileExtension
	}
	if renderer.TitleInsteadOfName && item.Meta.Title != "" {
		title = item.Meta.Title
	}

	fmt.Fprintf(&sb, `<item id="%d" parentID="%d" restricted="1">`, item.ID, item.ParentID)
	sb.WriteString("<dc:title>" + sanitizeTitle(title) + "</dc:title>")

	fmt.Fprintf(&sb, `<res protocolInfo="http-get:*:%s:DLNA.ORG_OP=11;DLNA.ORG_CI=0" size="%d"`,
		item.MimeType(), item.FileSize)

	track := item.DefaultTrack()
	if item.Type == media.TypeVideo || item.Type == media.TypePicture {
		var bitrate uint64
		var channels uint8
		var sampleRate uint32
		if track != nil {
			bitrate = track.Bitrate
			channels = track.AudioChannels
			sampleRate = track.SampleRate
		}
		fmt.Fprintf(&sb, ` bitrate="%d" duration="%s" nrAudioChannels="%d" sampleFrequency="%d"`,
			bitrate, item.Duration, channels, sampleRate)
		if item.Type == media.TypeVideo && track != nil {
			fmt.Fprintf(&sb, ` resolution="%dx%d"`, track.Width, track.Height)
		}
	}
	fmt.Fprintf(&sb, `>http://%s:%d/stream/%d</res>`, cfg.ServerIP, cfg.ServerPort, item.ID)

	sb.WriteString("<upnp:class>" + item.Type.UPnPClass() + "</upnp:class>")

	appendMeta(&sb, "upnp:genre", item.Meta.Genre)
	appendMeta(&sb, "dc:description", item.Meta.Description)
	appendMeta(&sb, "upnp:longDescription", item.Meta.LongDesc)
	appendMeta(&sb, "upnp:producer", item.Meta.Producer)
	appendMeta(&sb, "upnp:rating", item.Meta.Rating)
	appendMeta(&sb, "upnp:actor", item.Meta.Actor)
	appendMeta(&sb, "upnp:director", item.Meta.Director)
	appendMeta(&sb, "dc:publisher", item.Meta.Publisher)
	appendMeta(&sb, "upnp:album", item.Meta.Album)
	appendMeta(&sb, "upnp:originalTrackNumber", item.Meta.TrackNumber)
	appendMeta(&sb, "upnp:playlist", item.Meta.Playlist)
	appendMeta(&sb, "dc:contributor", item.Meta.Contributor)
	appendMeta(&sb, "upnp:date", item.Meta.Date)
	for _, language := range item.Meta.Languages {
		appendMeta(&sb, "dc:language", language)
	}
	for _, artist := range item.Meta.Artists {
		appendMeta(&sb, "upnp:artist", artist)
	}
	for _, rights := range item.Meta.Copyrights {
		appendMeta(&sb, "dc:rights", rights)
	}

	sb.WriteString("</item>")
	return sb.String()
}

func appendMeta(sb *strings.Builder, tag, value string) {
	if value == "" {
		return
	}
	sb.WriteString("<" + tag + ">" + xmlcodec.Escape(value) + "</" + tag + ">")
}

// sanitizeTitle makes a display title safe for DIDL. Ampersands trip up
// several renderer XML parsers even when escaped, so they become " u. ".
func sanitizeTitle(title string) string {
	return xmlcodec.Escape(strings.ReplaceAll(title, "&", " u. "))
}
