package upnp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeroexploit/slms/internal/config"
	"github.com/zeroexploit/slms/internal/library"
	"github.com/zeroexploit/slms/internal/xmlcodec"
)

// ContentDirectory implements the ContentDirectory:1 service on top of
// the library.
type ContentDirectory struct {
	cfg *config.Config
	lib *library.Library
}

// NewContentDirectory creates the service.
func NewContentDirectory(cfg *config.Config, lib *library.Library) *ContentDirectory {
	return &ContentDirectory{cfg: cfg, lib: lib}
}

// SCPD returns the ContentDirectory service description.
func (d *ContentDirectory) SCPD() string {
	return contentDirectorySCPD
}

// HandleControl dispatches one SOAP action by its SOAPAction header
// value. An empty result means the action is not supported.
func (d *ContentDirectory) HandleControl(soapAction, body string) (string, error) {
	switch {
	case strings.HasSuffix(soapAction, "#Browse"):
		if flag, _ := extractTag(body, "BrowseFlag"); flag == "BrowseMetadata" {
			return d.browseMetadata(body)
		}
		return d.browseDirectChildren(body)
	case strings.HasSuffix(soapAction, "#GetSearchCapabilities"):
		return soapResponse("ContentDirectory", "GetSearchCapabilities", "<SearchCaps>*</SearchCaps>"), nil
	case strings.HasSuffix(soapAction, "#GetSortCapabilities"):
		return soapResponse("ContentDirectory", "GetSortCapabilities", "<SortCaps>*</SortCaps>"), nil
	case strings.HasSuffix(soapAction, "#GetSystemUpdateID"):
		return soapResponse("ContentDirectory", "GetSystemUpdateID",
			"<Id>"+strconv.FormatUint(uint64(d.lib.SystemUpdateID()), 10)+"</Id>"), nil
	case strings.HasSuffix(soapAction, "#Search"):
		return d.search(), nil
	}
	return "", nil
}

// SubscribeResponse returns the eventing stub sent on SUBSCRIBE.
func (d *ContentDirectory) SubscribeResponse() string {
	return `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0" xmlns:s="urn:schemas-upnp-org:service:ContentDirectory:1">` +
		`<e:property><TransferIDs></TransferIDs></e:property>` +
		`<e:property><ContainerUpdateIDs></ContainerUpdateIDs></e:property>` +
		`<e:property><SystemUpdateID>` + strconv.FormatUint(uint64(d.lib.SystemUpdateID()), 10) + `</SystemUpdateID></e:property>` +
		`</e:propertyset>`
}

// browseDirectChildren lists the children of a container. Folders come
// first; when at least one folder was emitted the item cursor restarts
// at zero, so StartingIndex pages through folders before items.
func (d *ContentDirectory) browseDirectChildren(body string) (string, error) {
	objectID, err := parseTagUint(body, "ObjectID")
	if err != nil {
		return "", err
	}
	start, err := parseTagUint(body, "StartingIndex")
	if err != nil {
		return "", err
	}
	requested, err := parseTagUint(body, "RequestedCount")
	if err != nil {
		return "", err
	}
	criteria, _ := extractTag(body, "SortCriteria")

	folders := d.lib.GetFoldersFromParent(objectID)
	items := d.lib.GetItemsFromParent(objectID)
	sortFolders(folders, criteria)
	sortItems(items, criteria)

	var didl strings.Builder
	var emitted uint64

	for i := start; i < uint64(len(folders)); i++ {
		if requested != 0 && emitted >= requested {
			break
		}
		didl.WriteString(folderDIDL(&folders[i]))
		emitted++
	}

	itemStart := start
	if emitted > 0 {
		itemStart = 0
	}
	for i := itemStart; i < uint64(len(items)); i++ {
		if requested != 0 && emitted >= requested {
			break
		}
		didl.WriteString(itemDIDL(&items[i], d.cfg.ActiveRenderer(), d.cfg))
		emitted++
	}

	updateID := 1
	if emitted > 0 {
		updateID = 2
	}

	return browseResponse(didl.String(), emitted, uint64(len(folders)+len(items)), updateID), nil
}

// browseMetadata returns the single object named by ObjectID, trying
// folders before items.
func (d *ContentDirectory) browseMetadata(body string) (string, error) {
	objectID, err := parseTagUint(body, "ObjectID")
	if err != nil {
		return "", err
	}

	var didl string
	var returned uint64

	if folder, err := d.lib.GetFolderDirect(objectID); err == nil {
		didl = folderDIDL(&folder)
		returned = 1
	} else if item, err := d.lib.GetItemDirect(objectID); err == nil {
		didl = itemDIDL(&item, d.cfg.ActiveRenderer(), d.cfg)
		returned = 1
	}

	updateID := 1
	if returned > 0 {
		updateID = 2
	}

	return browseResponse(didl, returned, returned, updateID), nil
}

// search always reports an empty result set; search is not backed by
// the library.
func (d *ContentDirectory) search() string {
	result := xmlcodec.Escape(didlOpen + didlClose)
	return soapResponse("ContentDirectory", "Search",
		"<Result>"+result+"</Result>"+
			"<NumberReturned>0</NumberReturned>"+
			"<TotalMatches>0</TotalMatches>"+
			"<UpdateID>1</UpdateID>")
}

func browseResponse(didl string, returned, total uint64, updateID int) string {
	result := xmlcodec.Escape(didlOpen + didl + didlClose)
	return soapResponse("ContentDirectory", "Browse",
		"<Result>"+result+"</Result>"+
			fmt.Sprintf("<NumberReturned>%d</NumberReturned>", returned)+
			fmt.Sprintf("<TotalMatches>%d</TotalMatches>", total)+
			fmt.Sprintf("<UpdateID>%d</UpdateID>", updateID))
}

func parseTagUint(body, tag string) (uint64, error) {
	raw, ok := extractTag(body, tag)
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedRequest, tag)
	}
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q", ErrMalformedRequest, tag, raw)
	}
	return value, nil
}
