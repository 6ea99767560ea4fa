package httpd

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeroexploit/slms/internal/config"
	"github.com/zeroexploit/slms/internal/library"
	"github.com/zeroexploit/slms/internal/media"
	"github.com/zeroexploit/slms/internal/probe"
)

const streamPayload = "0123456789"

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
		Duration:     "00:02:00.00",
	}
	item.Meta.FileName = strings.TrimSuffix(base, filepath.Ext(base))
	item.Meta.FileExtension = strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	item.Container.Name = "matroska"
	item.Tracks = []media.Stream{
		{Index: 0, Type: media.StreamVideo, CodecName: "h264", IsDefault: true, Width: 1920, Height: 1080},
	}
	item.DeriveType()
	return item, nil
}

// newServer builds a server over a share holding one video file with a
// known payload.
func newServer(t *testing.T) (*Server, uint64) {
	t.Helper()
	share := filepath.Join(t.TempDir(), "media")
	require.NoError(t, os.MkdirAll(share, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(share, "movie.mkv"), []byte(streamPayload), 0o644))

	iconPath := filepath.Join(t.TempDir(), "icon.png")
	require.NoError(t, os.WriteFile(iconPath, []byte("PNGDATA"), 0o644))

	cfg := &config.Config{
		ServerName:      "SLMS",
		ServerPort:      5001,
		ServerIP:        "192.0.2.5",
		ServerUUID:      "00000000-0000-0000-0000-000000000001",
		ServerTag:       "Linux/6.1, SLMS/1.0.0, UPnP/1.0, DLNADOC/1.50",
		DefaultRenderer: "default.cfg",
		IconPath:        iconPath,
		Renderers:       []config.Renderer{{DisplayName: "default"}},
	}

	lib := library.New(filepath.Join(t.TempDir(), "db.xml"), []string{share}, testProber{})
	lib.BootUp()

	items := lib.GetItemsFromParent(1)
	require.Len(t, items, 1)

	return New(cfg, lib), items[0].ID
}

func serve(s *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func TestDescriptionRoute(t *testing.T) {
	s, _ := newServer(t)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/connection/description.xml", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<friendlyName>SLMS</friendlyName>")
	assert.Contains(t, body, "uuid:00000000-0000-0000-0000-000000000001")

	h := w.Header()
	assert.Equal(t, `text/xml; charset="utf-8"`, h.Get("Content-Type"))
	assert.Equal(t, "no-cache", h.Get("Cache-Control"))
	assert.Equal(t, "uuid:00000000-0000-0000-0000-000000000001", h.Get("SID"))
	assert.Equal(t, "Linux/6.1, SLMS/1.0.0, UPnP/1.0, DLNADOC/1.50", h.Get("Server"))
	assert.Equal(t, strconv.Itoa(len(body)), h.Get("Content-Length"))
	assert.NotEmpty(t, h.Get("Date"))
	assert.NotEmpty(t, h.Get("Expires"))
}

func TestServiceDescriptionRoutes(t *testing.T) {
	s, _ := newServer(t)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/connection/content_directory.xml", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<name>Browse</name>")

	w = serve(s, httptest.NewRequest(http.MethodGet, "/connection/connection_manager.xml", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<name>GetProtocolInfo</name>")
}

func browseRequest(objectID string) *http.Request {
	body := `<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
		`<u:Browse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1">` +
		`<ObjectID>` + objectID + `</ObjectID>` +
		`<BrowseFlag>BrowseDirectChildren</BrowseFlag>` +
		`<Filter>*</Filter>` +
		`<StartingIndex>0</StartingIndex>` +
		`<RequestedCount>0</RequestedCount>` +
		`<SortCriteria></SortCriteria>` +
		`</u:Browse></s:Body></s:Envelope>`
	r := httptest.NewRequest(http.MethodPost, "/content/content_directory", strings.NewReader(body))
	r.Header.Set("SOAPAction", `"urn:schemas-upnp-org:service:ContentDirectory:1#Browse"`)
	return r
}

func TestBrowseOverHTTP(t *testing.T) {
	s, _ := newServer(t)
	w := serve(s, browseRequest("0"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BrowseResponse")
	assert.Contains(t, w.Body.String(), "<NumberReturned>1</NumberReturned>")
}

func TestMalformedControlRejected(t *testing.T) {
	s, _ := newServer(t)
	w := serve(s, browseRequest("not-a-number"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnsupportedActionRejected(t *testing.T) {
	s, _ := newServer(t)
	r := httptest.NewRequest(http.MethodPost, "/content/content_directory", strings.NewReader("<s:Envelope/>"))
	r.Header.Set("SOAPAction", `"urn:schemas-upnp-org:service:ContentDirectory:1#DestroyObject"`)
	w := serve(s, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscribeRoutes(t *testing.T) {
	s, _ := newServer(t)

	w := serve(s, httptest.NewRequest("SUBSCRIBE", "/content/content_directory", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Second-180", w.Header().Get("Timeout"))
	assert.Contains(t, w.Body.String(), "<SystemUpdateID>")

	w = serve(s, httptest.NewRequest("SUBSCRIBE", "/connection/connection_manager", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<SourceProtocolInfo>")
}

func TestStreamFullFile(t *testing.T) {
	s, id := newServer(t)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/stream/"+strconv.FormatUint(id, 10), nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, streamPayload, w.Body.String())

	h := w.Header()
	assert.Equal(t, "video/x-matroska", h.Get("Content-Type"))
	assert.Equal(t, "bytes", h.Get("Accept-Ranges"))
	assert.Equal(t, "DLNA.ORG_OP=11;DLNA.ORG_CI=0", h.Get("ContentFeatures.DLNA.ORG"))
	assert.Equal(t, "Streaming", h.Get("TransferMode.DLNA.ORG"))
	assert.Equal(t, strconv.Itoa(len(streamPayload)), h.Get("Content-Length"))
}

func TestStreamHead(t *testing.T) {
	s, id := newServer(t)
	w := serve(s, httptest.NewRequest(http.MethodHead, "/stream/"+strconv.FormatUint(id, 10), nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, strconv.Itoa(len(streamPayload)), w.Header().Get("Content-Length"))
}

func TestStreamRanges(t *testing.T) {
	s, id := newServer(t)
	url := "/stream/" + strconv.FormatUint(id, 10)

	cases := []struct {
		name         string
		header       string
		body         string
		contentRange string
	}{
		{"closed", "bytes=2-5", "2345", "bytes 2-5/10"},
		{"unitCaseInsensitive", "Bytes=2-5", "2345", "bytes 2-5/10"},
		{"openEnded", "bytes=7-", "789", "bytes 7-9/10"},
		{"bareStart", "bytes=7", "789", "bytes 7-9/10"},
		{"suffix", "bytes=-3", "789", "bytes 7-9/10"},
		{"lastByteAtSize", "bytes=8-10", "89", "bytes 8-9/10"},
		{"wholeFile", "bytes=0-9", streamPayload, "bytes 0-9/10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, url, nil)
			r.Header.Set("Range", tc.header)
			w := serve(s, r)

			require.Equal(t, http.StatusPartialContent, w.Code)
			assert.Equal(t, tc.body, w.Body.String())
			assert.Equal(t, tc.contentRange, w.Header().Get("Content-Range"))
			assert.Equal(t, strconv.Itoa(len(tc.body)), w.Header().Get("Content-Length"))
		})
	}
}

func TestStreamRangeUnsatisfiable(t *testing.T) {
	s, id := newServer(t)
	url := "/stream/" + strconv.FormatUint(id, 10)

	for _, header := range []string{"bytes=5-2", "bytes=0-11", "bytes=10-"} {
		r := httptest.NewRequest(http.MethodGet, url, nil)
		r.Header.Set("Range", header)
		w := serve(s, r)

		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code, header)
		assert.Equal(t, "bytes */10", w.Header().Get("Content-Range"), header)
	}
}

func TestStreamRangeMalformed(t *testing.T) {
	s, id := newServer(t)
	url := "/stream/" + strconv.FormatUint(id, 10)

	for _, header := range []string{"bytes=abc", "items=0-1", "bytes=-", "bytes=1-x"} {
		r := httptest.NewRequest(http.MethodGet, url, nil)
		r.Header.Set("Range", header)
		w := serve(s, r)
		assert.Equal(t, http.StatusBadRequest, w.Code, header)
	}
}

func TestStreamBadIDs(t *testing.T) {
	s, _ := newServer(t)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/stream/999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/stream/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIconRoute(t *testing.T) {
	s, _ := newServer(t)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/files/images/icon.png", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "PNGDATA", w.Body.String())
}

func TestUnknownPathIsBadRequest(t *testing.T) {
	s, _ := newServer(t)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, w.Header().Get("Server"))
}

func TestParseRange(t *testing.T) {
	const size = 1 << 21

	start, end, err := parseRange("bytes=0-1048575", size)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), start)
	assert.Equal(t, uint64(1048576), end)

	start, end, err = parseRange("bytes=1048576-", size)
	require.NoError(t, err)
	assert.Equal(t, uint64(1048576), start)
	assert.Equal(t, uint64(size), end)

	// Multiple ranges degrade to the first one.
	start, end, err = parseRange("bytes=0-1,5-9", size)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), start)
	assert.Equal(t, uint64(2), end)

	// A suffix longer than the file covers the whole file.
	start, end, err = parseRange("bytes=-99999999", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), start)
	assert.Equal(t, uint64(10), end)

	// The unit keyword matches regardless of case.
	start, end, err = parseRange("BYTES=0-1", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), start)
	assert.Equal(t, uint64(2), end)
}
