package xmlcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTree(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<root id="0" parentId="-1">
	<folder id="1" title="Movies" path="/srv/media">
		<item id="2" path="/srv/media/movie.mkv" size="1024">
			<stream index="0" type="2"/>
			<meta name="genre" value="Drama"/>
		</item>
	</folder>
</root>
<format id="0" name="matroska"/>
`
	entries := Parse(doc)
	require.Len(t, entries, 2)

	root := entries[0]
	assert.Equal(t, "root", root.Tag)
	assert.Equal(t, "0", root.AttrValue("id"))
	assert.Equal(t, "-1", root.AttrValue("parentId"))
	require.Len(t, root.Children, 1)

	folder := root.Children[0]
	assert.Equal(t, "Movies", folder.AttrValue("title"))
	require.Len(t, folder.Children, 1)

	item := folder.Children[0]
	assert.Equal(t, "/srv/media/movie.mkv", item.AttrValue("path"))
	require.Len(t, item.Children, 2)
	assert.Equal(t, "stream", item.Children[0].Tag)
	assert.Equal(t, "meta", item.Children[1].Tag)

	assert.Equal(t, "format", entries[1].Tag)
	assert.Equal(t, "matroska", entries[1].AttrValue("name"))
}

func TestParseValue(t *testing.T) {
	entries := Parse(`<outer><title>Some Movie</title></outer>`)
	require.Len(t, entries, 1)
	title := entries[0].Child("title")
	require.NotNil(t, title)
	assert.Equal(t, "Some Movie", title.Value)
}

func TestParseIgnoresNamespaces(t *testing.T) {
	entries := Parse(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:Browse><ObjectID>0</ObjectID></u:Browse></s:Body></s:Envelope>`)
	browse := Find(entries, "Browse")
	require.NotNil(t, browse)
	obj := browse.Child("ObjectID")
	require.NotNil(t, obj)
	assert.Equal(t, "0", obj.Value)
}

func TestParseMalformedBestEffort(t *testing.T) {
	entries := Parse(`<root><folder id="1"/><folder id="2" broken`)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Children, 1)
	assert.Equal(t, "1", entries[0].Children[0].AttrValue("id"))
}

func TestParseEmpty(t *testing.T) {
	assert.Empty(t, Parse(""))
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.OpenTag("root", []Attr{{Name: "id", Value: "0"}}, true)
	w.OpenTag("folder", []Attr{{Name: "path", Value: `/srv/a&b/"quoted"`}}, true)
	w.OpenTag("stream", []Attr{{Name: "index", Value: "0"}}, false)
	w.CloseTag("folder")
	w.OpenTag("note", nil, true)
	w.Value("hello <world>")
	w.CloseTag("note")
	w.CloseTag("root")

	entries := Parse(w.String())
	require.Len(t, entries, 1)
	root := entries[0]
	require.Len(t, root.Children, 2)
	assert.Equal(t, `/srv/a&b/"quoted"`, root.Children[0].AttrValue("path"))
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "stream", root.Children[0].Children[0].Tag)
	assert.Equal(t, "hello <world>", root.Children[1].Value)
}

func TestFindNested(t *testing.T) {
	entries := Parse(`<a><b><c target="yes"/></b></a>`)
	c := Find(entries, "c")
	require.NotNil(t, c)
	assert.Equal(t, "yes", c.AttrValue("target"))
	assert.Nil(t, Find(entries, "missing"))
}
