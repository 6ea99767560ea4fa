package media

// MetaPair is one persisted name/value metadata entry.
type MetaPair struct {
	Name  string
	Value string
}

// Set stores a metadata value under its canonical index name. The
// list-valued names (language, artist, copyright) append. Unknown names
// are ignored.
func (m *MetaData) Set(name, value string) {
	if value == "" {
		return
	}
	switch name {
	case "title":
		m.Title = value
	case "genre":
		m.Genre = value
	case "description":
		m.Description = value
	case "longDescription":
		m.LongDesc = value
	case "producer":
		m.Producer = value
	case "rating":
		m.Rating = value
	case "actor":
		m.Actor = value
	case "director":
		m.Director = value
	case "publisher":
		m.Publisher = value
	case "album":
		m.Album = value
	case "trackNumber":
		m.TrackNumber = value
	case "playlist":
		m.Playlist = value
	case "contributor":
		m.Contributor = value
	case "date":
		m.Date = value
	case "composer":
		m.Composer = value
	case "language":
		m.Languages = append(m.Languages, value)
	case "artist":
		m.Artists = append(m.Artists, value)
	case "copyright":
		m.Copyrights = append(m.Copyrights, value)
	}
}

// Pairs returns the non-empty metadata values under their canonical
// index names, list values as one pair each.
func (m *MetaData) Pairs() []MetaPair {
	var pairs []MetaPair
	add := func(name, value string) {
		if value != "" {
			pairs = append(pairs, MetaPair{Name: name, Value: value})
		}
	}
	add("title", m.Title)
	add("genre", m.Genre)
	add("description", m.Description)
	add("longDescription", m.LongDesc)
	add("producer", m.Producer)
	add("rating", m.Rating)
	add("actor", m.Actor)
	add("director", m.Director)
	add("publisher", m.Publisher)
	add("album", m.Album)
	add("trackNumber", m.TrackNumber)
	add("playlist", m.Playlist)
	add("contributor", m.Contributor)
	add("date", m.Date)
	add("composer", m.Composer)
	for _, v := range m.Languages {
		add("language", v)
	}
	for _, v := range m.Artists {
		add("artist", v)
	}
	for _, v := range m.Copyrights {
		add("copyright", v)
	}
	return pairs
}
