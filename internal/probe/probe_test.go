package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeroexploit/slms/internal/media"
)

const sampleReport = `<?xml version="1.0" encoding="UTF-8"?>
<ffprobe>
	<streams>
		<stream index="0" codec_name="h264" codec_type="video" width="1920 pixel" height="1080 pixel" bits_per_raw_sample="8">
			<disposition default="1" forced="0"/>
		</stream>
		<stream index="1" codec_name="aac" codec_type="audio" sample_rate="48000 Hz" channels="6" bit_rate="384000 bit/s" bits_per_sample="16">
			<disposition default="1" forced="0"/>
			<tag key="language" value="eng"/>
		</stream>
		<stream index="2" codec_name="subrip" codec_type="subtitle">
			<disposition default="0" forced="1"/>
			<tag key="language" value="ger"/>
		</stream>
		<stream index="3" codec_name="bin_data" codec_type="data"/>
	</streams>
	<format format_name="matroska,webm" duration="3723.456000 s" size="1073741824 byte" bit_rate="2293760 bit/s">
		<tag key="title" value="Some Movie"/>
		<tag key="GENRE" value="Drama"/>
		<tag key="comment" value="remux"/>
		<tag key="track" value="3"/>
		<tag key="performer" value="Jane Doe"/>
	</format>
</ffprobe>
`

func TestParseOutput(t *testing.T) {
	item, err := parseOutput("/srv/media/movie.mkv", sampleReport)
	require.NoError(t, err)

	assert.Equal(t, "/srv/media/movie.mkv", item.FilePath)
	assert.Equal(t, "movie", item.Meta.FileName)
	assert.Equal(t, "mkv", item.Meta.FileExtension)
	assert.Equal(t, "matroska,webm", item.Container.Name)
	assert.Equal(t, "01:02:03.45", item.Duration)
	assert.Equal(t, uint64(1073741824), item.FileSize)
	assert.Equal(t, media.TypeVideo, item.Type)

	// The data stream is dropped.
	require.Len(t, item.Tracks, 3)

	video := item.Tracks[0]
	assert.Equal(t, media.StreamVideo, video.Type)
	assert.Equal(t, "h264", video.CodecName)
	assert.Equal(t, uint16(1920), video.Width)
	assert.Equal(t, uint16(1080), video.Height)
	assert.True(t, video.IsDefault)
	// bits_per_raw_sample is not the sample depth; it stays unmapped.
	assert.Equal(t, uint8(0), video.BitDepth)

	audio := item.Tracks[1]
	assert.Equal(t, media.StreamAudio, audio.Type)
	assert.Equal(t, uint32(48000), audio.SampleRate)
	assert.Equal(t, uint8(6), audio.AudioChannels)
	assert.Equal(t, uint64(384000), audio.Bitrate)
	assert.Equal(t, uint8(16), audio.BitDepth)
	assert.Equal(t, "eng", audio.Language)

	sub := item.Tracks[2]
	assert.Equal(t, media.StreamSubtitle, sub.Type)
	assert.True(t, sub.IsForced)
	assert.False(t, sub.IsDefault)
	assert.Equal(t, "ger", sub.Language)

	assert.Equal(t, "Some Movie", item.Meta.Title)
	assert.Equal(t, "Drama", item.Meta.Genre)
	assert.Equal(t, "remux", item.Meta.Description)
	assert.Equal(t, "3", item.Meta.TrackNumber)
	assert.Equal(t, "Jane Doe", item.Meta.Actor)
}

func TestParseOutputMissingSections(t *testing.T) {
	_, err := parseOutput("/x.mkv", `<ffprobe><format duration="1 s"/></ffprobe>`)
	assert.ErrorIs(t, err, ErrProbeFailed)

	_, err = parseOutput("/x.mkv", `<ffprobe><streams/></ffprobe>`)
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestParseOutputNoRecognizedTracks(t *testing.T) {
	report := `<ffprobe><streams><stream index="0" codec_type="data"/></streams><format format_name="bin"/></ffprobe>`
	_, err := parseOutput("/x.bin", report)
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestParseOutputBadNumbers(t *testing.T) {
	report := `<ffprobe><streams><stream index="0" codec_type="video"/></streams><format format_name="matroska" size="huge byte"/></ffprobe>`
	_, err := parseOutput("/x.mkv", report)
	assert.ErrorIs(t, err, ErrProbeFailed)

	report = `<ffprobe><streams><stream index="abc" codec_type="video"/></streams><format format_name="matroska"/></ffprobe>`
	_, err = parseOutput("/x.mkv", report)
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestParseFileSpawnFailure(t *testing.T) {
	p := &FFProbe{BinPath: "/nonexistent/ffprobe"}
	_, err := p.ParseFile("/srv/media/movie.mkv")
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestTrimUnit(t *testing.T) {
	assert.Equal(t, "1048576", trimUnit("1048576 byte"))
	assert.Equal(t, "3723.456000", trimUnit("3723.456000 s"))
	assert.Equal(t, "42", trimUnit("42"))
	assert.Equal(t, "", trimUnit(""))
}
