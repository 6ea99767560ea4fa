// Package config loads the server configuration file, the per-renderer
// profile files and the values derived at startup (server IP, UUID,
// identification tag).
package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/zeroexploit/slms/internal/version"
)

// Config is the complete runtime configuration of the media server.
type Config struct {
	ServerName         string
	ServerPort         uint16
	ServerInterface    string
	ShareDirs          []string
	RendererDir        string
	DefaultRenderer    string
	ThumbnailDir       string
	GenerateThumbnails bool
	LogPath            string
	LogLevel           int
	DatabasePath       string
	IconPath           string

	// Derived at load time.
	ServerIP   string
	ServerUUID string
	ServerTag  string

	Renderers []Renderer
}

// SourceTargetMap is one source=target pair from a renderer profile.
type SourceTargetMap struct {
	Source string
	Target string
}

// Renderer is one renderer profile from the renderer directory. Only the
// presentation flags change server behavior; the transcode settings are
// parsed and held for profile completeness.
type Renderer struct {
	DisplayName        string
	UserAgentSearch    []string
	RemoteIP           string
	FileExtensions     []string
	ContainerMaps      []SourceTargetMap
	TranscodeContainer string
	AudioChannels      uint8
	TranscodeEnabled   bool
	TranscodeAudio     bool
	TranscodeVideo     bool
	CodecMaps          []SourceTargetMap
	AudioLanguages     []string
	SubtitleMaps       []SourceTargetMap
	EncodeSubtitles    bool
	TitleInsteadOfName bool
	HideFileExtension  bool
	MuxToMatch         bool
}

// Load reads the configuration file at path and fills in defaults,
// derived values and renderer profiles.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ServerName:      "SLMS",
		ServerPort:      5001,
		ServerInterface: "eth0",
		RendererDir:     "/etc/slms/renderer",
		DefaultRenderer: "default.cfg",
		ThumbnailDir:    "/var/lib/slms/thumbnails",
		LogPath:         "/var/log/slms.log",
		LogLevel:        1,
		DatabasePath:    "/var/lib/slms/db.xml",
		IconPath:        "/var/lib/slms/icon.png",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration %s: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		switch key {
		case "servername":
			cfg.ServerName = value
		case "serverport":
			port, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid serverPort %q: %w", value, err)
			}
			cfg.ServerPort = uint16(port)
		case "serverinterface":
			cfg.ServerInterface = value
		case "folders":
			cfg.ShareDirs = splitList(value)
		case "rendererdir":
			cfg.RendererDir = value
		case "defaultrenderer":
			cfg.DefaultRenderer = value
		case "thumbnaildir":
			cfg.ThumbnailDir = value
		case "generatethumbnails":
			cfg.GenerateThumbnails = parseBool(value)
		case "logfile":
			cfg.LogPath = value
		case "loglevel":
			if level, err := strconv.Atoi(value); err == nil {
				cfg.LogLevel = level
			}
		case "databasepath":
			cfg.DatabasePath = value
		case "iconpath":
			cfg.IconPath = value
		}
	}

	cfg.ServerIP = interfaceIP(cfg.ServerInterface)
	cfg.ServerUUID = uuid.New().String()
	cfg.ServerTag = version.ServerTag()

	cfg.loadRenderers()

	return cfg, nil
}

// ActiveRenderer returns the default renderer profile, or a zero profile
// when none is configured.
func (c *Config) ActiveRenderer() *Renderer {
	for i := range c.Renderers {
		if c.Renderers[i].DisplayName == strings.TrimSuffix(c.DefaultRenderer, ".cfg") {
			return &c.Renderers[i]
		}
	}
	if len(c.Renderers) > 0 {
		return &c.Renderers[0]
	}
	return &Renderer{}
}

func (c *Config) loadRenderers() {
	entries, err := os.ReadDir(c.RendererDir)
	if err != nil {
		log.Printf("[config] renderer directory %s unavailable: %v", c.RendererDir, err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cfg") {
			continue
		}
		path := filepath.Join(c.RendererDir, entry.Name())
		renderer, err := LoadRenderer(path)
		if err != nil {
			log.Printf("[config] skipping renderer %s: %v", path, err)
			continue
		}
		if renderer.DisplayName == "" {
			renderer.DisplayName = strings.TrimSuffix(entry.Name(), ".cfg")
		}
		c.Renderers = append(c.Renderers, renderer)
	}
}

// LoadRenderer parses one renderer profile file.
func LoadRenderer(path string) (Renderer, error) {
	var r Renderer

	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read renderer %s: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		switch key {
		case "displayname":
			r.DisplayName = value
		case "useragentsearchstring":
			r.UserAgentSearch = splitList(value)
		case "remoteipaddress":
			r.RemoteIP = value
		case "filextensions", "fileextensions":
			r.FileExtensions = splitList(value)
		case "conmap":
			r.ContainerMaps = splitMaps(value)
		case "transcodecontainer":
			r.TranscodeContainer = value
		case "transcodeenabled":
			r.TranscodeEnabled = parseBool(value)
		case "transcodeaudio":
			r.TranscodeAudio = parseBool(value)
		case "transcodevideo":
			r.TranscodeVideo = parseBool(value)
		case "transcodecodec":
			r.CodecMaps = splitMaps(value)
		case "audiochannels":
			if channels, err := strconv.ParseUint(value, 10, 8); err == nil {
				r.AudioChannels = uint8(channels)
			}
		case "audiolanguage":
			r.AudioLanguages = splitList(value)
		case "subtitleconnection":
			r.SubtitleMaps = splitMaps(value)
		case "encodesubtitles":
			r.EncodeSubtitles = parseBool(value)
		case "titleinsteadofname":
			r.TitleInsteadOfName = parseBool(value)
		case "hidefileextension":
			r.HideFileExtension = parseBool(value)
		case "muxtomatch":
			r.MuxToMatch = parseBool(value)
		}
	}

	return r, nil
}

// splitKeyValue parses one "key = value" configuration line. Comment and
// empty lines report ok=false. Key names are case-insensitive.
func splitKeyValue(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[:eq]))
	value = strings.TrimSpace(line[eq+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitMaps(value string) []SourceTargetMap {
	var out []SourceTargetMap
	for _, pair := range splitList(value) {
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		out = append(out, SourceTargetMap{
			Source: strings.TrimSpace(pair[:eq]),
			Target: strings.TrimSpace(pair[eq+1:]),
		})
	}
	return out
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	default:
		return false
	}
}

// interfaceIP returns the first IPv4 address of the named interface,
// falling back to the loopback address when the interface is unusable.
func interfaceIP(name string) string {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		log.Printf("[config] interface %s: %v, falling back to 127.0.0.1", name, err)
		return "127.0.0.1"
	}
	addrs, err := iface.Addrs()
	if err == nil {
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok {
				if v4 := ipNet.IP.To4(); v4 != nil {
					return v4.String()
				}
			}
		}
	}
	log.Printf("[config] interface %s has no IPv4 address, falling back to 127.0.0.1", name)
	return "127.0.0.1"
}
