// Package httpd serves the UPnP HTTP surface: device and service
// descriptions, SOAP control endpoints, event subscriptions, the device
// icon and media streaming.
package httpd

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zeroexploit/slms/internal/config"
	"github.com/zeroexploit/slms/internal/library"
	"github.com/zeroexploit/slms/internal/upnp"
)

func init() {
	// Renderers deliver event subscriptions with a method chi does not
	// know out of the box.
	chi.RegisterMethod("SUBSCRIBE")
}

// Server is the HTTP frontend of the media server.
type Server struct {
	cfg        *config.Config
	lib        *library.Library
	directory  *upnp.ContentDirectory
	connection *upnp.ConnectionManager
	router     chi.Router
}

// New wires the UPnP services into a router.
func New(cfg *config.Config, lib *library.Library) *Server {
	s := &Server{
		cfg:        cfg,
		lib:        lib,
		directory:  upnp.NewContentDirectory(cfg, lib),
		connection: upnp.NewConnectionManager(cfg),
		router:     chi.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[httpd] unhandled request %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		s.writeHeaders(w, 0)
		w.WriteHeader(http.StatusBadRequest)
	})

	s.router.Get("/connection/description.xml", s.handleDescription)
	s.router.Get("/connection/connection_manager.xml", s.handleConnectionSCPD)
	s.router.Get("/connection/content_directory.xml", s.handleDirectorySCPD)

	s.router.Post("/connection/connection_manager", s.handleConnectionControl)
	s.router.Method("SUBSCRIBE", "/connection/connection_manager", http.HandlerFunc(s.handleConnectionSubscribe))

	s.router.Post("/content/content_directory", s.handleDirectoryControl)
	s.router.Method("SUBSCRIBE", "/content/content_directory", http.HandlerFunc(s.handleDirectorySubscribe))

	s.router.Get("/stream/{id}", s.handleStream)
	s.router.Head("/stream/{id}", s.handleStream)

	s.router.Get("/files/images/icon.png", s.handleIcon)
}

// writeHeaders sets the header fields every response carries.
func (s *Server) writeHeaders(w http.ResponseWriter, contentLength uint64) {
	now := time.Now().UTC()
	h := w.Header()
	h.Set("Date", now.Format(http.TimeFormat))
	h.Set("Expires", now.Add(180*time.Second).Format(http.TimeFormat))
	h.Set("Cache-Control", "no-cache")
	h.Set("SID", "uuid:"+s.cfg.ServerUUID)
	h.Set("Server", s.cfg.ServerTag)
	h.Set("Content-Length", strconv.FormatUint(contentLength, 10))
	h.Set("Connection", "close")
}

func (s *Server) writeXML(w http.ResponseWriter, body string) {
	s.writeHeaders(w, uint64(len(body)))
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	s.writeXML(w, s.connection.DeviceDescription())
}

func (s *Server) handleConnectionSCPD(w http.ResponseWriter, r *http.Request) {
	s.writeXML(w, s.connection.SCPD())
}

func (s *Server) handleDirectorySCPD(w http.ResponseWriter, r *http.Request) {
	s.writeXML(w, s.directory.SCPD())
}

func (s *Server) handleConnectionControl(w http.ResponseWriter, r *http.Request) {
	s.handleControl(w, r, s.connection.HandleControl)
}

func (s *Server) handleDirectoryControl(w http.ResponseWriter, r *http.Request) {
	s.handleControl(w, r, s.directory.HandleControl)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request, control func(string, string) (string, error)) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeHeaders(w, 0)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	action := strings.Trim(r.Header.Get("SOAPAction"), `"`)
	response, err := control(action, string(body))
	if err != nil {
		log.Printf("[httpd] rejecting %s from %s: %v", action, r.RemoteAddr, err)
		s.writeHeaders(w, 0)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if response == "" {
		log.Printf("[httpd] unsupported action %q from %s", action, r.RemoteAddr)
		s.writeHeaders(w, 0)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.writeXML(w, response)
}

func (s *Server) handleConnectionSubscribe(w http.ResponseWriter, r *http.Request) {
	s.handleSubscribe(w, s.connection.SubscribeResponse())
}

func (s *Server) handleDirectorySubscribe(w http.ResponseWriter, r *http.Request) {
	s.handleSubscribe(w, s.directory.SubscribeResponse())
}

func (s *Server) handleSubscribe(w http.ResponseWriter, body string) {
	s.writeHeaders(w, uint64(len(body)))
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.Header().Set("Timeout", "Second-180")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeHeaders(w, 0)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	item, err := s.lib.GetItemDirect(id)
	if err != nil {
		s.writeHeaders(w, 0)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.sendFile(w, r, item.FilePath, item.MimeType())
}

func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	s.sendFile(w, r, s.cfg.IconPath, "image/png")
}
