// Package ssdp announces the media server on the local network and
// answers discovery searches.
package ssdp

import (
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/zeroexploit/slms/internal/config"
)

const (
	multicastAddress = "239.255.255.250:1900"
	maxAge           = 1800
	aliveInterval    = 180 * time.Second
	readTimeout      = 2 * time.Second
)

// target is one advertised notification type and its matching USN.
type target struct {
	nt  string
	usn string
}

// Server runs the discovery side of the media server: periodic alive
// notifications plus responses to M-SEARCH requests.
type Server struct {
	cfg    *config.Config
	conn   net.PacketConn
	packet *ipv4.PacketConn
	group  *net.UDPAddr
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a stopped discovery server.
func New(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// Start joins the multicast group and launches the notification and
// responder loops.
func (s *Server) Start() error {
	group, err := net.ResolveUDPAddr("udp4", multicastAddress)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", multicastAddress, err)
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:1900")
	if err != nil {
		return fmt.Errorf("listen udp 1900: %w", err)
	}

	packet := ipv4.NewPacketConn(conn)

	var iface *net.Interface
	if named, err := net.InterfaceByName(s.cfg.ServerInterface); err == nil {
		iface = named
	} else {
		log.Printf("[ssdp] interface %s: %v, joining on the default interface", s.cfg.ServerInterface, err)
	}
	if err := packet.JoinGroup(iface, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return fmt.Errorf("join multicast group: %w", err)
	}
	packet.SetMulticastLoopback(false)

	s.conn = conn
	s.packet = packet
	s.group = group

	log.Printf("[ssdp] announcing on %s as uuid:%s", multicastAddress, s.cfg.ServerUUID)

	s.wg.Add(2)
	go s.announceLoop()
	go s.respondLoop()

	return nil
}

// Stop sends the byebye notifications and shuts both loops down.
func (s *Server) Stop() {
	select {
	case <-s.stopCh:
		return
	default:
	}

	s.notifyAll("ssdp:byebye")
	close(s.stopCh)
	s.wg.Wait()
	s.conn.Close()
}

// announceLoop notifies once at startup and then on every interval
// tick until stopped.
func (s *Server) announceLoop() {
	defer s.wg.Done()

	s.notifyAll("ssdp:alive")

	ticker := time.NewTicker(aliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.notifyAll("ssdp:alive")
		case <-s.stopCh:
			return
		}
	}
}

func (s *Server) notifyAll(nts string) {
	for _, tgt := range notificationTargets(s.cfg.ServerUUID) {
		msg := notifyPacket(s.cfg, tgt, nts)
		if _, err := s.conn.WriteTo([]byte(msg), s.group); err != nil {
			log.Printf("[ssdp] notify %s: %v", tgt.nt, err)
			return
		}
	}
}

// respondLoop answers matching M-SEARCH requests until stopped.
func (s *Server) respondLoop() {
	defer s.wg.Done()

	buf := make([]byte, 4096)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, remote, err := s.conn.ReadFrom(buf)
		if err != nil {
			continue
		}

		msg := string(buf[:n])
		if !strings.HasPrefix(msg, "M-SEARCH") {
			continue
		}

		st := extractHeader(msg, "ST")
		tgt, ok := matchSearchTarget(st, s.cfg.ServerUUID)
		if !ok {
			continue
		}

		if _, err := s.conn.WriteTo([]byte(searchResponse(s.cfg, tgt)), remote); err != nil {
			log.Printf("[ssdp] respond to %s: %v", remote, err)
		}
	}
}

// notificationTargets lists the advertised device and service types in
// announcement order.
func notificationTargets(serverUUID string) []target {
	device := "uuid:" + serverUUID
	return []target{
		{nt: "upnp:rootdevice", usn: device + "::upnp:rootdevice"},
		{nt: device, usn: device},
		{nt: "urn:schemas-upnp-org:device:MediaServer:1", usn: device + "::urn:schemas-upnp-org:device:MediaServer:1"},
		{nt: "urn:schemas-upnp-org:service:ContentDirectory:1", usn: device + "::urn:schemas-upnp-org:service:ContentDirectory:1"},
		{nt: "urn:schemas-upnp-org:service:ConnectionManager:1", usn: device + "::urn:schemas-upnp-org:service:ConnectionManager:1"},
	}
}

// matchSearchTarget maps one M-SEARCH ST value onto an advertised
// target. ssdp:all and the registrar service searched by Windows
// clients both resolve to a concrete target.
func matchSearchTarget(st, serverUUID string) (target, bool) {
	device := "uuid:" + serverUUID
	switch st {
	case "ssdp:all", "urn:schemas-upnp-org:device:MediaServer:1":
		return target{nt: "urn:schemas-upnp-org:device:MediaServer:1", usn: device + "::urn:schemas-upnp-org:device:MediaServer:1"}, true
	case "upnp:rootdevice":
		return target{nt: "upnp:rootdevice", usn: device + "::upnp:rootdevice"}, true
	case device:
		return target{nt: device, usn: device}, true
	case "urn:schemas-upnp-org:service:ContentDirectory:1",
		"urn:schemas-upnp-org:service:ConnectionManager:1",
		"urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:1":
		return target{nt: st, usn: device + "::" + st}, true
	}
	return target{}, false
}

func location(cfg *config.Config) string {
	return fmt.Sprintf("http://%s:%d/connection/description.xml", cfg.ServerIP, cfg.ServerPort)
}

// notifyPacket builds one NOTIFY datagram.
func notifyPacket(cfg *config.Config, tgt target, nts string) string {
	return "NOTIFY * HTTP/1.1\r\n" +
		"HOST: " + multicastAddress + "\r\n" +
		fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", maxAge) +
		"LOCATION: " + location(cfg) + "\r\n" +
		"NT: " + tgt.nt + "\r\n" +
		"NTS: " + nts + "\r\n" +
		"USN: " + tgt.usn + "\r\n" +
		"SERVER: " + cfg.ServerTag + "\r\n" +
		"\r\n"
}

// searchResponse builds the unicast reply to one M-SEARCH request.
func searchResponse(cfg *config.Config, tgt target) string {
	return "HTTP/1.1 200 OK\r\n" +
		fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", maxAge) +
		"EXT:\r\n" +
		"LOCATION: " + location(cfg) + "\r\n" +
		"SERVER: " + cfg.ServerTag + "\r\n" +
		"ST: " + tgt.nt + "\r\n" +
		"USN: " + tgt.usn + "\r\n" +
		"\r\n"
}

// extractHeader pulls one header value out of a datagram, matching the
// name case-insensitively.
func extractHeader(msg, name string) string {
	prefix := strings.ToUpper(name) + ":"
	for _, line := range strings.Split(msg, "\r\n") {
		if strings.HasPrefix(strings.ToUpper(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}
