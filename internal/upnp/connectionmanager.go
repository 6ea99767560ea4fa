package upnp

import (
	"fmt"
	"strings"

	"github.com/zeroexploit/slms/internal/config"
)

// ConnectionManager serves the device description and implements the
// ConnectionManager:1 service.
type ConnectionManager struct {
	cfg *config.Config
}

// NewConnectionManager creates the service for the given configuration.
func NewConnectionManager(cfg *config.Config) *ConnectionManager {
	return &ConnectionManager{cfg: cfg}
}

// DeviceDescription renders the root device description advertised over
// SSDP.
func (m *ConnectionManager) DeviceDescription() string {
	return fmt.Sprintf(deviceDescriptionTemplate,
		m.cfg.ServerIP, m.cfg.ServerPort,
		m.cfg.ServerName,
		m.cfg.ServerUUID,
		m.cfg.ServerIP, m.cfg.ServerPort,
	)
}

// SCPD returns the ConnectionManager service description.
func (m *ConnectionManager) SCPD() string {
	return connectionManagerSCPD
}

// HandleControl dispatches one SOAP action by its SOAPAction header
// value. An empty result means the action is not supported.
func (m *ConnectionManager) HandleControl(soapAction, body string) (string, error) {
	switch {
	case strings.HasSuffix(soapAction, "#GetProtocolInfo"):
		return soapResponse("ConnectionManager", "GetProtocolInfo",
			"<Source>http-get:*:*:*</Source><Sink></Sink>"), nil
	case strings.HasSuffix(soapAction, "#GetCurrentConnectionIDs"):
		return soapResponse("ConnectionManager", "GetCurrentConnectionIDs",
			"<ConnectionIDs>0</ConnectionIDs>"), nil
	case strings.HasSuffix(soapAction, "#GetCurrentConnectionInfo"):
		return soapResponse("ConnectionManager", "GetCurrentConnectionInfo",
			"<RcsID>-1</RcsID>"+
				"<AVTransportID>-1</AVTransportID>"+
				"<ProtocolInfo>http-get:*:*:*</ProtocolInfo>"+
				"<PeerConnectionManager></PeerConnectionManager>"+
				"<PeerConnectionID>-1</PeerConnectionID>"+
				"<Direction>Output</Direction>"+
				"<Status>OK</Status>"), nil
	case strings.HasSuffix(soapAction, "#PrepareForConnection"):
		return soapResponse("ConnectionManager", "PrepareForConnection",
			"<ConnectionID>0</ConnectionID><AVTransportID>-1</AVTransportID><RcsID>-1</RcsID>"), nil
	case strings.HasSuffix(soapAction, "#ConnectionComplete"):
		return soapResponse("ConnectionManager", "ConnectionComplete", ""), nil
	}
	return "", nil
}

// SubscribeResponse returns the eventing stub sent on SUBSCRIBE.
func (m *ConnectionManager) SubscribeResponse() string {
	return `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0" xmlns:s="urn:schemas-upnp-org:service:ConnectionManager:1">` +
		`<e:property><SinkProtocolInfo></SinkProtocolInfo></e:property>` +
		`<e:property><SourceProtocolInfo></SourceProtocolInfo></e:property>` +
		`<e:property><CurrentConnectionIDs></CurrentConnectionIDs></e:property>` +
		`</e:propertyset>`
}

const deviceDescriptionTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<root xmlns:dlna="urn:schemas-dlna-org:device-1-0" xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion><major>1</major><minor>0</minor></specVersion>
<URLBase>http://%s:%d/</URLBase>
<device>
<dlna:X_DLNADOC xmlns:dlna="urn:schemas-dlna-org:device-1-0">DMS-1.50</dlna:X_DLNADOC>
<dlna:X_DLNADOC xmlns:dlna="urn:schemas-dlna-org:device-1-0">M-DMS-1.50</dlna:X_DLNADOC>
<deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
<friendlyName>%s</friendlyName>
<manufacturer>zeroexploit</manufacturer>
<manufacturerURL>https://github.com/zeroexploit/</manufacturerURL>
<modelDescription>Simple Linux Media Server</modelDescription>
<modelName>SLMS</modelName>
<modelNumber>01</modelNumber>
<modelURL>https://github.com/zeroexploit/slms/</modelURL>
<serialNumber>00000001</serialNumber>
<UDN>uuid:%s</UDN>
<iconList>
<icon>
<mimetype>image/png</mimetype>
<width>120</width>
<height>120</height>
<depth>24</depth>
<url>/files/images/icon.png</url>
</icon>
</iconList>
<presentationURL>http://%s:%d/</presentationURL>
<serviceList>
<service>
<serviceType>urn:schemas-upnp-org:service:ContentDirectory:1</serviceType>
<serviceId>urn:upnp-org:serviceId:ContentDirectory</serviceId>
<SCPDURL>/connection/content_directory.xml</SCPDURL>
<controlURL>/content/content_directory</controlURL>
<eventSubURL>/content/content_directory</eventSubURL>
</service>
<service>
<serviceType>urn:schemas-upnp-org:service:ConnectionManager:1</serviceType>
<serviceId>urn:upnp-org:serviceId:ConnectionManager</serviceId>
<SCPDURL>/connection/connection_manager.xml</SCPDURL>
<controlURL>/connection/connection_manager</controlURL>
<eventSubURL>/connection/connection_manager</eventSubURL>
</service>
</serviceList>
</device>
</root>`
