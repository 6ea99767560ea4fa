// Package upnp implements the two services of the media server device:
// ConnectionManager (device description, SCPDs, protocol info) and
// ContentDirectory (Browse, Search, sorting, DIDL-Lite emission).
//
// Handlers produce response bodies as strings; the HTTP layer owns
// status codes and headers.
package upnp

import (
	"errors"
	"strings"
)

// ErrMalformedRequest marks SOAP bodies whose required inputs cannot be
// parsed. The HTTP layer maps it to 400.
var ErrMalformedRequest = errors.New("malformed request")

const (
	envelopeOpen = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
		`<s:Body>`
	envelopeClose = `</s:Body></s:Envelope>`
)

// soapResponse wraps an action response body in the SOAP envelope.
func soapResponse(service, action, args string) string {
	var sb strings.Builder
	sb.WriteString(envelopeOpen)
	sb.WriteString(`<u:` + action + `Response xmlns:u="urn:schemas-upnp-org:service:` + service + `:1">`)
	sb.WriteString(args)
	sb.WriteString(`</u:` + action + `Response>`)
	sb.WriteString(envelopeClose)
	return sb.String()
}

// extractTag pulls the text content of the first element with the given
// literal name out of a SOAP body. Namespace prefixes on the inner
// argument elements are not used by control points, so a plain substring
// scan matching the wire format is enough.
func extractTag(body, tag string) (string, bool) {
	open := strings.Index(body, "<"+tag)
	if open < 0 {
		return "", false
	}
	rest := body[open:]
	gt := strings.IndexByte(rest, '>')
	if gt < 0 {
		return "", false
	}
	if gt > 0 && rest[gt-1] == '/' {
		return "", true
	}
	content := rest[gt+1:]
	end := strings.Index(content, "</"+tag+">")
	if end < 0 {
		return "", false
	}
	return content[:end], true
}
