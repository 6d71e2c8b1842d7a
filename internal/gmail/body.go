package gmail

import (
	"encoding/base64"

	gmail "google.golang.org/api/gmail/v1"
)

const mimeTextPlain = "text/plain"

// HeaderValue returns the first top-level header with exactly this name, or "".
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if h != nil && h.Name == header {
			return h.Value
		}
	}
	return ""
}

// ExtractBody returns the plain text body of a message payload.
//
// A multipart payload yields its first text/plain part in depth-first order,
// or "" when it has none. A single-part payload yields its own body.
func ExtractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	if len(payload.Parts) > 0 {
		var found *gmail.MessagePart
		for _, part := range payload.Parts {
			walkParts(part, func(p *gmail.MessagePart) bool {
				if p.MimeType == mimeTextPlain && p.Body != nil && p.Body.Data != "" {
					found = p
					return false
				}
				return true
			})
			if found != nil {
				return decodeBody(found.Body.Data)
			}
		}
		return ""
	}

	if payload.Body != nil {
		return decodeBody(payload.Body.Data)
	}
	return ""
}

// walkParts visits part and its descendants depth-first until fn returns false.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart) bool) bool {
	if part == nil {
		return true
	}
	if !fn(part) {
		return false
	}
	for _, sub := range part.Parts {
		if !walkParts(sub, fn) {
			return false
		}
	}
	return true
}

// decodeBody decodes Gmail's base64url body data. Padded, unpadded and
// standard alphabets are all accepted; undecodable data yields "".
func decodeBody(data string) string {
	if data == "" {
		return ""
	}
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return string(decoded)
		}
	}
	return ""
}
