// Package masterlist implements the List Encoder (C3): serialising a
// filtered sequence of server records into the GameSpy master-server wire
// blob (header + field schema + records + terminator), ready to be wrapped
// by the enctypex codec.
package masterlist

import (
	"bytes"
	"net"

	"github.com/bf2ms/queryserver/pkg/schema"
)

// DefaultQueryPort is the query port the client is told to use by the
// header, regardless of any individual server's actual query port.
const DefaultQueryPort = 0x1964 // 6500

const recordMarker = 0x51 // 0x55 also observed in the wild; we always emit 0x51.

// Encode serialises clientIP, the requested field list, and servers (already
// filtered by the caller) into the wire blob described by the spec:
//
//	[0..3]  client IPv4
//	[4..5]  DefaultQueryPort, big-endian
//	[6]     fieldCount
//	[7]     0x00
//	fieldCount * (name NUL 0x00)
//	per server: marker, ip, port, 0xFF, fields joined by 0x00 0xFF, 0x00
//	terminator: 0x00 0xFF 0xFF 0xFF 0xFF
func Encode(clientIP net.IP, fields []string, servers []*schema.GameServer) []byte {
	var buf bytes.Buffer

	ip4 := clientIP.To4()
	if ip4 == nil {
		ip4 = make(net.IP, 4)
	}
	buf.Write(ip4)
	buf.WriteByte(byte(DefaultQueryPort >> 8))
	buf.WriteByte(byte(DefaultQueryPort & 0xFF))
	buf.WriteByte(byte(len(fields)))
	buf.WriteByte(0x00)

	for _, f := range fields {
		buf.WriteString(f)
		buf.WriteByte(0x00)
		buf.WriteByte(0x00)
	}

	for _, s := range servers {
		writeRecord(&buf, fields, s)
	}

	buf.WriteByte(0x00)
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	return buf.Bytes()
}

func writeRecord(buf *bytes.Buffer, fields []string, s *schema.GameServer) {
	buf.WriteByte(recordMarker)

	ip4 := s.IP.To4()
	if ip4 == nil {
		ip4 = make(net.IP, 4)
	}
	buf.Write(ip4)
	buf.WriteByte(byte(s.QueryPort >> 8))
	buf.WriteByte(byte(s.QueryPort))

	buf.WriteByte(0xFF)
	for i, f := range fields {
		buf.WriteString(schema.FormatValue(f, s))
		if i < len(fields)-1 {
			buf.WriteByte(0x00)
			buf.WriteByte(0xFF)
		}
	}
	buf.WriteByte(0x00)
}

// DecodeHeader parses the fixed header and field-name schema back out of an
// encoded blob, returning the requested field list and the byte offset where
// the first server record begins. Used by tests to check the encoder's
// round-trip property and by any caller that wants to introspect a blob.
func DecodeHeader(blob []byte) (fields []string, bodyOffset int, ok bool) {
	if len(blob) < 8 {
		return nil, 0, false
	}
	fieldCount := int(blob[6])
	i := 8
	for n := 0; n < fieldCount; n++ {
		start := i
		for i < len(blob) && blob[i] != 0x00 {
			i++
		}
		if i >= len(blob) {
			return nil, 0, false
		}
		fields = append(fields, string(blob[start:i]))
		i++ // skip the NUL terminating the name
		if i >= len(blob) {
			return nil, 0, false
		}
		i++ // skip the extra 0x00
	}
	return fields, i, true
}
