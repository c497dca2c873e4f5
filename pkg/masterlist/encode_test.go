package masterlist

import (
	"bytes"
	"net"
	"testing"

	"github.com/bf2ms/queryserver/pkg/schema"
)

func TestEncodeHeaderRoundTrip(t *testing.T) {
	fields := []string{"hostname", "gametype", "numplayers"}
	blob := Encode(net.ParseIP("203.0.113.9"), fields, nil)

	if !bytes.Equal(blob[0:4], net.ParseIP("203.0.113.9").To4()) {
		t.Fatalf("header IP mismatch: % x", blob[0:4])
	}
	if blob[4] != 0x19 || blob[5] != 0x64 {
		t.Fatalf("header default query port mismatch: % x", blob[4:6])
	}
	if int(blob[6]) != len(fields) {
		t.Fatalf("header field count = %d, want %d", blob[6], len(fields))
	}

	got, _, ok := DecodeHeader(blob)
	if !ok {
		t.Fatalf("DecodeHeader failed on encoder output")
	}
	if len(got) != len(fields) {
		t.Fatalf("DecodeHeader fields = %v, want %v", got, fields)
	}
	for i := range fields {
		if got[i] != fields[i] {
			t.Fatalf("DecodeHeader field[%d] = %q, want %q", i, got[i], fields[i])
		}
	}
}

func TestEncodeTerminator(t *testing.T) {
	blob := Encode(net.ParseIP("10.0.0.1"), []string{"hostname"}, nil)
	tail := blob[len(blob)-5:]
	want := []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(tail, want) {
		t.Fatalf("terminator = % x, want % x", tail, want)
	}
}

func TestEncodeRecordFraming(t *testing.T) {
	servers := []*schema.GameServer{
		{
			IP:         net.ParseIP("1.2.3.4"),
			QueryPort:  16567,
			Hostname:   "alpha",
			GameType:   "gpm_cq",
			NumPlayers: 12,
		},
	}
	fields := []string{"hostname", "gametype", "numplayers"}
	blob := Encode(net.ParseIP("9.9.9.9"), fields, servers)

	_, bodyOffset, ok := DecodeHeader(blob)
	if !ok {
		t.Fatalf("DecodeHeader failed")
	}
	rec := blob[bodyOffset:]

	if rec[0] != recordMarker {
		t.Fatalf("record marker = %#x, want %#x", rec[0], recordMarker)
	}
	if !bytes.Equal(rec[1:5], net.ParseIP("1.2.3.4").To4()) {
		t.Fatalf("record IP = % x", rec[1:5])
	}
	if rec[5] != 0x40 || rec[6] != 0xB7 {
		t.Fatalf("record query port = % x, want 16567", rec[5:7])
	}
	if rec[7] != 0xFF {
		t.Fatalf("expected 0xFF field-run start, got %#x", rec[7])
	}

	want := []byte("alpha")
	want = append(want, 0x00, 0xFF)
	want = append(want, []byte("gpm_cq")...)
	want = append(want, 0x00, 0xFF)
	want = append(want, []byte("12")...)
	want = append(want, 0x00)
	got := rec[8 : 8+len(want)]
	if !bytes.Equal(got, want) {
		t.Fatalf("record field run = % x (%q), want % x (%q)", got, got, want, want)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	servers := []*schema.GameServer{
		{IP: net.ParseIP("1.2.3.4"), QueryPort: 16567, Hostname: "alpha", NumPlayers: 4},
		{IP: net.ParseIP("5.6.7.8"), QueryPort: 16567, Hostname: "bravo", NumPlayers: 9},
	}
	fields := []string{"hostname", "numplayers"}

	a := Encode(net.ParseIP("9.9.9.9"), fields, servers)
	b := Encode(net.ParseIP("9.9.9.9"), fields, servers)
	if !bytes.Equal(a, b) {
		t.Fatalf("Encode is not deterministic across identical inputs")
	}
}
