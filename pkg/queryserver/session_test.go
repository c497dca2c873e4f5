package queryserver

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/bf2ms/queryserver/pkg/enctypex"
	"github.com/bf2ms/queryserver/pkg/lifecycle"
	"github.com/bf2ms/queryserver/pkg/registry"
	"github.com/bf2ms/queryserver/pkg/schema"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	reg := registry.New(nil)
	reg.Upsert(&schema.GameServer{
		IP:            net.ParseIP("1.2.3.4"),
		QueryPort:     16567,
		Hostname:      "alpha",
		GameType:      "gpm_cq_small",
		NumPlayers:    4,
		IsValidated:   true,
		LastRefreshed: time.Now(),
	})
	reg.Upsert(&schema.GameServer{
		IP:            net.ParseIP("5.6.7.8"),
		QueryPort:     16567,
		Hostname:      "beta",
		GameType:      "gpm_tdm",
		NumPlayers:    12,
		IsValidated:   true,
		LastRefreshed: time.Now(),
	})

	var key [enctypex.HandoffKeyLen]byte
	copy(key[:], "bf2pc1")

	return &Core{
		Title:     key,
		TitleTag:  "battlefield2",
		Registry:  reg,
		Lifecycle: lifecycle.NewBus(),
	}
}

func buildFrame(titleTag, validate, filter, fieldsList string) []byte {
	var b []byte
	b = append(b, titleTag...)
	b = append(b, 0x00)
	b = append(b, "validate"...)
	b = append(b, 0x00)
	b = append(b, validate...)
	b = append(b, filter...)
	b = append(b, 0x00)
	b = append(b, fieldsList...)
	b = append(b, 0x00)
	return b
}

func TestHandleFrameEmptyFilterReturnsAllValidated(t *testing.T) {
	core := newTestCore(t)
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	sess := NewSession(1, c1, core)

	done := make(chan bool, 1)
	go func() {
		frame := buildFrame("battlefield2", "AAAAAAAA", "", `hostname\numplayers`)
		done <- sess.handleFrame(frame)
	}()

	buf := make([]byte, 4096)
	n, err := c2.Read(buf)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	if !<-done {
		t.Fatalf("handleFrame reported frame as not handled")
	}
	if n < enctypex.NonceLen {
		t.Fatalf("response too short: %d bytes", n)
	}
	_, payload, ok := enctypex.Decrypt(core.Title, buf[:n])
	if !ok {
		t.Fatalf("Decrypt reported not ok")
	}
	for _, host := range []string{"alpha", "beta"} {
		if !bytes.Contains(payload, []byte(host)) {
			t.Fatalf("response missing validated server %q", host)
		}
	}
}

func TestHandleFrameWrongTitleTagIgnored(t *testing.T) {
	core := newTestCore(t)
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	sess := NewSession(1, c1, core)
	frame := buildFrame("somethingelse", "AAAAAAAA", "", `hostname`)
	if sess.handleFrame(frame) {
		t.Fatalf("handleFrame should ignore a frame with the wrong title tag")
	}
}

func TestHandleFrameTooFewPartsIgnored(t *testing.T) {
	core := newTestCore(t)
	c1, _ := net.Pipe()
	defer c1.Close()

	sess := NewSession(1, c1, core)
	if sess.handleFrame([]byte("battlefield2")) {
		t.Fatalf("handleFrame should ignore a frame with too few parts")
	}
}

func TestSplitDropEmpty(t *testing.T) {
	got := splitDropEmpty([]byte("a\x00\x00\x00b\x00c\x00"), 0x00)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitDropEmpty = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitDropEmpty[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitFieldsDropsEmpties(t *testing.T) {
	got := splitFields(`\hostname\numplayers\`)
	want := []string{"hostname", "numplayers"}
	if len(got) != len(want) {
		t.Fatalf("splitFields = %v, want %v", got, want)
	}
}
