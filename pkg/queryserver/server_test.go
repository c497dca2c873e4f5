package queryserver

import "testing"

func TestNewServerRejectsBadHandoffKeyLength(t *testing.T) {
	cfg := Default()
	cfg.Title.HandoffKey = "short"
	if _, err := NewServer(cfg, nil, nil, nil); err == nil {
		t.Fatalf("NewServer should reject a handoff key that isn't 6 bytes")
	}
}

func TestNewServerAcceptsValidHandoffKey(t *testing.T) {
	cfg := Default()
	cfg.Title.HandoffKey = "bf2pc1"
	s, err := NewServer(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if s.core.TitleTag != "battlefield2" {
		t.Fatalf("core.TitleTag = %q, want battlefield2", s.core.TitleTag)
	}
}
