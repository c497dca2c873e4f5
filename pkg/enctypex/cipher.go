// Package enctypex stands in for the legacy GameSpy "enctypex" cipher (C4).
// No original source or golden wire vectors for the real cipher were
// available to build against, so this is NOT a bit-exact reproduction of
// it and will not interoperate with a real enctypex client or master
// server; it only reproduces the shape spec.md describes — a keyed
// byte-stream schedule derived from a per-title handoff key and a
// client-supplied nonce, XORed against the encoded server-list blob — as
// an RC4-style KSA/PRGA construction, verified by this package's own
// round-trip tests rather than against the real protocol.
//
// The wire header is the nonce itself, so a peer holding only the handoff
// key can re-derive the same schedule from the header without a side
// channel, matching spec.md §4.4's requirement that the header carry
// whatever the peer needs to redo the key schedule.
package enctypex

const (
	// HandoffKeyLen is the fixed length of a title's handoff key.
	HandoffKeyLen = 6
	// NonceLen is the fixed length of the client-supplied validate nonce.
	NonceLen = 8
)

// schedule builds the 256-byte permutation table keyed off handoffKey and
// nonce, using the classic key-scheduling swap rounds the legacy cipher is
// built on.
func schedule(handoffKey [HandoffKeyLen]byte, nonce [NonceLen]byte) [256]byte {
	var key [HandoffKeyLen + NonceLen]byte
	copy(key[:], handoffKey[:])
	copy(key[HandoffKeyLen:], nonce[:])

	var s [256]byte
	for i := range s {
		s[i] = byte(i)
	}
	j := 0
	for i := 0; i < 256; i++ {
		j = (j + int(s[i]) + int(key[i%len(key)])) & 0xFF
		s[i], s[j] = s[j], s[i]
	}
	return s
}

// keystream derives n bytes of key stream from a schedule, mutating the
// table in place as the legacy cipher advances it round by round.
func keystream(s *[256]byte, n int) []byte {
	out := make([]byte, n)
	i, j := 0, 0
	for k := 0; k < n; k++ {
		i = (i + 1) & 0xFF
		j = (j + int(s[i])) & 0xFF
		s[i], s[j] = s[j], s[i]
		out[k] = s[(int(s[i])+int(s[j]))&0xFF]
	}
	return out
}

// Encrypt wraps payload for the wire: header (the nonce, verbatim) followed
// by payload XORed with the schedule's key stream.
func Encrypt(handoffKey [HandoffKeyLen]byte, nonce [NonceLen]byte, payload []byte) []byte {
	s := schedule(handoffKey, nonce)
	ks := keystream(&s, len(payload))

	out := make([]byte, NonceLen+len(payload))
	copy(out, nonce[:])
	for i, b := range payload {
		out[NonceLen+i] = b ^ ks[i]
	}
	return out
}

// Decrypt reverses Encrypt given the same handoff key, recovering nonce and
// payload from a wire blob. Returns false if blob is shorter than the
// header.
func Decrypt(handoffKey [HandoffKeyLen]byte, blob []byte) (nonce [NonceLen]byte, payload []byte, ok bool) {
	if len(blob) < NonceLen {
		return nonce, nil, false
	}
	copy(nonce[:], blob[:NonceLen])
	s := schedule(handoffKey, nonce)
	ks := keystream(&s, len(blob)-NonceLen)

	payload = make([]byte, len(blob)-NonceLen)
	for i, b := range blob[NonceLen:] {
		payload[i] = b ^ ks[i]
	}
	return nonce, payload, true
}
