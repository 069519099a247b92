package codec

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, c Codec, plaintext []byte) {
	t.Helper()
	packet := c.Encode(nil, plaintext)
	if len(packet) != len(plaintext)+c.Overhead() {
		t.Fatalf("packet length %d, want plaintext+overhead %d", len(packet), len(plaintext)+c.Overhead())
	}
	got, err := c.Decode(packet)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	roundTrip(t, Identity{}, []byte("the quick brown fox"))
}

func TestCipherRoundTrips(t *testing.T) {
	key := DeriveKey("correct horse battery staple")
	plaintext := []byte("a kcp segment's worth of bytes, give or take")

	aesCodec, err := NewAES(key)
	if err != nil {
		t.Fatalf("NewAES: %v", err)
	}
	roundTrip(t, aesCodec, plaintext)

	gcmCodec, err := NewAESGCM(key)
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}
	roundTrip(t, gcmCodec, plaintext)

	salsaCodec, err := NewSalsa20(key)
	if err != nil {
		t.Fatalf("NewSalsa20: %v", err)
	}
	roundTrip(t, salsaCodec, plaintext)

	bfCodec, err := NewBlowfish(key[:16])
	if err != nil {
		t.Fatalf("NewBlowfish: %v", err)
	}
	roundTrip(t, bfCodec, plaintext)
}

func TestCRCWrapsInner(t *testing.T) {
	c := CRC{Inner: Identity{}}
	roundTrip(t, c, []byte("crc framed payload"))
}

func TestCRCRejectsTampering(t *testing.T) {
	c := CRC{Inner: Identity{}}
	packet := c.Encode(nil, []byte("payload"))
	packet[len(packet)-1] ^= 0xff
	if _, err := c.Decode(packet); err != ErrChecksum {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestSelectUnknownCipher(t *testing.T) {
	if _, err := Select("rot13", "pass", false); err == nil {
		t.Fatal("expected error for unknown cipher name")
	}
}
