package capture

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// buildUDPFrame constructs a minimal Ethernet/IPv4/UDP frame carrying
// payload, addressed to dstPort.
func buildUDPFrame(t *testing.T, dstPort uint16, payload []byte) []byte {
	t.Helper()
	udp := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint16(udp[0:2], 5000)
	binary.BigEndian.PutUint16(udp[2:4], dstPort)
	binary.BigEndian.PutUint16(udp[4:6], uint16(len(udp)))
	copy(udp[8:], payload)

	ip := make([]byte, 20+len(udp))
	ip[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(ip[2:4], uint16(len(ip)))
	ip[9] = 17 // UDP
	copy(ip[12:16], []byte{10, 0, 0, 1})
	copy(ip[16:20], []byte{224, 0, 0, 1})
	copy(ip[20:], udp)

	eth := make([]byte, 14+len(ip))
	copy(eth[0:6], []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	copy(eth[6:12], []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	binary.BigEndian.PutUint16(eth[12:14], 0x0800)
	copy(eth[14:], ip)
	return eth
}

func TestExtractUDPPayload(t *testing.T) {
	payload := []byte{0x02, 0x00, 0x06, 0xAA, 0xBB, 0xCC}
	frame := buildUDPFrame(t, 8600, payload)

	got, err := ExtractUDPPayload(frame, 8600)
	if err != nil {
		t.Fatalf("ExtractUDPPayload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ExtractUDPPayload() = %x, want %x", got, payload)
	}
}

func TestExtractUDPPayloadPortFilter(t *testing.T) {
	frame := buildUDPFrame(t, 8600, []byte{0x01})
	if _, err := ExtractUDPPayload(frame, 9999); err == nil {
		t.Error("expected port mismatch to be rejected")
	}
}

func TestExtractUDPPayloadWrongEtherType(t *testing.T) {
	frame := buildUDPFrame(t, 8600, []byte{0x01})
	binary.BigEndian.PutUint16(frame[12:14], 0x0806) // ARP
	if _, err := ExtractUDPPayload(frame, 0); err == nil {
		t.Error("expected non-IPv4 frame to be rejected")
	}
}

func TestReaderWalksFrameLog(t *testing.T) {
	f1 := buildUDPFrame(t, 8600, []byte{0xAA})
	f2 := buildUDPFrame(t, 8600, []byte{0xBB, 0xCC})

	var buf bytes.Buffer
	if err := WriteFrame(&buf, f1); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := WriteFrame(&buf, f2); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := NewReader(&buf, 8600)
	got1, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(got1, []byte{0xAA}) {
		t.Errorf("frame 1 = %x, want AA", got1)
	}
	got2, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(got2, []byte{0xBB, 0xCC}) {
		t.Errorf("frame 2 = %x, want BBCC", got2)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at end of log, got %v", err)
	}
}
