// Package capture reads recorded ASTERIX-over-UDP-multicast link-layer
// traffic: a simple length-prefixed log of raw Ethernet frames, each
// unwrapped down to its UDP payload (the concatenated ASTERIX blocks a
// sensor or ATC system actually exchanged on the wire).
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrFrameTooShort   = errors.New("capture: ethernet frame too short")
	ErrIPv4Header      = errors.New("capture: invalid ipv4 header")
	ErrUnsupportedType = errors.New("capture: unsupported ether type for length inference")
	ErrUDPPacket       = errors.New("capture: invalid udp segment")
	ErrNotUDP          = errors.New("capture: frame does not carry a UDP payload")
)

// maxFrameLen bounds a single logged frame so a corrupt length prefix
// cannot force an unbounded allocation.
const maxFrameLen = 1 << 16

// Reader walks a length-prefixed frame log: each record is a 4-byte
// big-endian length followed by that many bytes of raw Ethernet frame.
type Reader struct {
	r    io.Reader
	port uint16
}

// NewReader returns a Reader that yields UDP payloads addressed to port.
// port 0 disables the destination-port filter.
func NewReader(r io.Reader, port uint16) *Reader {
	return &Reader{r: r, port: port}
}

// Next reads the next frame from the log and returns its UDP payload
// (typically one or more concatenated ASTERIX blocks). It returns io.EOF
// when the log is exhausted, and ErrNotUDP for a frame this Reader's port
// filter rejects, so callers typically loop calling Next until io.EOF,
// skipping ErrNotUDP.
func (r *Reader) Next() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		return nil, err
	}
	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	if frameLen == 0 || frameLen > maxFrameLen {
		return nil, fmt.Errorf("capture: implausible frame length %d", frameLen)
	}
	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(r.r, frame); err != nil {
		return nil, fmt.Errorf("capture: short frame: %w", err)
	}
	return ExtractUDPPayload(frame, r.port)
}

// ExtractUDPPayload unwraps an Ethernet II (optionally 802.1Q-tagged) /
// IPv4 / UDP frame and returns the UDP payload, filtering by destination
// port when port != 0.
func ExtractUDPPayload(frame []byte, port uint16) ([]byte, error) {
	_, etherType, l2Len, payloadOff, frameLen, err := ParseEthernet(frame)
	if err != nil {
		return nil, err
	}
	if etherType != 0x0800 {
		return nil, fmt.Errorf("%w: ether type 0x%04X", ErrNotUDP, etherType)
	}
	ipBuf := frame[payloadOff:frameLen]
	ihl, totalLen, proto, _, _, _, err := ParseIPv4(ipBuf)
	if err != nil {
		return nil, err
	}
	if proto != 17 {
		return nil, fmt.Errorf("%w: ip protocol %d", ErrNotUDP, proto)
	}
	_, dstPort, udpLen, _, udpOff, err := ParseUDP(ipBuf, ihl)
	if err != nil {
		return nil, err
	}
	if port != 0 && dstPort != port {
		return nil, fmt.Errorf("%w: port %d", ErrNotUDP, dstPort)
	}
	payloadStart := l2Len + udpOff + 8
	payloadEnd := l2Len + ihl + int(udpLen)
	if payloadEnd > len(frame) || payloadEnd < payloadStart {
		return nil, fmt.Errorf("%w: udp length %d exceeds frame", ErrUDPPacket, udpLen)
	}
	if totalLen < ihl {
		return nil, ErrIPv4Header
	}
	return frame[payloadStart:payloadEnd], nil
}

// ParseEthernet parses an Ethernet II frame beginning at buf and returns its
// layout: whether it carries an 802.1Q tag, the ether type, the L2 header
// length, the offset of the L3 payload, and the total captured frame
// length (inferred from the L3 payload for IPv4, or from the 802.3 length
// field for ether types <= 1500).
func ParseEthernet(buf []byte) (hasVLAN bool, etherType uint16, l2HdrLen int, payloadOff int, frameLen int, err error) {
	if len(buf) < 14 {
		return false, 0, 0, 0, 0, ErrFrameTooShort
	}
	headerLen := 14
	etherType = uint16(buf[12])<<8 | uint16(buf[13])
	if etherType == 0x8100 {
		if len(buf) < 18 {
			return false, 0, 0, 0, 0, ErrFrameTooShort
		}
		hasVLAN = true
		headerLen = 18
		etherType = uint16(buf[16])<<8 | uint16(buf[17])
	}
	payloadOff = headerLen
	l2HdrLen = headerLen

	switch {
	case etherType <= 1500:
		frameLen = headerLen + int(etherType)
	case etherType == 0x0800:
		if len(buf) < headerLen+20 {
			return hasVLAN, etherType, headerLen, payloadOff, 0, ErrFrameTooShort
		}
		_, totalLen, _, _, _, _, perr := ParseIPv4(buf[headerLen:])
		if perr != nil {
			return hasVLAN, etherType, headerLen, payloadOff, 0, perr
		}
		frameLen = headerLen + totalLen
	default:
		return hasVLAN, etherType, headerLen, payloadOff, 0, fmt.Errorf("%w: 0x%04X", ErrUnsupportedType, etherType)
	}

	if frameLen > len(buf) {
		return hasVLAN, etherType, headerLen, payloadOff, 0, fmt.Errorf("frame length %d exceeds buffer (%d)", frameLen, len(buf))
	}
	return hasVLAN, etherType, headerLen, payloadOff, frameLen, nil
}

// ParseIPv4 parses an IPv4 header from buf and returns the header length,
// total length, transport protocol and addresses.
func ParseIPv4(buf []byte) (ihl int, totalLen int, proto uint8, src, dst [4]byte, hdrOff int, err error) {
	if len(buf) < 20 {
		err = ErrIPv4Header
		return
	}
	version := buf[0] >> 4
	if version != 4 {
		err = ErrIPv4Header
		return
	}
	ihl = int(buf[0]&0x0F) * 4
	if ihl < 20 || len(buf) < ihl {
		err = ErrIPv4Header
		return
	}
	totalLen = int(buf[2])<<8 | int(buf[3])
	if totalLen < ihl {
		err = ErrIPv4Header
		return
	}
	proto = buf[9]
	copy(src[:], buf[12:16])
	copy(dst[:], buf[16:20])
	return
}

// ParseUDP parses a UDP header from buf starting at the IPv4 header, where
// ipHdrLen is the IPv4 header's length in bytes.
func ParseUDP(buf []byte, ipHdrLen int) (srcPort, dstPort, length, checksum uint16, udpOff int, err error) {
	if ipHdrLen < 0 || len(buf) < ipHdrLen+8 {
		err = ErrUDPPacket
		return
	}
	udpOff = ipHdrLen
	srcPort = uint16(buf[udpOff])<<8 | uint16(buf[udpOff+1])
	dstPort = uint16(buf[udpOff+2])<<8 | uint16(buf[udpOff+3])
	length = uint16(buf[udpOff+4])<<8 | uint16(buf[udpOff+5])
	checksum = uint16(buf[udpOff+6])<<8 | uint16(buf[udpOff+7])
	return
}

// WriteFrame appends one length-prefixed frame to w, the inverse of Reader.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) > maxFrameLen {
		return fmt.Errorf("capture: frame length %d exceeds cap %d", len(frame), maxFrameLen)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}
