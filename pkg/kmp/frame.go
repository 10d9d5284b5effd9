package kmp

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sigurn/crc16"
)

// CRC-16/XMODEM: poly 0x1021, init 0, no reflection, no final xor.
// Checksumming a body together with its appended checksum yields 0.
var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Bytes that must never appear raw inside a frame.
var escapedBytes = [256]bool{
	0x06:       true,
	frameEnd:   true,
	escapeByte: true,
	0x40:       true,
	0x80:       true,
}

func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// EncodeRequest turns a request payload into the bytes sent to the meter.
func EncodeRequest(payload []byte) []byte {
	return encodeFrame(requestStart, payload)
}

func encodeFrame(start byte, payload []byte) []byte {
	crc := Checksum(payload)
	body := make([]byte, 0, len(payload)+2)
	body = append(body, payload...)
	body = append(body, byte(crc>>8), byte(crc))

	frame := make([]byte, 0, len(body)*2+2)
	frame = append(frame, start)
	frame = append(frame, Escape(body)...)
	return append(frame, frameEnd)
}

// Escape byte-stuffs reserved values as escapeByte, b^0xFF.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if escapedBytes[b] {
			out = append(out, escapeByte, b^0xFF)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// Unescape reverses Escape. ok is false if the data ends on a bare escape byte.
func Unescape(data []byte) (out []byte, ok bool) {
	out = make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != escapeByte {
			out = append(out, data[i])
			continue
		}
		if i+1 >= len(data) {
			return nil, false
		}
		i++
		out = append(out, data[i]^0xFF)
	}
	return out, true
}

// Upper bound on bytes read while waiting for one response, noise included.
// A full 8 register response is well under half of this even when escaped.
const maxReceiveBytes = 512

// ReceiveFrame reads one response frame from link and returns its payload
// without the checksum. ok is false when the meter stayed silent or the
// frame was damaged; err is only set for transport failures.
func ReceiveFrame(link Link, timeout time.Duration) (payload []byte, ok bool, err error) {
	var buf []byte
	started := false
	for received := 0; ; received++ {
		if received >= maxReceiveBytes {
			log.Debug().Int("bytes", received).Msg("No complete frame within read limit")
			return nil, false, nil
		}
		b, got, err := link.ReadByteTimeout(timeout)
		if err != nil {
			return nil, false, err
		}
		if !got {
			if started {
				log.Debug().Int("bytes", len(buf)).Msg("Frame end never arrived")
			}
			return nil, false, nil
		}
		if b == responseStart {
			buf = buf[:0]
			started = true
		}
		if !started {
			continue
		}
		buf = append(buf, b)
		if b == frameEnd {
			break
		}
	}

	body, unescaped := Unescape(buf[1 : len(buf)-1])
	if !unescaped || len(body) < 2 {
		log.Debug().Hex("frame", buf).Msg("Malformed frame")
		return nil, false, nil
	}
	if Checksum(body) != 0 {
		log.Debug().Hex("frame", buf).Msg("CRC error")
		return nil, false, nil
	}
	return body[:len(body)-2], true, nil
}
