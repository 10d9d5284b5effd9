package kmp

import (
	"io"
	"testing"
	"time"

	"github.com/NotCoffee418/kamstrup_meter/pkg/serial_port"
)

// slowMeter answers each request on a pipe, optionally after a delay.
type slowMeter struct {
	reader  *io.PipeReader
	feed    *io.PipeWriter
	replies chan meterReply
}

type meterReply struct {
	delay time.Duration
	frame []byte
}

func newSlowMeter(replies ...meterReply) *slowMeter {
	r, w := io.Pipe()
	m := &slowMeter{reader: r, feed: w, replies: make(chan meterReply, len(replies))}
	for _, reply := range replies {
		m.replies <- reply
	}
	return m
}

func (m *slowMeter) Read(p []byte) (int, error) { return m.reader.Read(p) }

func (m *slowMeter) Write(p []byte) (int, error) {
	select {
	case reply := <-m.replies:
		go func() {
			time.Sleep(reply.delay)
			m.feed.Write(reply.frame)
		}()
	default:
	}
	return len(p), nil
}

func (m *slowMeter) Close() error {
	m.feed.Close()
	return m.reader.Close()
}

func TestReadRegisters_LateReplyDoesNotLeakIntoNextExchange(t *testing.T) {
	meter := newSlowMeter(
		meterReply{delay: 100 * time.Millisecond, frame: response(record(60, 0x0B, 0x00, 100))},
		meterReply{frame: response(record(60, 0x0B, 0x00, 200))},
	)
	port := serial_port.NewSerialPort("/dev/fake", 1200).WithOpener(
		func(string, uint) (io.ReadWriteCloser, error) { return meter, nil },
	)
	defer port.Disconnect()

	client := NewClient(port, 50*time.Millisecond)
	ids := []RegisterID{60}

	first, err := client.ReadRegisters(ids)
	if err != nil {
		t.Fatalf("first exchange err=%v", err)
	}
	if first[60].Valid {
		t.Fatalf("first exchange should time out, got %+v", first[60])
	}

	// Let the late reply arrive before the next request goes out.
	time.Sleep(150 * time.Millisecond)

	second, err := client.ReadRegisters(ids)
	if err != nil {
		t.Fatalf("second exchange err=%v", err)
	}
	if v := second[60]; !v.Valid || v.Value != 200 {
		t.Fatalf("got %+v, want value 200", v)
	}
}
