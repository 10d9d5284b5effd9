package serial_port

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog/log"
)

// Initialize a new SerialPort. Nothing is opened until Connect or the first Write.
func NewSerialPort(port string, baudrate uint) *SerialPort {
	return &SerialPort{
		port:     port,
		baudrate: baudrate,
		opener:   openSerial,
	}
}

// WithOpener replaces the device opener, used to run against fake ports.
func (p *SerialPort) WithOpener(opener Opener) *SerialPort {
	p.opener = opener
	return p
}

func (p *SerialPort) Port() string {
	return p.port
}

func (p *SerialPort) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// Open the connection to the meter. No-op if already open.
func (p *SerialPort) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

// Close the connection. Any read waiting on the port returns without data.
func (p *SerialPort) Disconnect() {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if s != nil {
		s.close()
		log.Info().Str("port", p.port).Msg("Disconnected from serial port")
	}
}

// Write the full frame, connecting first if needed.
func (p *SerialPort) Write(data []byte) error {
	s, err := p.current()
	if err != nil {
		return err
	}

	if _, err := s.conn.Write(data); err != nil {
		p.drop(s)
		return errors.Join(ErrConnection, fmt.Errorf("write to %s: %w", p.port, err))
	}
	return nil
}

// ReadByteTimeout waits up to timeout for a single byte.
// ok is false when nothing arrived in time; that is not an error.
func (p *SerialPort) ReadByteTimeout(timeout time.Duration) (b byte, ok bool, err error) {
	s, err := p.current()
	if err != nil {
		return 0, false, err
	}

	if len(s.pending) > 0 {
		b = s.pending[0]
		s.pending = s.pending[1:]
		return b, true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-s.incoming:
		if res.err != nil {
			if s.closed() {
				return 0, false, nil
			}
			p.drop(s)
			return 0, false, errors.Join(ErrConnection, fmt.Errorf("read from %s: %w", p.port, res.err))
		}
		s.pending = res.data[1:]
		return res.data[0], true, nil
	case <-timer.C:
		return 0, false, nil
	case <-s.done:
		return 0, false, nil
	}
}

// DiscardInput drops everything received but not yet read, so a late reply
// to an earlier request cannot be taken as the answer to the next one.
// It does not open the port.
func (p *SerialPort) DiscardInput() error {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	if s == nil {
		return nil
	}

	discarded := len(s.pending)
	s.pending = nil
	for {
		select {
		case res := <-s.incoming:
			if res.err != nil {
				if s.closed() {
					return nil
				}
				p.drop(s)
				return errors.Join(ErrConnection, fmt.Errorf("read from %s: %w", p.port, res.err))
			}
			discarded += len(res.data)
		default:
			if discarded > 0 {
				log.Debug().Str("port", p.port).Int("bytes", discarded).Msg("Discarded stale input")
			}
			return nil
		}
	}
}

func (p *SerialPort) current() (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p.session, nil
}

func (p *SerialPort) connectLocked() error {
	if p.session != nil {
		return nil
	}

	conn, err := p.opener(p.port, p.baudrate)
	if err != nil {
		return errors.Join(ErrConnection, fmt.Errorf("failed to open serial port %s: %w", p.port, err))
	}

	s := &session{
		conn:     conn,
		incoming: make(chan readResult, 16),
		done:     make(chan struct{}),
	}
	go s.pump()
	p.session = s

	log.Info().Str("port", p.port).Uint("baudrate", p.baudrate).Msg("Connected to serial port")
	return nil
}

// drop forgets a broken session so the next call reconnects.
func (p *SerialPort) drop(s *session) {
	p.mu.Lock()
	if p.session == s {
		p.session = nil
	}
	p.mu.Unlock()

	s.close()
	log.Warn().Str("port", p.port).Msg("Serial port closed after I/O failure")
}

func openSerial(port string, baudrate uint) (io.ReadWriteCloser, error) {
	options := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}
	return serial.Open(options)
}

func (s *session) pump() {
	buf := make([]byte, 64)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.incoming <- readResult{data: data}:
			case <-s.done:
				return
			}
		}
		if err != nil {
			select {
			case s.incoming <- readResult{err: err}:
			case <-s.done:
			}
			return
		}
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
