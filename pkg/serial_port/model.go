package serial_port

import (
	"fmt"
	"io"
	"sync"
)

var ErrConnection = fmt.Errorf("serial connection failed")

// Opener opens the underlying device. Swapped out in tests.
type Opener func(port string, baudrate uint) (io.ReadWriteCloser, error)

type SerialPort struct {
	port     string
	baudrate uint
	opener   Opener

	mu      sync.Mutex
	session *session
}

// session is one open connection and the goroutine pumping its input.
type session struct {
	conn     io.ReadWriteCloser
	incoming chan readResult
	done     chan struct{}
	pending  []byte
	once     sync.Once
}

type readResult struct {
	data []byte
	err  error
}
