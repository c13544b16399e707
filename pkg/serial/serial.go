package serial

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	readBufferSize = 256
	lineQueueSize  = 64
)

var ErrClosed = errors.New("serial reader closed")

type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

type IReader interface {
	// Poll never blocks. ok is false when no line is pending; err is set once
	// the underlying stream has failed and every queued line was consumed.
	Poll() (line string, ok bool, err error)
	Close() error
}

type reader struct {
	src    io.Reader
	closer io.Closer
	log    *logrus.Logger

	lines chan string
	done  chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func Open(cfg Config, logger *logrus.Logger) (IReader, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
		DataBits: 8,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}

	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
	}

	logger.Infof("Connected to %s at %d baud", cfg.Port, cfg.BaudRate)

	return newReader(port, port, logger), nil
}

// NewReader reads newline-delimited text from any byte stream. src is closed
// by Close when it implements io.Closer.
func NewReader(src io.Reader, logger *logrus.Logger) IReader {
	closer, _ := src.(io.Closer)
	return newReader(src, closer, logger)
}

func newReader(src io.Reader, closer io.Closer, logger *logrus.Logger) *reader {
	r := &reader{
		src:    src,
		closer: closer,
		log:    logger,
		lines:  make(chan string, lineQueueSize),
		done:   make(chan struct{}),
	}

	go r.run()

	return r
}

func (r *reader) Poll() (string, bool, error) {
	select {
	case line, ok := <-r.lines:
		if ok {
			return line, true, nil
		}
		return "", false, r.getErr()
	default:
		return "", false, nil
	}
}

func (r *reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		if r.closer != nil {
			err = r.closer.Close()
		}
	})
	return err
}

func (r *reader) run() {
	defer close(r.lines)

	buf := make([]byte, readBufferSize)
	var pending []byte

	for {
		n, err := r.src.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)

			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}

				line := Decode(pending[:i])
				pending = pending[i+1:]

				select {
				case r.lines <- line:
				case <-r.done:
					r.setErr(ErrClosed)
					return
				}
			}
		}

		if err != nil {
			select {
			case <-r.done:
				r.setErr(ErrClosed)
			default:
				r.log.WithFields(logrus.Fields{
					"error": err.Error(),
				}).Error("Serial read failed")
				r.setErr(fmt.Errorf("read serial: %w", err))
			}
			return
		}

		// n == 0 with no error is a read timeout
		select {
		case <-r.done:
			r.setErr(ErrClosed)
			return
		default:
		}
	}
}

func (r *reader) setErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) getErr() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Decode turns one raw line into text. Invalid UTF-8 bytes are replaced with
// U+FFFD one by one and surrounding whitespace is removed.
func Decode(raw []byte) string {
	decoded, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), raw)
	if err != nil {
		decoded = bytes.ToValidUTF8(raw, []byte("\uFFFD"))
	}
	return strings.TrimSpace(string(decoded))
}
