// Package cortex talks to the robot's motor board over a serial link.
//
// Commands are a single command byte followed by 7-bit payload bytes and,
// when enabled, a CRC-7 byte. Responses carry 7-bit payload bytes and, when
// enabled, their own CRC-7 byte.
package cortex

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// commands
const (
	cmdMotorSet    = 0x81
	cmdIMEGet      = 0x82
	cmdIMEReset    = 0x83
	cmdIMEInit     = 0x84
	cmdDigitalRead = 0x85
	cmdGetErrors   = 0x86
	autoBaud       = 0xaa
)

const (
	maxPorts = 10
	maxIMEs  = 8
	maxPins  = 12

	// motor power travels offset so it is never negative on the wire
	powerOffset = 128

	DefaultBaud = 115200
)

var (
	ErrShortRead = errors.New("cortex: short read")
	ErrCRC       = errors.New("cortex: response crc mismatch")
	ErrBadPort   = errors.New("cortex: port out of range")
	ErrBadPower  = errors.New("cortex: power out of range")
)

// GetError converts the board's error bitmap into an error.
func GetError(val uint16) error {
	errorStrings := []string{
		"serial signal error",   // bit 0
		"serial overrun error",  // bit 1
		"serial buffer full",    // bit 2
		"serial crc error",      // bit 3
		"serial protocol error", // bit 4
		"serial timeout",        // bit 5
		"ime chain fault",       // bit 6
		"motor overcurrent",     // bit 7
		"battery low",           // bit 8
	}
	var s []string
	for i, msg := range errorStrings {
		if val&(1<<i) != 0 {
			s = append(s, msg)
		}
	}
	if len(s) == 0 {
		return nil
	}
	return errors.New(strings.Join(s, ","))
}

type Config struct {
	Port io.ReadWriter // serial port
	CRC  bool          // append and check crc bytes
}

// Board is one motor board. It is safe for concurrent use; each command
// and its response are exchanged under one lock.
type Board struct {
	mu   sync.Mutex
	port io.ReadWriter
	crc  bool
}

// New wraps an open port and sends the auto-baud byte.
func New(cfg Config) (*Board, error) {
	b := &Board{port: cfg.Port, crc: cfg.CRC}
	if _, err := b.port.Write([]byte{autoBaud}); err != nil {
		return nil, fmt.Errorf("cortex: auto baud: %w", err)
	}
	return b, nil
}

// Open opens a serial device and returns a board on it.
func Open(name string, baud int, crc bool) (*Board, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("cortex: opening %s: %w", name, err)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("cortex: %w", err)
	}
	b, err := New(Config{Port: port, CRC: crc})
	if err != nil {
		port.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the underlying port if it is closable.
func (b *Board) Close() error {
	if c, ok := b.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func lo(x uint16) byte { return byte(x & 0x7f) }
func hi(x uint16) byte { return byte((x >> 7) & 0x7f) }

// exchange writes a command and reads n response payload bytes. Callers
// hold b.mu.
func (b *Board) exchange(cmd []byte, n int) ([]byte, error) {
	if b.crc {
		cmd = append(cmd, crc7(0, cmd))
	}
	if _, err := b.port.Write(cmd); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	size := n
	if b.crc {
		size++
	}
	buf := make([]byte, size)
	if err := b.readFull(buf); err != nil {
		return nil, err
	}
	if b.crc {
		if crc7(0, buf[:n]) != buf[n] {
			return nil, ErrCRC
		}
	}
	return buf[:n], nil
}

// readFull stops on the first empty read; serial ports report a read
// timeout as (0, nil).
func (b *Board) readFull(buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := b.port.Read(buf[total:])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, total, len(buf))
		}
		total += n
	}
	return nil
}

func (b *Board) command(cmd []byte, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exchange(cmd, n)
}

// MotorSet sets the power of a motor port, -127..127.
func (b *Board) MotorSet(port, power int) error {
	if port < 1 || port > maxPorts {
		return fmt.Errorf("%w: motor %d", ErrBadPort, port)
	}
	if power < -127 || power > 127 {
		return fmt.Errorf("%w: %d", ErrBadPower, power)
	}
	v := uint16(power + powerOffset)
	_, err := b.command([]byte{cmdMotorSet, byte(port), lo(v), hi(v)}, 0)
	return err
}

// IMEGet returns the signed count of one encoder in the chain.
func (b *Board) IMEGet(id int) (int32, error) {
	if id < 0 || id >= maxIMEs {
		return 0, fmt.Errorf("%w: ime %d", ErrBadPort, id)
	}
	rsp, err := b.command([]byte{cmdIMEGet, byte(id)}, 5)
	if err != nil {
		return 0, err
	}
	return decodeCount(rsp), nil
}

// IMEReset zeroes one encoder.
func (b *Board) IMEReset(id int) error {
	if id < 0 || id >= maxIMEs {
		return fmt.Errorf("%w: ime %d", ErrBadPort, id)
	}
	_, err := b.command([]byte{cmdIMEReset, byte(id)}, 0)
	return err
}

// IMEInitializeAll enumerates the encoder chain and returns its length.
func (b *Board) IMEInitializeAll() (int, error) {
	rsp, err := b.command([]byte{cmdIMEInit}, 1)
	if err != nil {
		return 0, err
	}
	return int(rsp[0]), nil
}

// DigitalRead returns true when the pin is high.
func (b *Board) DigitalRead(pin int) (bool, error) {
	if pin < 1 || pin > maxPins {
		return false, fmt.Errorf("%w: pin %d", ErrBadPort, pin)
	}
	rsp, err := b.command([]byte{cmdDigitalRead, byte(pin)}, 1)
	if err != nil {
		return false, err
	}
	return rsp[0] != 0, nil
}

// GetErrors returns the board error bitmap.
func (b *Board) GetErrors() (uint16, error) {
	rsp, err := b.command([]byte{cmdGetErrors}, 2)
	if err != nil {
		return 0, err
	}
	return uint16(rsp[0]&0x7f) | uint16(rsp[1]&0x7f)<<7, nil
}

// encodeCount packs a count into five 7-bit groups, lowest first.
func encodeCount(c int32) []byte {
	u := uint32(c)
	out := make([]byte, 5)
	for i := range out {
		out[i] = byte(u & 0x7f)
		u >>= 7
	}
	return out
}

func decodeCount(b []byte) int32 {
	var u uint32
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<7 | uint32(b[i]&0x7f)
	}
	return int32(u)
}
