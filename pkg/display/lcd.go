package display

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PCF8574 backpack pin mapping: P0=RS, P1=RW, P2=E, P3=backlight, P4..P7=D4..D7.
const (
	pinRS        = 0x01
	pinEnable    = 0x04
	pinBacklight = 0x08
)

// HD44780 instructions.
const (
	cmdClear       = 0x01
	cmdEntryMode   = 0x04
	cmdDisplayCtrl = 0x08
	cmdFunctionSet = 0x20
	cmdSetDDRAM    = 0x80

	entryIncrement = 0x02
	displayOn      = 0x04
	twoLines       = 0x08
)

// rowOffsets are the DDRAM start addresses of rows 0..3.
var rowOffsets = [...]byte{0x00, 0x40, 0x14, 0x54}

// LCDConfig describes the attached display.
type LCDConfig struct {
	Bus     string // i2creg bus name, e.g. "1"
	Address uint16 // 7-bit I2C address of the expander
	Cols    int
	Rows    int
	Logger  *slog.Logger
}

// DefaultLCDConfig returns the common 16x2 backpack at 0x27 on bus 1.
func DefaultLCDConfig() LCDConfig {
	return LCDConfig{Bus: "1", Address: 0x27, Cols: 16, Rows: 2}
}

// LCD drives an HD44780 character display behind a PCF8574 I2C expander
// in 4-bit mode. Characters outside printable ASCII are shown as '?'.
type LCD struct {
	dev    *i2c.Dev
	closer func() error
	cols   int
	rows   int
	logger *slog.Logger

	// sleep is replaced in tests.
	sleep func(time.Duration)

	mu sync.Mutex
}

// OpenLCD initialises the host drivers, opens the I2C bus and resets the display.
func OpenLCD(cfg LCDConfig) (*LCD, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("lcd: host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("lcd: open i2c bus %q: %w", cfg.Bus, err)
	}
	l, err := newLCD(bus, cfg, time.Sleep)
	if err != nil {
		bus.Close()
		return nil, err
	}
	l.closer = bus.Close
	return l, nil
}

// NewLCD wraps an already open bus.
func NewLCD(bus i2c.Bus, cfg LCDConfig) (*LCD, error) {
	return newLCD(bus, cfg, time.Sleep)
}

func newLCD(bus i2c.Bus, cfg LCDConfig, sleep func(time.Duration)) (*LCD, error) {
	if cfg.Cols <= 0 || cfg.Rows <= 0 || cfg.Rows > len(rowOffsets) {
		return nil, fmt.Errorf("lcd: unsupported geometry %dx%d", cfg.Cols, cfg.Rows)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l := &LCD{
		dev:    &i2c.Dev{Bus: bus, Addr: cfg.Address},
		cols:   cfg.Cols,
		rows:   cfg.Rows,
		logger: logger.With("component", "display.lcd"),
		sleep:  sleep,
	}
	if err := l.init(); err != nil {
		return nil, err
	}
	l.logger.Debug("lcd ready", "bus", bus.String(), "address", fmt.Sprintf("0x%02x", cfg.Address))
	return l, nil
}

// init runs the HD44780 4-bit initialisation by instruction sequence.
func (l *LCD) init() error {
	l.sleep(50 * time.Millisecond)

	for _, d := range []time.Duration{4500 * time.Microsecond, 4500 * time.Microsecond, 150 * time.Microsecond} {
		if err := l.writeNibble(0x30, 0); err != nil {
			return fmt.Errorf("lcd: init: %w", err)
		}
		l.sleep(d)
	}
	if err := l.writeNibble(0x20, 0); err != nil {
		return fmt.Errorf("lcd: init: %w", err)
	}

	for _, c := range []byte{
		cmdFunctionSet | twoLines,
		cmdDisplayCtrl,
		cmdClear,
		cmdEntryMode | entryIncrement,
		cmdDisplayCtrl | displayOn,
	} {
		if err := l.command(c); err != nil {
			return fmt.Errorf("lcd: init: %w", err)
		}
	}
	return nil
}

// Show implements Sink.
func (l *LCD) Show(line1, line2 string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.command(cmdClear); err != nil {
		return fmt.Errorf("lcd: clear: %w", err)
	}
	for row, text := range []string{line1, line2} {
		if row >= l.rows {
			break
		}
		if err := l.command(cmdSetDDRAM | rowOffsets[row]); err != nil {
			return fmt.Errorf("lcd: cursor: %w", err)
		}
		for _, b := range Encode(Truncate(text, l.cols)) {
			if err := l.write(b, pinRS); err != nil {
				return fmt.Errorf("lcd: write: %w", err)
			}
		}
	}
	return nil
}

// Close clears the display and releases the bus.
func (l *LCD) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.command(cmdClear)
	if l.closer != nil {
		if cerr := l.closer(); err == nil {
			err = cerr
		}
	}
	return err
}

// Encode maps text to display ROM codes. Printable ASCII passes through;
// everything else becomes '?'.
func Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out
}

func (l *LCD) command(c byte) error {
	if err := l.write(c, 0); err != nil {
		return err
	}
	if c == cmdClear {
		l.sleep(2 * time.Millisecond)
	}
	return nil
}

// write sends one byte as two nibbles, high first.
func (l *LCD) write(b, mode byte) error {
	hi := b & 0xf0
	lo := (b << 4) & 0xf0
	bl := byte(pinBacklight)
	_, err := l.dev.Write([]byte{
		hi | mode | bl | pinEnable, hi | mode | bl,
		lo | mode | bl | pinEnable, lo | mode | bl,
	})
	return err
}

func (l *LCD) writeNibble(n, mode byte) error {
	bl := byte(pinBacklight)
	_, err := l.dev.Write([]byte{n | mode | bl | pinEnable, n | mode | bl})
	return err
}

var _ Sink = (*LCD)(nil)
