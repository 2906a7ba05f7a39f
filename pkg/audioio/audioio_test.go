package audioio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{6 * time.Second, 6},
		{5500 * time.Millisecond, 6},
		{200 * time.Millisecond, 1},
		{0, 1},
		{-time.Second, 1},
	}
	for _, tt := range tests {
		if got := Seconds(tt.in); got != tt.want {
			t.Errorf("Seconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestARecordArgs(t *testing.T) {
	a, err := NewARecord(DefaultConfig())
	if err != nil {
		t.Fatalf("NewARecord: %v", err)
	}
	got := a.Args("input.wav", 6*time.Second)
	want := []string{"-D", "plughw:2,0", "-f", "cd", "-t", "wav", "-d", "6", "-q", "input.wav"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args = %v, want %v", got, want)
	}
}

func TestNewARecordValidates(t *testing.T) {
	if _, err := NewARecord(Config{}); err == nil {
		t.Error("expected error for empty device")
	}
}

// fakeARecord writes an executable script standing in for arecord.
func fakeARecord(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arecord")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestARecordRecord(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	out := filepath.Join(dir, "input.wav")

	// The last argument is the output path.
	cmd := fakeARecord(t, `echo "$@" > `+argsFile+`
for last; do :; done
printf 'RIFF' > "$last"`)

	a, err := NewARecord(Config{Device: "hw:1,0", Command: cmd})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Record(context.Background(), out, 2500*time.Millisecond); err != nil {
		t.Fatalf("Record: %v", err)
	}

	args, _ := os.ReadFile(argsFile)
	if got := strings.TrimSpace(string(args)); got != "-D hw:1,0 -f cd -t wav -d 3 -q "+out {
		t.Errorf("arecord invoked with %q", got)
	}
}

func TestARecordFailureCapturesStderr(t *testing.T) {
	cmd := fakeARecord(t, `echo "audio open error: No such file or directory" >&2; exit 1`)

	a, _ := NewARecord(Config{Device: "plughw:9,0", Command: cmd})
	err := a.Record(context.Background(), filepath.Join(t.TempDir(), "x.wav"), time.Second)

	var recErr *RecordingError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected *RecordingError, got %T %v", err, err)
	}
	if recErr.Device != "plughw:9,0" {
		t.Errorf("Device = %q", recErr.Device)
	}
	if !strings.Contains(err.Error(), "audio open error") {
		t.Errorf("stderr missing from %q", err.Error())
	}
}

func TestARecordMissingOutput(t *testing.T) {
	cmd := fakeARecord(t, `exit 0`)

	a, _ := NewARecord(Config{Device: "default", Command: cmd})
	err := a.Record(context.Background(), filepath.Join(t.TempDir(), "x.wav"), time.Second)

	var recErr *RecordingError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected *RecordingError, got %v", err)
	}
}

func TestARecordMissingBinary(t *testing.T) {
	a, _ := NewARecord(Config{Device: "default", Command: filepath.Join(t.TempDir(), "nope")})
	err := a.Record(context.Background(), filepath.Join(t.TempDir(), "x.wav"), time.Second)

	var recErr *RecordingError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected *RecordingError, got %v", err)
	}
}

func TestARecordCancelled(t *testing.T) {
	cmd := fakeARecord(t, `exec sleep 5`)
	a, _ := NewARecord(Config{Device: "default", Command: cmd})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := a.Record(ctx, filepath.Join(t.TempDir(), "x.wav"), 5*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWriteWAV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, []int16{0, 1000, -1000}, 16000, 1); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if len(b) != 44+6 {
		t.Fatalf("len = %d, want 50", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" || string(b[36:40]) != "data" {
		t.Errorf("bad chunk ids: %q", b[:40])
	}
	if rate := binary.LittleEndian.Uint32(b[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d", rate)
	}
	if size := binary.LittleEndian.Uint32(b[40:44]); size != 6 {
		t.Errorf("data size = %d", size)
	}
}

func TestMockWritesWAV(t *testing.T) {
	m := NewMock(WithSineWave(440, 0.5))
	path := filepath.Join(t.TempDir(), "input.wav")

	if err := m.Record(context.Background(), path, 6*time.Second); err != nil {
		t.Fatalf("Record: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// 100ms at 8kHz mono.
	if len(data) != 44+800*2 {
		t.Errorf("file size = %d", len(data))
	}
	if calls := m.Calls(); len(calls) != 1 || calls[0].Duration != 6*time.Second {
		t.Errorf("calls = %+v", calls)
	}
}

func TestMockError(t *testing.T) {
	m := NewMock()
	m.Err = errors.New("device busy")

	err := m.Record(context.Background(), filepath.Join(t.TempDir(), "x.wav"), time.Second)
	var recErr *RecordingError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected *RecordingError, got %v", err)
	}
	if !errors.Is(err, m.Err) {
		t.Error("cause not wrapped")
	}
}
