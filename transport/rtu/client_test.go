// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package rtu

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ffutop/renogy-rtu/internal/config"
	"github.com/ffutop/renogy-rtu/modbus"
	"github.com/ffutop/renogy-rtu/modbus/crc"
	"github.com/ffutop/renogy-rtu/transport"
)

type mockPort struct {
	io.Reader
	io.Writer

	mu     sync.Mutex
	calls  []string
	closed bool
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.record("write")
	return m.Writer.Write(p)
}

func (m *mockPort) ResetInputBuffer() error {
	m.record("reset")
	return nil
}

func (m *mockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockPort) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func newTestClient(response []byte) (*Client, *mockPort, *bytes.Buffer) {
	writer := &bytes.Buffer{}
	mock := &mockPort{Reader: bytes.NewReader(response), Writer: writer}

	client := NewClient(config.SerialConfig{Timeout: 100 * time.Millisecond, SettleDelay: time.Millisecond})
	client.port = mock
	return client, mock, writer
}

func realtimeResponse() []byte {
	frame := []byte{0x01, 0x03, 22}
	for _, w := range []uint16{85, 132, 15, 0x1405, 125, 2, 25, 125, 8, 50, 1} {
		frame = append(frame, byte(w>>8), byte(w))
	}
	return crc.Append(frame)
}

func TestClient_ReadHoldingRegisters(t *testing.T) {
	client, mock, writer := newTestClient(realtimeResponse())

	words, err := client.ReadHoldingRegisters(context.Background(), 1, 0x0100, 11)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters failed: %v", err)
	}

	expectedReq := crc.Append([]byte{0x01, 0x03, 0x01, 0x00, 0x00, 0x0B})
	if !bytes.Equal(writer.Bytes(), expectedReq) {
		t.Errorf("Request mismatch.\nWant: %X\nGot:  %X", expectedReq, writer.Bytes())
	}

	want := []uint16{85, 132, 15, 0x1405, 125, 2, 25, 125, 8, 50, 1}
	if len(words) != len(want) {
		t.Fatalf("got %d words, want %d", len(words), len(want))
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d = %d, want %d", i, words[i], want[i])
		}
	}

	if len(mock.calls) != 2 || mock.calls[0] != "reset" || mock.calls[1] != "write" {
		t.Errorf("port calls = %v, want [reset write]", mock.calls)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response []byte
		want     error
	}{
		{"CRCError", []byte{0x01, 0x03, 0x02, 0xAA, 0xBB, 0xFF, 0xFF}, modbus.ErrCRCMismatch},
		{"Timeout", []byte{0x01}, modbus.ErrTimeout},
		{"NoResponse", nil, modbus.ErrTimeout},
		{"TruncatedPayload", []byte{0x01, 0x03, 0x16, 0x00, 0x55}, modbus.ErrTimeout},
		{"CountMismatch", crc.Append([]byte{0x01, 0x03, 0x02, 0x00, 0x55}), modbus.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, _ := newTestClient(tt.response)
			_, err := client.ReadHoldingRegisters(context.Background(), 1, 0x0100, 11)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_Exception(t *testing.T) {
	client, _, _ := newTestClient(crc.Append([]byte{0x01, 0x83, 0x02}))

	_, err := client.ReadHoldingRegisters(context.Background(), 1, 0x9000, 1)
	var exc *modbus.ExceptionError
	if !errors.As(err, &exc) {
		t.Fatalf("error = %v, want ExceptionError", err)
	}
	if exc.Message() != "Illegal Data Address" || exc.FunctionCode != 0x03 {
		t.Errorf("exception = %+v (%s)", exc, exc.Message())
	}
}

func TestClient_WriteSingleRegister(t *testing.T) {
	echo := crc.Append([]byte{0x01, 0x06, 0x01, 0x0A, 0x00, 0x01})
	client, _, writer := newTestClient(echo)

	if err := client.WriteSingleRegister(context.Background(), 1, 0x010A, 1); err != nil {
		t.Fatalf("WriteSingleRegister failed: %v", err)
	}
	if !bytes.Equal(writer.Bytes(), echo) {
		t.Errorf("Request mismatch.\nWant: %X\nGot:  %X", echo, writer.Bytes())
	}

	t.Run("EchoMismatch", func(t *testing.T) {
		client, _, _ := newTestClient(crc.Append([]byte{0x01, 0x06, 0x01, 0x0A, 0x00, 0x00}))
		err := client.WriteSingleRegister(context.Background(), 1, 0x010A, 1)
		if !errors.Is(err, modbus.ErrInvalidResponse) {
			t.Errorf("error = %v, want ErrInvalidResponse", err)
		}
	})
}

func TestClient_NotConnected(t *testing.T) {
	client := NewClient(config.SerialConfig{})

	if _, err := client.ReadHoldingRegisters(context.Background(), 1, 0x0100, 11); !errors.Is(err, modbus.ErrNotConnected) {
		t.Errorf("read error = %v, want ErrNotConnected", err)
	}
	if err := client.WriteSingleRegister(context.Background(), 1, 0x010A, 1); !errors.Is(err, modbus.ErrNotConnected) {
		t.Errorf("write error = %v, want ErrNotConnected", err)
	}
}

func TestClient_InvalidQuantity(t *testing.T) {
	client, _, writer := newTestClient(nil)
	for _, q := range []uint16{0, 126} {
		if _, err := client.ReadHoldingRegisters(context.Background(), 1, 0, q); err == nil {
			t.Errorf("quantity %d: expected error", q)
		}
	}
	if writer.Len() != 0 {
		t.Error("invalid request was written to the port")
	}
}

func TestClient_CanceledContext(t *testing.T) {
	client, _, writer := newTestClient(realtimeResponse())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.ReadHoldingRegisters(ctx, 1, 0x0100, 11); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if writer.Len() != 0 {
		t.Error("request written after cancellation")
	}
}

func TestClient_ConnectClose(t *testing.T) {
	mock := &mockPort{Reader: bytes.NewReader(nil), Writer: &bytes.Buffer{}}
	opened := 0

	client := NewClient(config.SerialConfig{Device: "/dev/ttyTEST"})
	client.open = func(cfg config.SerialConfig) (transport.Port, error) {
		opened++
		return mock, nil
	}

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if opened != 1 {
		t.Errorf("port opened %d times, want 1", opened)
	}
	if !client.Connected() {
		t.Error("Connected() = false after Connect")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mock.closed || client.Connected() {
		t.Error("port not released by Close")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	cause := errors.New("permission denied")
	client := NewClient(config.SerialConfig{Device: "/dev/ttyTEST"})
	client.open = func(cfg config.SerialConfig) (transport.Port, error) {
		return nil, cause
	}

	err := client.Connect(context.Background())
	var connErr *modbus.ConnectionError
	if !errors.As(err, &connErr) || connErr.Device != "/dev/ttyTEST" {
		t.Fatalf("error = %v, want ConnectionError for /dev/ttyTEST", err)
	}
	if !errors.Is(err, cause) {
		t.Error("ConnectionError does not wrap the driver error")
	}
	if client.Connected() {
		t.Error("Connected() = true after failed Connect")
	}
}

func TestClient_SettleDelay(t *testing.T) {
	client := NewClient(config.SerialConfig{SettleDelay: 50 * time.Millisecond})
	req := []byte{0x01, 0x03, 0x01, 0x00, 0x00, 0x0B, 0x05, 0xF1}
	if got := client.settleDelay(req); got != 50*time.Millisecond {
		t.Errorf("configured settle delay = %v, want 50ms", got)
	}

	client.Config.SettleDelay = 0
	client.Config.BaudRate = 9600
	// 8 request + 27 response characters plus 3.5 character frame gap.
	want := time.Duration(15000000/9600*35+35000000/9600) * time.Microsecond
	if got := client.settleDelay(req); got != want {
		t.Errorf("derived settle delay = %v, want %v", got, want)
	}
}
