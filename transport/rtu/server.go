// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ffutop/renogy-rtu/internal/config"
	"github.com/ffutop/renogy-rtu/modbus"
	"github.com/ffutop/renogy-rtu/modbus/crc"
	rtupacket "github.com/ffutop/renogy-rtu/modbus/rtu"
	"github.com/ffutop/renogy-rtu/transport"
)

// Server is a Modbus RTU slave on a serial line, answering requests from
// an external master.
type Server struct {
	serialPort

	// SlaveID filters requests; zero answers every id.
	SlaveID byte
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig, slaveID byte) *Server {
	s := &Server{SlaveID: slaveID}
	s.Config = cfg
	return s
}

// Start opens the serial port and serves requests until ctx is done.
func (s *Server) Start(ctx context.Context, handler transport.RequestHandler) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer s.serialPort.Close()
	slog.Info("RTU Server listening", "device", s.Config.Device, "slave_id", s.SlaveID)

	s.mu.Lock()
	port := s.port
	s.mu.Unlock()

	// Unblock a pending read on shutdown.
	go func() {
		<-ctx.Done()
		s.serialPort.Close()
	}()

	return s.scanLoop(ctx, port, handler)
}

func (s *Server) scanLoop(ctx context.Context, port io.ReadWriter, handler transport.RequestHandler) error {
	buf := make([]byte, rtupacket.MaxSize+4)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Read 1 byte to unblock
		n, err := port.Read(buf[:1])
		if err != nil {
			if ctx.Err() != nil || isClosed(err) {
				return nil
			}
			continue
		}
		if n == 0 {
			continue
		}

		// Read enough of the header to size variable length requests.
		current := 1
		need := 7
		for current < need {
			n, err := port.Read(buf[current:need])
			current += n
			if err != nil || n == 0 {
				break
			}
		}
		if current < 2 {
			continue
		}

		functionCode := buf[1]
		expectedLen, err := rtupacket.CalculateRequestLength(functionCode, buf[:current])
		if err != nil {
			slog.Debug("Dropping unframed request", "err", err)
			continue
		}

		for current < expectedLen {
			n, err := port.Read(buf[current:expectedLen])
			current += n
			if err != nil || n == 0 {
				break
			}
		}
		if current < expectedLen {
			continue
		}

		adu, err := rtupacket.Decode(buf[:expectedLen])
		if err != nil {
			slog.Debug("Dropping request", "err", err)
			continue
		}
		if s.SlaveID != 0 && adu.SlaveID != s.SlaveID {
			continue
		}
		slog.Debug("recv from modbus master", "request", hex.EncodeToString(buf[:expectedLen]))

		// Answer in order; the bus is half duplex.
		resp, err := handler(ctx, adu.SlaveID, modbus.ProtocolDataUnit{
			FunctionCode: adu.Pdu.FunctionCode,
			Data:         append([]byte(nil), adu.Pdu.Data...),
		})
		if err != nil {
			slog.Error("Upstream handler failed", "err", err)
			continue
		}
		if err := writeResponse(port, adu.SlaveID, resp); err != nil {
			if isClosed(err) {
				return nil
			}
			slog.Error("Failed to write response", "err", err)
		}
	}
}

func writeResponse(w io.Writer, slaveID byte, pdu modbus.ProtocolDataUnit) error {
	raw := make([]byte, 0, len(pdu.Data)+4)
	raw = append(raw, slaveID, pdu.FunctionCode)
	raw = append(raw, pdu.Data...)
	raw = crc.Append(raw)
	slog.Debug("send to modbus master", "response", hex.EncodeToString(raw))

	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}

func (s *Server) Close() error {
	return s.serialPort.Close()
}
