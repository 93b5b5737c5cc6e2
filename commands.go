// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.bug.st/serial/enumerator"

	"github.com/ffutop/renogy-rtu/internal/config"
	"github.com/ffutop/renogy-rtu/internal/monitor"
	"github.com/ffutop/renogy-rtu/internal/output"
	"github.com/ffutop/renogy-rtu/internal/renogy"
	"github.com/ffutop/renogy-rtu/internal/simulator"
	"github.com/ffutop/renogy-rtu/transport"
	"github.com/ffutop/renogy-rtu/transport/local"
	"github.com/ffutop/renogy-rtu/transport/rtu"
)

// loadSettleTime is how long the controller needs to apply a load switch
// before the new state reads back.
const loadSettleTime = 500 * time.Millisecond

type command struct {
	name    string
	usage   string
	summary string
	flags   func(fs *pflag.FlagSet)
	run     func(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet) error
}

var commands = []*command{
	{
		name:    "read",
		usage:   "read [--daily] [--historical]",
		summary: "Take one reading",
		flags:   statsFlags,
		run:     runRead,
	},
	{
		name:    "monitor",
		usage:   "monitor [-i interval] [-c count]",
		summary: "Take readings at a fixed interval",
		flags: func(fs *pflag.FlagSet) {
			statsFlags(fs)
			fs.DurationP("interval", "i", 5*time.Second, "Polling interval")
			fs.IntP("count", "c", 0, "Stop after this many readings, 0 runs until interrupted")
			fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9101")
		},
		run: runMonitor,
	},
	{
		name:    "info",
		usage:   "info",
		summary: "Show device information",
		run:     runInfo,
	},
	{
		name:    "load",
		usage:   "load on|off",
		summary: "Switch the load output",
		run:     runLoad,
	},
	{
		name:    "ports",
		usage:   "ports [--probe]",
		summary: "List serial ports",
		flags: func(fs *pflag.FlagSet) {
			fs.Bool("probe", false, "Try to read device information on each port")
		},
		run: runPorts,
	},
	{
		name:    "simulate",
		usage:   "simulate [--sim-device dev]",
		summary: "Emulate a charge controller on a serial port",
		flags: func(fs *pflag.FlagSet) {
			fs.String("sim-device", "", "Serial device to serve on, defaults to --port")
			fs.String("persistence", "memory", "Register storage: memory or mmap")
			fs.String("persistence-path", "", "Register file for mmap storage")
		},
		run: runSimulate,
	},
}

func lookupCommand(name string) *command {
	for _, c := range commands {
		if c.name == name {
			return c
		}
	}
	return nil
}

func statsFlags(fs *pflag.FlagSet) {
	fs.Bool("daily", false, "Include today's statistics")
	fs.Bool("historical", false, "Include lifetime statistics")
}

// session runs fn against the configured controller.
func session(ctx context.Context, cfg *config.Config, fn func(*renogy.Client) error) error {
	t, release, err := newTransporter(cfg)
	if err != nil {
		return err
	}
	defer release()
	return renogy.WithSession(ctx, t, byte(cfg.Device.ID), fn)
}

// newTransporter returns the serial client, or for the simulator driver a
// local client answered by an in-process simulator.
func newTransporter(cfg *config.Config) (transport.Transporter, func(), error) {
	if cfg.Serial.Driver != config.DriverSimulator {
		return rtu.NewClient(cfg.Serial), func() {}, nil
	}
	sim, err := simulator.New(cfg.Simulator, byte(cfg.Device.ID))
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Using in-process simulator", "device_id", sim.DeviceID())
	release := func() {
		if err := sim.Close(); err != nil {
			slog.Warn("Failed to close simulator", "err", err)
		}
	}
	return local.NewClient(sim.Handle), release, nil
}

func readOptions(cfg *config.Config) renogy.ReadOptions {
	return renogy.ReadOptions{
		DailyStats:      cfg.Monitor.DailyStats,
		HistoricalStats: cfg.Monitor.HistoricalStats,
	}
}

func runRead(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet) error {
	return session(ctx, cfg, func(c *renogy.Client) error {
		info, err := c.ReadDeviceInfo(ctx)
		if err != nil {
			return err
		}
		r, err := c.ReadAll(ctx, info, readOptions(cfg))
		if err != nil {
			return err
		}
		return output.Render(os.Stdout, cfg.Output.Format, r)
	})
}

func runMonitor(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet) error {
	return session(ctx, cfg, func(c *renogy.Client) error {
		info, err := c.ReadDeviceInfo(ctx)
		if err != nil {
			return err
		}
		slog.Info("Monitoring", "device", info.String(), "interval", cfg.Monitor.Interval)

		mon := monitor.New(c, info, cfg.Monitor, func(r *renogy.Reading) error {
			return writeReading(os.Stdout, cfg.Output.Format, r)
		})
		if cfg.Metrics.Address != "" {
			m := monitor.NewMetrics(c.DeviceID())
			mon.WithMetrics(m)
			go func() {
				if err := m.Serve(ctx, cfg.Metrics.Address, cfg.Metrics.Path); err != nil {
					slog.Error("Metrics server stopped", "err", err)
				}
			}()
		}
		return mon.Run(ctx)
	})
}

// writeReading separates consecutive text readings with a blank line.
func writeReading(w io.Writer, format string, r *renogy.Reading) error {
	if err := output.Render(w, format, r); err != nil {
		return err
	}
	if format == config.FormatText {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

func runInfo(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet) error {
	return session(ctx, cfg, func(c *renogy.Client) error {
		info, err := c.ReadDeviceInfo(ctx)
		if err != nil {
			return err
		}
		return output.RenderDeviceInfo(os.Stdout, cfg.Output.Format, info)
	})
}

func parseLoadState(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("expected exactly one argument, on or off")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid load state %q, want on or off", args[0])
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func runLoad(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet) error {
	on, err := parseLoadState(fs.Args())
	if err != nil {
		return err
	}
	return session(ctx, cfg, func(c *renogy.Client) error {
		if err := c.SetLoad(ctx, on); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(loadSettleTime):
		}
		state, err := c.GetLoadState(ctx)
		if err != nil {
			return err
		}
		if state != on {
			return fmt.Errorf("load reads back %s after switching %s", onOff(state), onOff(on))
		}
		fmt.Printf("Load is now %s\n", onOff(state))
		return nil
	})
}

func runPorts(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	probe, _ := fs.GetBool("probe")

	for _, p := range ports {
		line := p.Name
		if p.IsUSB {
			line += fmt.Sprintf("  USB %s:%s", p.VID, p.PID)
			if p.SerialNumber != "" {
				line += "  S/N " + p.SerialNumber
			}
			if p.Product != "" {
				line += "  " + p.Product
			}
		}
		if p.Name == cfg.Serial.Device {
			line += "  (selected)"
		}
		fmt.Println(line)

		if probe {
			fmt.Printf("    %s\n", probePort(ctx, cfg, p.Name))
		}
	}
	return nil
}

// probePort tries to identify a controller on device.
func probePort(ctx context.Context, cfg *config.Config, device string) string {
	serialCfg := cfg.Serial
	serialCfg.Device = device
	if serialCfg.Driver == config.DriverSimulator {
		serialCfg.Driver = config.DriverNative
	}

	var info renogy.DeviceInfo
	err := renogy.WithSession(ctx, rtu.NewClient(serialCfg), byte(cfg.Device.ID), func(c *renogy.Client) error {
		// Device info tolerates silent fields, so check the line first.
		if _, err := c.ReadChargingState(ctx); err != nil {
			return err
		}
		var err error
		info, err = c.ReadDeviceInfo(ctx)
		return err
	})
	if err != nil {
		return "no controller: " + err.Error()
	}
	return "found " + info.String()
}

func runSimulate(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet) error {
	if cfg.Serial.Driver == config.DriverSimulator {
		return fmt.Errorf("simulate needs a serial driver, not %q", cfg.Serial.Driver)
	}
	sim, err := simulator.New(cfg.Simulator, byte(cfg.Device.ID))
	if err != nil {
		return err
	}
	defer sim.Close()

	serialCfg := cfg.Serial
	if cfg.Simulator.Device != "" {
		serialCfg.Device = cfg.Simulator.Device
	}
	var us transport.Upstream = rtu.NewServer(serialCfg, sim.DeviceID())
	defer us.Close()

	slog.Info("Simulating charge controller", "device", serialCfg.Device, "device_id", sim.DeviceID(), "persistence", cfg.Simulator.Persistence.Type)
	return us.Start(ctx, sim.Handle)
}
