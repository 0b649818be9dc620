// Command ld2410 streams presence readings from an LD2410 radar module on a
// serial port, optionally switching it into engineering mode and recording
// readings to a sqlite log.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/ld2410/internal/config"
	"github.com/banshee-data/ld2410/internal/db"
	"github.com/banshee-data/ld2410/internal/protocol"
	"github.com/banshee-data/ld2410/internal/radar"
	"github.com/banshee-data/ld2410/internal/serialport"
)

var (
	devMode     = flag.Bool("dev", false, "Run in dev mode (replay a fixture file instead of opening a serial port)")
	fixture     = flag.String("fixture", "fixtures.bin", "Raw frame capture to replay in dev mode")
	portPath    = flag.String("port", "", "Serial port to use (overrides config; ignored in dev mode)")
	configPath  = flag.String("config", "", "Optional JSON config file")
	engineering = flag.Bool("engineering", false, "Switch the module into engineering mode on startup")
	record      = flag.String("record", "", "Record readings to a sqlite database at this path (overrides config)")
)

func main() {
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	var port serialport.Porter
	if *devMode {
		data, err := os.ReadFile(*fixture)
		if err != nil {
			log.Fatalf("failed to open fixture file: %v", err)
		}
		mock := serialport.NewMockPort()
		mock.Push(data)
		port = mock
	} else {
		path := cfg.GetPort()
		if *portPath != "" {
			path = *portPath
		}
		var err error
		port, err = serialport.Open(path, cfg.SerialOptions())
		if err != nil {
			log.Fatalf("failed to open radar port: %v", err)
		}
	}

	h := radar.NewHandler(port, radar.Options{
		CommandTimeout: cfg.GetCommandTimeout(),
		BufferCap:      cfg.GetReadBufferCap(),
		HistorySize:    cfg.GetHistorySize(),
	})
	defer h.Close()

	dbPath := cfg.GetDatabasePath()
	if *record != "" {
		dbPath = *record
	}
	var store *db.DB
	if dbPath != "" {
		var err error
		store, err = db.NewDB(dbPath)
		if err != nil {
			log.Fatalf("failed to open readings database: %v", err)
		}
		defer store.Close()
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := h.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		stop()
		log.Print("monitor routine terminated")
	}()

	// subscribe to decoded readings, print them and optionally record
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, readings := h.Subscribe()
		defer h.Unsubscribe(id)
		for {
			select {
			case r, ok := <-readings:
				if !ok {
					return
				}
				printReading(r)
				if store != nil {
					if err := store.RecordReading(r); err != nil {
						log.Printf("failed to record reading: %v", err)
					}
				}
			case <-ctx.Done():
				log.Print("subscribe routine terminated")
				return
			}
		}
	}()

	// Mode switching talks to real hardware; in dev mode there is nothing
	// on the other end to ACK.
	if *engineering && !*devMode {
		if err := enableEngineering(ctx, h); err != nil {
			log.Printf("failed to enable engineering mode: %v", err)
		}
	}

	wg.Wait()
	log.Print("shutdown complete")
}

func enableEngineering(ctx context.Context, h *radar.Handler) error {
	if err := h.EnterConfigMode(ctx); err != nil {
		return fmt.Errorf("enter config mode: %w", err)
	}
	version, err := h.ReadFirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("read firmware version: %w", err)
	}
	log.Printf("module firmware %s", version)

	if err := h.EnableEngineeringMode(ctx); err != nil {
		return fmt.Errorf("enable engineering mode: %w", err)
	}
	if err := h.ExitConfigMode(ctx); err != nil {
		return fmt.Errorf("exit config mode: %w", err)
	}
	return nil
}

func printReading(r protocol.Reading) {
	line := fmt.Sprintf("%s state=%s detection=%dcm moving=%dcm/%d static=%dcm/%d",
		r.Timestamp.Format(time.RFC3339Nano), r.TargetState,
		r.DetectionDistanceCM,
		r.MovingDistanceCM, r.MovingEnergy,
		r.StaticDistanceCM, r.StaticEnergy)
	if r.Mode == protocol.ModeEngineering {
		line += fmt.Sprintf(" moving_gates=%v static_gates=%v", r.MovingGateEnergy, r.StaticGateEnergy)
	}
	log.Print(line)
}
