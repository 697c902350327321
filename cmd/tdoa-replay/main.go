//go:build pcap
// +build pcap

// Command tdoa-replay drives the tag driver from a captured pcap file
// instead of a live radio, for after-the-fact analysis of a flight log.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/eddyswens/crazyflie-firmware/internal/config"
	"github.com/eddyswens/crazyflie-firmware/internal/estimator"
	"github.com/eddyswens/crazyflie-firmware/internal/radio"
	"github.com/eddyswens/crazyflie-firmware/internal/replay"
	"github.com/eddyswens/crazyflie-firmware/internal/tdoa"
)

var (
	pcapFile   = flag.String("pcap", "", "path to a pcap capture of UWB traffic")
	udpPort    = flag.Int("udp-port", 5000, "UDP port the capture encapsulates range packets on")
	configPath = flag.String("config", config.DefaultConfigPath, "tuning config JSON file")
)

// dropCounter is the DropStats implementation for a standalone
// replay run, where a full estimator queue just means the consumer
// goroutine below isn't draining fast enough.
type dropCounter struct {
	tdoa, height int
}

func (d *dropCounter) AddDroppedTDoA()   { d.tdoa++ }
func (d *dropCounter) AddDroppedHeight() { d.height++ }

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}

	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	algo := tdoa.MatchingYoungest
	if cfg.GetMatchingAlgorithm() == "random" {
		algo = tdoa.MatchingRandom
	}

	storage := tdoa.NewStorage(cfg.GetStorageCapacity(), cfg.GetRemoteCapacity())
	mock := &radio.MockRadio{}

	drops := &dropCounter{}
	queue := estimator.NewBoundedQueue(256, drops, 0)
	driver := radio.NewDriver(nil, mock, queue, cfg)
	engineSink := radio.NewEstimatorSink(driver)
	engine := tdoa.NewEngine(storage, 0, engineSink, cfg.GetTimestampFreqHz(), algo)
	driver.AttachEngine(engine)

	sink := &replay.DriverSink{Driver: driver, Radio: mock}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	measurements, heights := 0, 0
	go func() {
		for {
			select {
			case <-queue.TDoAChan():
				measurements++
			case <-queue.HeightChan():
				heights++
			}
		}
	}()

	if err := replay.ReadPCAPFile(ctx, *pcapFile, *udpPort, sink); err != nil {
		log.Fatalf("pcap replay failed: %v", err)
	}

	// Give the drain goroutine a moment to catch up with the last
	// burst before reporting totals; it never sees a close signal
	// since the queue outlives this process, so this is best-effort.
	time.Sleep(50 * time.Millisecond)

	log.Printf("replay complete: ranging state %016b, %d tdoa / %d height measurements queued, %d/%d dropped",
		driver.RangingState(), measurements, heights, drops.tdoa, drops.height)
}
