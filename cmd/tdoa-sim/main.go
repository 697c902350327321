// Command tdoa-sim exercises the tag driver and engine against a
// synthetic multi-anchor deployment, with no radio hardware attached.
// It generates range packets for a small ring of anchors at a fixed
// packet rate and reports the resulting ranging state and measurement
// throughput, useful for tuning config/tuning.defaults.json before
// flying against real anchors.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eddyswens/crazyflie-firmware/internal/config"
	"github.com/eddyswens/crazyflie-firmware/internal/estimator"
	"github.com/eddyswens/crazyflie-firmware/internal/radio"
	"github.com/eddyswens/crazyflie-firmware/internal/tdoa"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "tuning config JSON file")
	numAnchors = flag.Int("anchors", 6, "number of simulated anchors (max 8)")
	rateHz     = flag.Float64("rate", 50, "aggregate simulated packet rate, in packets per second")
	duration   = flag.Duration("duration", 10*time.Second, "how long to run the simulation")
	ringRadius = flag.Float64("radius", 3.0, "radius, in meters, of the simulated anchor ring")
)

type dropCounter struct {
	tdoa, height int
	mu           sync.Mutex
}

func (d *dropCounter) AddDroppedTDoA() {
	d.mu.Lock()
	d.tdoa++
	d.mu.Unlock()
}

func (d *dropCounter) AddDroppedHeight() {
	d.mu.Lock()
	d.height++
	d.mu.Unlock()
}

func main() {
	flag.Parse()

	if *numAnchors < 2 || *numAnchors > tdoa.NumAnchors {
		log.Fatalf("-anchors must be between 2 and %d", tdoa.NumAnchors)
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
	queue := estimator.NewBoundedQueue(256, drops, 5*time.Second)
	driver := radio.NewDriver(nil, mock, queue, cfg)
	engineSink := radio.NewEstimatorSink(driver)
	engine := tdoa.NewEngine(storage, 0, engineSink, cfg.GetTimestampFreqHz(), algo)
	driver.AttachEngine(engine)

	placeAnchorRing(storage, *numAnchors, *ringRadius)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		estimator.RunDropLogger(ctx.Done(), 5*time.Second, func() (tdoa, height int) {
			drops.mu.Lock()
			defer drops.mu.Unlock()
			t, h := drops.tdoa, drops.height
			drops.tdoa, drops.height = 0, 0
			return t, h
		})
	}()

	measurements, heights := 0, 0
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-queue.TDoAChan():
				measurements++
			case <-queue.HeightChan():
				heights++
			}
		}
	}()

	runSimulation(ctx, mock, driver, *numAnchors, *rateHz, *duration)
	stop()
	wg.Wait()

	log.Printf("simulation complete: ranging state %016b, %d tdoa / %d height measurements", driver.RangingState(), measurements, heights)
}

// placeAnchorRing seeds each simulated anchor's position on a circle
// in the XY plane, matching a common tabletop TDoA2 layout.
func placeAnchorRing(storage *tdoa.Storage, n int, radius float64) {
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		x := float32(radius * math.Cos(angle))
		y := float32(radius * math.Sin(angle))
		ctx, _ := storage.GetOrCreate(byte(i), 0)
		ctx.SetPosition(x, y, 0.2)
	}
}

// runSimulation drives OnEvent with synthetic packets round-robining
// through the anchor set, at roughly rateHz aggregate packets/sec,
// mimicking the polling loop a real tag firmware would run between
// radio interrupts.
func runSimulation(ctx context.Context, mock *radio.MockRadio, driver *radio.Driver, numAnchors int, rateHz float64, duration time.Duration) {
	if rateHz <= 0 {
		rateHz = 1
	}
	period := time.Duration(float64(time.Second) / rateHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	deadline := time.Now().Add(duration)
	var nowMS int64
	seqNrs := make([]byte, numAnchors)
	anchorClock := make([]uint64, numAnchors)
	const ticksPerEvent = 1_500_000 // roughly one radio period, in DW1000 ticks

	anchor := 0
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		nowMS++
		anchorClock[anchor] += ticksPerEvent

		var rp tdoa.RangePacket
		rp.Type = tdoa.PacketTypeTDoA2
		rp.Timestamps[anchor] = anchorClock[anchor] & tdoa.TimestampMask
		rp.SequenceNrs[anchor] = seqNrs[anchor]
		seqNrs[anchor]++

		mock.FeedPacket(radio.Packet{
			SourceAddress:    radio.DefaultAnchorAddress[anchor],
			Payload:          tdoa.EncodeRangePacket(rp),
			ArrivalTimestamp: anchorClock[anchor],
		})
		driver.OnEvent(radio.EventPacketReceived, nowMS)

		anchor = (anchor + 1) % numAnchors
	}
}
