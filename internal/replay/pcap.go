//go:build pcap
// +build pcap

package replay

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/eddyswens/crazyflie-firmware/internal/radio"
	"github.com/eddyswens/crazyflie-firmware/internal/tdoa"
)

// Sink receives a decoded range packet plus the capture-relative
// timestamp it arrived at, standing in for a live radio.Radio during
// offline analysis.
type Sink interface {
	OnRangePacket(src uint64, rp tdoa.RangePacket, arrivalMS int64)
}

// DriverSink adapts a *radio.Driver to Sink by feeding it synthetic
// PacketReceived events, one per decoded frame in the capture.
type DriverSink struct {
	Driver *radio.Driver
	Radio  *radio.MockRadio
}

// OnRangePacket implements Sink by queuing the frame on the mock radio
// and firing the matching driver event, mirroring how a live radio's
// interrupt handler would drive OnEvent.
func (d *DriverSink) OnRangePacket(src uint64, rp tdoa.RangePacket, arrivalMS int64) {
	d.Radio.FeedPacket(radio.Packet{
		SourceAddress:    src,
		Payload:          tdoa.EncodeRangePacket(rp),
		ArrivalTimestamp: uint64(arrivalMS),
	})
	d.Driver.OnEvent(radio.EventPacketReceived, arrivalMS)
}

// ReadPCAPFile reads UDP-encapsulated TDoA2 range packets from a pcap
// capture and delivers each one to sink in capture order. It exists
// for after-the-fact analysis of a flight log without a physical
// radio attached; only available when built with the pcap tag since
// libpcap is not always present on the build host.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, sink Sink) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("replay: open pcap file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("replay: set BPF filter %q: %w", filterStr, err)
	}
	log.Printf("replay: pcap BPF filter set: %s", filterStr)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	decodedCount := 0
	startTime := time.Now()
	epoch := time.Time{}

	for {
		select {
		case <-ctx.Done():
			log.Printf("replay: pcap reader stopping due to context cancellation (processed %d packets)", packetCount)
			return ctx.Err()
		case packet, ok := <-packetSource.Packets():
			if !ok || packet == nil {
				elapsed := time.Since(startTime)
				log.Printf("replay: pcap file reading complete: %d packets processed, %d decoded, in %v", packetCount, decodedCount, elapsed)
				return nil
			}
			packetCount++

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			l := &Layer{}
			if err := l.DecodeFromBytes(udp.Payload, gopacket.NilDecodeFeedback); err != nil {
				log.Printf("replay: skipping packet %d: %v", packetCount, err)
				continue
			}

			captureTime := packet.Metadata().Timestamp
			if epoch.IsZero() {
				epoch = captureTime
			}
			arrivalMS := captureTime.Sub(epoch).Milliseconds()

			decodedCount++
			sink.OnRangePacket(anchorAddressForSrcPort(udp.SrcPort), l.Packet, arrivalMS)
		}
	}
}

// anchorAddressForSrcPort maps a capture's UDP source port onto the
// synthetic 64-bit anchor address space the driver expects, since a
// bench capture carries no radio MAC layer of its own.
func anchorAddressForSrcPort(port layers.UDPPort) uint64 {
	return 0xbccf000000000000 | uint64(port)
}
