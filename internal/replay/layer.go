// Package replay supports offline analysis of captured TDoA2 traffic:
// a gopacket layer for the range-packet payload, and (behind the pcap
// build tag) a pcap file reader that drives the tag driver from a
// capture instead of a live radio.
package replay

import (
	"github.com/google/gopacket"

	"github.com/eddyswens/crazyflie-firmware/internal/tdoa"
)

// tdoa2LayerTypeID is an arbitrary id outside gopacket's built-in
// layers/ range, picked per gopacket's custom-layer convention.
const tdoa2LayerTypeID = 8422

// LayerTypeTDoA2 identifies a decoded TDoA2 range packet inside a
// gopacket layer chain. Registered once at package init, following
// gopacket's custom-layer convention.
var LayerTypeTDoA2 = gopacket.RegisterLayerType(
	tdoa2LayerTypeID,
	gopacket.LayerTypeMetadata{Name: "TDoA2", Decoder: gopacket.DecodeFunc(decodeTDoA2)},
)

// Layer is a gopacket.Layer wrapping a decoded RangePacket, so replay
// tooling can walk a capture with the same Layer()/Layers() API used
// for every other protocol in a gopacket pipeline.
type Layer struct {
	RawContent []byte
	Packet     tdoa.RangePacket
}

// LayerType implements gopacket.Layer.
func (l *Layer) LayerType() gopacket.LayerType { return LayerTypeTDoA2 }

// LayerContents implements gopacket.Layer.
func (l *Layer) LayerContents() []byte { return l.RawContent }

// LayerPayload implements gopacket.Layer; a range packet carries no
// further nested protocol payload of interest to this analysis.
func (l *Layer) LayerPayload() []byte { return nil }

// DecodeFromBytes implements gopacket.DecodingLayer, so Layer can also
// be used as a DecodingLayerParser stage for zero-allocation replay
// loops.
func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	rp, err := tdoa.DecodeRangePacket(data)
	if err != nil {
		df.SetTruncated()
		return err
	}
	l.RawContent = data
	l.Packet = rp
	return nil
}

// NextLayerType implements gopacket.DecodingLayer.
func (l *Layer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypeZero }

func decodeTDoA2(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return p.NextDecoder(gopacket.LayerTypeZero)
}
