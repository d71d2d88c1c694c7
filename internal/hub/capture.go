package hub

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// CapturedMessage is one hub datagram recovered from a packet capture.
type CapturedMessage struct {
	Timestamp time.Time
	Src       *net.UDPAddr
	Dst       *net.UDPAddr
	Message   Message
	// Err is set when the payload did not decode as a hub message.
	Err error
	Raw []byte
}

// CaptureStats summarises a capture read.
type CaptureStats struct {
	Packets   int
	Matched   int
	Malformed int
}

// ReadCapture decodes the UDP datagrams to or from port in a pcap stream
// and calls fn for each one. fn returning an error stops the read.
func ReadCapture(ctx context.Context, r io.Reader, port int, fn func(CapturedMessage) error) (CaptureStats, error) {
	var stats CaptureStats
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return stats, fmt.Errorf("open pcap stream: %w", err)
	}

	source := gopacket.NewPacketSource(reader, reader.LinkType())
	source.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		packet, err := source.NextPacket()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			continue
		}
		if port > 0 && int(udp.SrcPort) != port && int(udp.DstPort) != port {
			continue
		}
		if len(udp.Payload) == 0 {
			continue
		}
		stats.Matched++

		cm := CapturedMessage{
			Timestamp: packet.Metadata().Timestamp,
			Raw:       append([]byte(nil), udp.Payload...),
		}
		if ip := networkIP(packet); ip != nil {
			cm.Src = &net.UDPAddr{IP: ip.src, Port: int(udp.SrcPort)}
			cm.Dst = &net.UDPAddr{IP: ip.dst, Port: int(udp.DstPort)}
		}
		cm.Message, cm.Err = Decode(cm.Raw)
		if cm.Err != nil {
			stats.Malformed++
		}
		if err := fn(cm); err != nil {
			return stats, err
		}
	}
}

type endpoints struct {
	src, dst net.IP
}

func networkIP(packet gopacket.Packet) *endpoints {
	if ip4, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		return &endpoints{src: ip4.SrcIP, dst: ip4.DstIP}
	}
	if ip6, ok := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		return &endpoints{src: ip6.SrcIP, dst: ip6.DstIP}
	}
	return nil
}
