// Command hub-capture decodes hub traffic from a pcap file, e.g. one taken
// with `tcpdump -i lo -w hub.pcap udp port 8091`.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/goal-distance/internal/hub"
	"github.com/banshee-data/goal-distance/internal/units"
)

var (
	pcapFile  = flag.String("pcap", "", "Path to the pcap file (required)")
	port      = flag.Int("port", hub.DefaultHubPort, "UDP port to keep (0 keeps every UDP datagram)")
	topic     = flag.String("topic", "", "Only show messages on this topic")
	unitsFlag = flag.String("units", units.Metres, "Display units for goal distances ("+units.GetValidUnitsString()+")")
	jsonOut   = flag.Bool("json", false, "Emit one JSON object per datagram")
)

type dumpOptions struct {
	port  int
	topic string
	units string
	json  bool
}

// jsonRecord is the -json output line.
type jsonRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Src       string          `json:"src,omitempty"`
	Dst       string          `json:"dst,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}
	if !units.IsValid(*unitsFlag) {
		log.Fatalf("invalid units %q, must be one of %s", *unitsFlag, units.GetValidUnitsString())
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *pcapFile, err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := dump(ctx, os.Stdout, f, dumpOptions{port: *port, topic: *topic, units: *unitsFlag, json: *jsonOut})
	if err != nil {
		log.Fatalf("failed to read capture: %v", err)
	}
	log.Printf("%d packets, %d hub datagrams, %d malformed", stats.Packets, stats.Matched, stats.Malformed)
}

func dump(ctx context.Context, w io.Writer, r io.Reader, opts dumpOptions) (hub.CaptureStats, error) {
	enc := json.NewEncoder(w)
	return hub.ReadCapture(ctx, r, opts.port, func(cm hub.CapturedMessage) error {
		if opts.topic != "" && cm.Message.Topic != opts.topic {
			return nil
		}
		if opts.json {
			rec := jsonRecord{Timestamp: cm.Timestamp.UTC(), Src: addrString(cm.Src), Dst: addrString(cm.Dst)}
			if cm.Err != nil {
				rec.Error = cm.Err.Error()
			} else {
				rec.Message = cm.Raw
			}
			return enc.Encode(rec)
		}
		_, err := fmt.Fprintf(w, "%s %s -> %s %s\n",
			cm.Timestamp.UTC().Format("15:04:05.000000"), addrString(cm.Src), addrString(cm.Dst), describe(cm, opts.units))
		return err
	})
}

func describe(cm hub.CapturedMessage, unit string) string {
	if cm.Err != nil {
		return fmt.Sprintf("malformed (%v)", cm.Err)
	}
	m := cm.Message
	switch m.Type {
	case hub.TypeSubscribe, hub.TypeUnsubscribe:
		return fmt.Sprintf("%s %v", m.Type, m.Topics)
	}
	if m.Topic == hub.TopicGoalDistance {
		if gd, err := hub.DecodeGoalDistance(m); err == nil {
			angle := "null"
			if gd.Angle != nil {
				angle = fmt.Sprintf("%.2f°", *gd.Angle)
			}
			return fmt.Sprintf("%s distance=%s angle=%s", m.Topic, units.FormatLength(gd.Distance, unit), angle)
		}
	}
	if m.Type == "" {
		return m.Topic
	}
	return fmt.Sprintf("%s %s", m.Type, m.Topic)
}

func addrString(a *net.UDPAddr) string {
	if a == nil {
		return "?"
	}
	return a.String()
}
