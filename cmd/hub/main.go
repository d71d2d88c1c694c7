// Command hub runs the topic-based UDP message relay that robot processes
// publish and subscribe through.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/goal-distance/internal/hub"
	"github.com/banshee-data/goal-distance/internal/monitoring"
	"github.com/banshee-data/goal-distance/internal/version"
)

var (
	listen        = flag.String("listen", fmt.Sprintf("127.0.0.1:%d", hub.DefaultHubPort), "UDP address to listen on")
	statsInterval = flag.Duration("stats-interval", time.Minute, "Interval between stats lines (0 disables)")
	verbose       = flag.Bool("verbose", false, "Log subscription changes")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("hub"))
		return
	}
	monitoring.SetVerbose(*verbose)

	relay, err := hub.ListenRelay(hub.NewRealUDPSocketFactory(), *listen)
	if err != nil {
		log.Fatalf("failed to start relay: %v", err)
	}
	defer relay.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *statsInterval > 0 {
		go logStats(ctx, relay, *statsInterval)
	}

	if err := relay.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("relay stopped: %v", err)
	}
	log.Print("hub stopped")
}

func logStats(ctx context.Context, relay *hub.Relay, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last hub.RelayStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := relay.Stats()
			if s.Received == last.Received {
				continue
			}
			log.Printf("Hub stats: %d received, %d forwarded, %d malformed, %d ignored, %d goal_distance subscribers",
				s.Received-last.Received, s.Forwarded-last.Forwarded, s.Malformed-last.Malformed,
				s.Ignored-last.Ignored, len(relay.Subscribers(hub.TopicGoalDistance)))
			last = s
		}
	}
}
