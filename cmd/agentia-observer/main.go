// Package main - agentia-observer
// Tails the live event stream of a running simulation. With --clients > 1 it
// opens that many concurrent observers and reports delivery numbers, which
// is how the hub's fan-out is load tested.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/network"
)

// Config for the observer
type Config struct {
	ServerURL string
	Agent     string
	Type      string
	Clients   int
	Duration  time.Duration
	JSON      bool
}

// Stats tracks delivery across observers
type Stats struct {
	Received  int64
	Errors    int64
	Connected int64
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "Observer WebSocket URL")
	agentName := flag.String("agent", "", "Only show events where this agent is actor or target")
	eventType := flag.String("type", "", "Only show events of this type, e.g. MOVE")
	clients := flag.Int("clients", 1, "Concurrent observers to open")
	duration := flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	asJSON := flag.Bool("json", false, "Print raw JSON events")
	flag.Parse()

	config := Config{
		ServerURL: *serverURL,
		Agent:     *agentName,
		Type:      *eventType,
		Clients:   *clients,
		Duration:  *duration,
		JSON:      *asJSON,
	}

	wsURL, err := streamURL(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentia-observer: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Duration)
		defer cancel()
	}

	if config.Clients <= 1 {
		if err := tail(ctx, wsURL, config.JSON); err != nil {
			fmt.Fprintf(os.Stderr, "agentia-observer: %v\n", err)
			os.Exit(1)
		}
		return
	}

	started := time.Now()
	stats := runObservers(ctx, wsURL, config)
	printResults(stats, config, time.Since(started))
}

func streamURL(config Config) (string, error) {
	u, err := url.Parse(config.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	if config.Agent != "" {
		q.Set("agent", config.Agent)
	}
	if config.Type != "" {
		q.Set("type", config.Type)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func tail(ctx context.Context, wsURL string, asJSON bool) error {
	fmt.Fprintf(os.Stderr, "observing %s\n", wsURL)
	return network.Tail(ctx, wsURL, func(e events.GameEvent) error {
		if asJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Println(formatEvent(e))
		return nil
	})
}

func formatEvent(e events.GameEvent) string {
	target := ""
	if e.TargetID != "" {
		target = " -> " + e.TargetID
	}
	return fmt.Sprintf("[tick %3d] %-16s %s%s: %s", e.Tick, e.Type, e.ActorID, target, e.Summary)
}

func runObservers(ctx context.Context, wsURL string, config Config) *Stats {
	stats := &Stats{}
	var wg sync.WaitGroup

	for i := 0; i < config.Clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			atomic.AddInt64(&stats.Connected, 1)
			err := network.Tail(ctx, wsURL, func(events.GameEvent) error {
				atomic.AddInt64(&stats.Received, 1)
				return nil
			})
			if err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				atomic.AddInt64(&stats.Connected, -1)
			}
		}()

		// Stagger connects to avoid a thundering herd on the upgrader.
		time.Sleep(10 * time.Millisecond)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			return stats
		case <-ticker.C:
			fmt.Printf("progress: connected=%d received=%d errors=%d\n",
				atomic.LoadInt64(&stats.Connected),
				atomic.LoadInt64(&stats.Received),
				atomic.LoadInt64(&stats.Errors))
		}
	}
}

func printResults(stats *Stats, config Config, elapsed time.Duration) {
	received := atomic.LoadInt64(&stats.Received)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Println("=========================================")
	fmt.Println("OBSERVER FAN-OUT RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Observers:        %d\n", config.Clients)
	fmt.Printf("Events received:  %d\n", received)
	fmt.Printf("Per observer:     %.1f\n", float64(received)/float64(config.Clients))
	fmt.Printf("Failed observers: %d\n", errs)
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Printf("Throughput:       %.2f events/sec\n", float64(received)/secs)
	}
	fmt.Println("=========================================")
}
