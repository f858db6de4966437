package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/block-gravity/internal/eventbus"
	"github.com/annel0/block-gravity/internal/world/block"
	_ "github.com/annel0/block-gravity/internal/world/block/implementations"
	nats "github.com/nats-io/nats.go"
)

const (
	defaultServerURL = "nats://127.0.0.1:4222"
	timeFormat       = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		serverURL  = flag.String("nats", defaultServerURL, "NATS server URL")
		stream     = flag.String("stream", "GRAVITY", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		since      = flag.Duration("since", time.Hour, "Replay events newer than now-since")
		limit      = flag.Int("limit", 100, "Maximum number of events (0 - no limit)")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
		asJSON     = flag.Bool("json", false, "Print raw envelopes as JSON lines")
	)
	flag.Parse()

	nc, err := nats.Connect(*serverURL, nats.Name("gravity-tail"))
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatalf("❌ JetStream unavailable: %v", err)
	}

	opts := &TailOptions{
		Stream:     *stream,
		EventTypes: parseStringList(*eventTypes),
		Since:      time.Now().Add(-*since),
		Limit:      *limit,
		Follow:     *follow,
		JSON:       *asJSON,
	}

	switch *command {
	case "tail":
		if err := tailEvents(js, opts); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
	case "stats":
		opts.Follow = false
		if err := showStats(js, opts); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats")
		os.Exit(1)
	}
}

type TailOptions struct {
	Stream     string
	EventTypes []string
	Since      time.Time
	Limit      int
	Follow     bool
	JSON       bool
}

// replay читает события стрима начиная с opts.Since и вызывает fn для каждого.
// Без Follow чтение заканчивается, когда новых сообщений нет секунду.
func replay(js nats.JetStreamContext, opts *TailOptions, fn func(*eventbus.Envelope)) (int, error) {
	subject := eventbus.Subject("")
	if len(opts.EventTypes) == 1 {
		subject = eventbus.Subject(opts.EventTypes[0])
	}

	sub, err := js.SubscribeSync(subject,
		nats.BindStream(opts.Stream),
		nats.OrderedConsumer(),
		nats.StartTime(opts.Since),
	)
	if err != nil {
		return 0, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	wanted := make(map[string]struct{}, len(opts.EventTypes))
	for _, t := range opts.EventTypes {
		wanted[t] = struct{}{}
	}

	count := 0
	for opts.Limit == 0 || count < opts.Limit {
		select {
		case <-sigCh:
			return count, nil
		default:
		}

		msg, err := sub.NextMsg(time.Second)
		if errors.Is(err, nats.ErrTimeout) {
			if opts.Follow {
				continue
			}
			break
		}
		if err != nil {
			return count, fmt.Errorf("next message: %w", err)
		}

		var env eventbus.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  skipping malformed message on %s: %v\n", msg.Subject, err)
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[env.EventType]; !ok {
				continue
			}
		}
		fn(&env)
		count++
	}
	return count, nil
}

// tailEvents выводит события по порядку
func tailEvents(js nats.JetStreamContext, opts *TailOptions) error {
	if !opts.JSON {
		fmt.Printf("🎬 Tailing %s since %s (limit: %d, follow: %v)\n", opts.Stream, opts.Since.UTC().Format(timeFormat), opts.Limit, opts.Follow)
	}
	count, err := replay(js, opts, func(env *eventbus.Envelope) {
		if opts.JSON {
			data, _ := json.Marshal(env)
			fmt.Println(string(data))
			return
		}
		printEvent(env)
	})
	if err != nil {
		return err
	}
	if !opts.JSON {
		fmt.Printf("\n📊 Total events: %d\n", count)
	}
	return nil
}

// showStats выводит число событий по типам и блокам
func showStats(js nats.JetStreamContext, opts *TailOptions) error {
	byType := make(map[string]int)
	byBlock := make(map[string]int)
	total, err := replay(js, opts, func(env *eventbus.Envelope) {
		byType[env.EventType]++
		if ev, _, err := eventbus.DecodeBlockEvent(env); err == nil {
			byBlock[block.NameOf(ev.Block)]++
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("📊 Event statistics since %s\n", opts.Since.UTC().Format(timeFormat))
	fmt.Printf("   Total: %d\n\n", total)
	printCounts("Event type", byType)
	fmt.Println()
	printCounts("Block", byBlock)
	return nil
}

func printCounts(title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Printf("   %-20s %8s\n", title, "Count")
	fmt.Printf("   %s\n", strings.Repeat("-", 29))
	for _, k := range keys {
		fmt.Printf("   %-20s %8d\n", k, counts[k])
	}
}

// printEvent выводит событие в читаемом виде
func printEvent(env *eventbus.Envelope) {
	ts := env.Timestamp.UTC().Format("15:04:05.000")
	ev, payload, err := eventbus.DecodeBlockEvent(env)
	if err != nil {
		fmt.Printf("[%s] %-16s %s (undecodable: %v)\n", ts, env.EventType, env.ID, err)
		return
	}
	line := fmt.Sprintf("[%s] %-16s %-8s at %v", ts, ev.Type, payload.BlockName, ev.Cell)
	if ev.EntityID != 0 {
		line += fmt.Sprintf(" entity=%d", ev.EntityID)
	}
	fmt.Println(line)
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
