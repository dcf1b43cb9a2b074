// Command loadtest opens many WebSocket connections to a relay server, has
// each of them send messages, and reports what every connection observed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/johndosdos/relay/internal/model"
	"github.com/johndosdos/relay/internal/relay"
)

type options struct {
	url      string
	clients  int
	messages int
	typing   bool
	interval time.Duration
	timeout  time.Duration
	colours  bool
}

// stats is what one connection saw during the run.
type stats struct {
	name      string
	sent      atomic.Int64
	received  atomic.Int64
	errors    atomic.Int64
	mu        sync.Mutex
	pending   map[string]time.Time
	latencies []time.Duration
}

func (s *stats) markSent(content string) {
	s.mu.Lock()
	s.pending[content] = time.Now()
	s.mu.Unlock()
	s.sent.Add(1)
}

func (s *stats) markReceived(msg model.Message) {
	s.received.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.pending[msg.Content]; ok {
		s.latencies = append(s.latencies, time.Since(at))
		delete(s.pending, msg.Content)
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)

	var opts options
	flag.StringVar(&opts.url, "url", "ws://localhost:3000/ws", "relay WebSocket endpoint")
	flag.IntVar(&opts.clients, "clients", 10, "number of concurrent connections")
	flag.IntVar(&opts.messages, "messages", 10, "messages sent by each connection")
	flag.BoolVar(&opts.typing, "typing", false, "send typing/stop_typing around every message")
	flag.DurationVar(&opts.interval, "interval", 100*time.Millisecond, "pause between messages of one connection")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "give up waiting for broadcasts after this long")
	flag.BoolVar(&opts.colours, "colours", true, "colour the summary line")
	flag.Parse()

	if opts.clients <= 0 || opts.messages < 0 {
		log.Fatal("-clients must be positive and -messages non-negative")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	results, elapsed := run(ctx, opts)
	render(results, opts, elapsed)
}

func run(ctx context.Context, opts options) ([]*stats, time.Duration) {
	results := make([]*stats, opts.clients)
	conns := make([]*websocket.Conn, opts.clients)

	for i := range results {
		results[i] = &stats{
			name:    "loadtest-" + strconv.Itoa(i+1),
			pending: make(map[string]time.Time),
		}

		conn, _, err := websocket.Dial(ctx, opts.url+"?username="+results[i].name, nil)
		if err != nil {
			log.Fatalf("failed to connect client %d to %s: %v", i+1, opts.url, err)
		}
		defer conn.CloseNow()
		conns[i] = conn
	}

	log.Printf("connected %d clients to %s", opts.clients, opts.url)

	want := int64(opts.clients * opts.messages)
	ready := make(chan struct{}, opts.clients)

	var readers sync.WaitGroup
	for i, conn := range conns {
		readers.Add(1)
		go func() {
			defer readers.Done()
			read(ctx, conn, results[i], opts.clients, want, ready)
		}()
	}

	for range conns {
		select {
		case <-ready:
		case <-ctx.Done():
			log.Printf("not every client saw the full user count: %v", ctx.Err())
			return results, 0
		}
	}

	start := time.Now()

	var writers sync.WaitGroup
	for i, conn := range conns {
		writers.Add(1)
		go func() {
			defer writers.Done()
			write(ctx, conn, results[i], opts)
		}()
	}

	writers.Wait()
	readers.Wait()

	for _, conn := range conns {
		conn.Close(websocket.StatusNormalClosure, "load test done")
	}

	return results, time.Since(start)
}

// read consumes frames until the connection has seen want new_message
// broadcasts. ready is signalled once the user count reaches clients.
func read(ctx context.Context, conn *websocket.Conn, s *stats, clients int, want int64, ready chan<- struct{}) {
	signalled := false

	for s.received.Load() < want || !signalled {
		var env relay.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() == nil {
				log.Printf("%s: read failed: %v", s.name, err)
			}
			if !signalled {
				ready <- struct{}{}
			}
			return
		}

		switch env.Event {
		case relay.KindUserCount:
			var uc model.UserCount
			if err := json.Unmarshal(env.Data, &uc); err == nil && uc.Count >= clients && !signalled {
				signalled = true
				ready <- struct{}{}
			}

		case relay.KindNewMessage:
			var msg model.Message
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				s.errors.Add(1)
				continue
			}
			s.markReceived(msg)

		case relay.KindError:
			// A rejected message is never broadcast, so the run ends on timeout.
			s.errors.Add(1)
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, s *stats, opts options) {
	send := func(kind relay.Kind, payload any) bool {
		env, err := relay.NewEnvelope(kind, payload)
		if err == nil {
			err = wsjson.Write(ctx, conn, env)
		}
		if err != nil {
			log.Printf("%s: failed to send %s: %v", s.name, kind, err)
			s.errors.Add(1)
			return false
		}
		return true
	}

	for n := range opts.messages {
		if opts.typing && !send(relay.KindTyping, model.Typing{Username: s.name}) {
			return
		}

		content := fmt.Sprintf("%s message %d", s.name, n+1)
		s.markSent(content)
		if !send(relay.KindSendMessage, model.SendMessage{Username: s.name, Content: content}) {
			return
		}

		if opts.typing && !send(relay.KindStopTyping, model.Typing{Username: s.name}) {
			return
		}

		select {
		case <-time.After(opts.interval):
		case <-ctx.Done():
			return
		}
	}
}

func render(results []*stats, opts options, elapsed time.Duration) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Client", "Sent", "Received", "Errors", "Min", "Avg", "Max"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, s := range results {
		s.mu.Lock()
		lat := s.latencies
		s.mu.Unlock()

		table.Append([]string{
			s.name,
			strconv.FormatInt(s.sent.Load(), 10),
			strconv.FormatInt(s.received.Load(), 10),
			strconv.FormatInt(s.errors.Load(), 10),
			formatLatency(lo.Min(lat), len(lat)),
			formatLatency(average(lat), len(lat)),
			formatLatency(lo.Max(lat), len(lat)),
		})
	}

	table.Render()

	sent := lo.SumBy(results, func(s *stats) int64 { return s.sent.Load() })
	received := lo.SumBy(results, func(s *stats) int64 { return s.received.Load() })
	errs := lo.SumBy(results, func(s *stats) int64 { return s.errors.Load() })
	want := sent * int64(opts.clients)

	summary := fmt.Sprintf("%d clients, %d sent, %d/%d broadcasts received, %d errors in %s",
		opts.clients, sent, received, want, errs, elapsed.Round(time.Millisecond))

	if opts.colours {
		style := color.New(color.FgGreen, color.OpBold)
		if errs > 0 || received < want {
			style = color.New(color.FgRed, color.OpBold)
		}
		summary = style.Render(summary)
	}

	fmt.Println(summary)
}

func average(lat []time.Duration) time.Duration {
	if len(lat) == 0 {
		return 0
	}
	return lo.Sum(lat) / time.Duration(len(lat))
}

func formatLatency(d time.Duration, samples int) string {
	if samples == 0 {
		return "-"
	}
	return d.Round(time.Microsecond).String()
}
