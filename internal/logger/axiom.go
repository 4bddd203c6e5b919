package logger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
)

const (
	batchSize     = 200
	bufferedCount = 1000
)

type eventSink interface {
	Send(ev axiom.Event)
}

// axiomWriter forwards zerolog JSON lines to Axiom, dropping debug level.
type axiomWriter struct{ sink eventSink }

func (w *axiomWriter) Write(p []byte) (int, error) {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{"message": string(p), "level": "info"}
	}
	if lvl, ok := ev["level"].(string); ok && (lvl == "debug" || lvl == "trace") {
		return len(p), nil
	}
	ev["service"] = Service
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	w.sink.Send(axiom.Event(ev))
	return len(p), nil
}

type ingester interface {
	IngestEvents(ctx context.Context, dataset string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

// axiomClient batches events and ingests them in the background.
type axiomClient struct {
	client  ingester
	dataset string
	ch      chan axiom.Event
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func newAxiomClient(token, orgID, dataset string, flushEvery time.Duration) (*axiomClient, error) {
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return startAxiomClient(c, dataset, flushEvery), nil
}

func startAxiomClient(c ingester, dataset string, flushEvery time.Duration) *axiomClient {
	if dataset == "" {
		dataset = "dev_" + Service
	}
	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	ac := &axiomClient{
		client:  c,
		dataset: dataset,
		ch:      make(chan axiom.Event, bufferedCount),
		ctx:     ctx,
		cancel:  cancel,
	}
	ac.wg.Add(1)
	go ac.loop(flushEvery)
	return ac
}

// Send queues an event, dropping it when the buffer is full.
func (a *axiomClient) Send(ev axiom.Event) {
	select {
	case a.ch <- ev:
	default:
	}
}

func (a *axiomClient) loop(flushEvery time.Duration) {
	defer a.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	batch := make([]axiom.Event, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, _ = a.client.IngestEvents(ctx, a.dataset, batch)
		cancel()
		batch = make([]axiom.Event, 0, batchSize)
	}
	for {
		select {
		case <-a.ctx.Done():
			for {
				select {
				case ev := <-a.ch:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case ev := <-a.ch:
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				flush()
			}
		}
	}
}

// Close drains queued events and stops the loop.
func (a *axiomClient) Close() error {
	a.cancel()
	a.wg.Wait()
	return nil
}
