package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog/log"
)

func TestInitWritesConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "qwill.log")
	if err := Init(Options{Level: "debug", File: file, Out: &buf, MaxSizeMB: 1}); err != nil {
		t.Fatal(err)
	}
	defer Close()

	log.Info().Str("doc", "x").Msg("hello")
	log.Debug().Msg("details")

	out := buf.String()
	if !strings.Contains(out, `"message":"hello"`) || !strings.Contains(out, `"doc":"x"`) {
		t.Errorf("console output = %s", out)
	}
	if !strings.Contains(out, `"message":"details"`) {
		t.Errorf("debug level not honored: %s", out)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %s", data)
	}
}

func TestInitBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Level: "chatty", Out: &buf}); err != nil {
		t.Fatal(err)
	}
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %s", buf.String())
	}
}

type recordingSink struct{ events []axiom.Event }

func (r *recordingSink) Send(ev axiom.Event) { r.events = append(r.events, ev) }

func TestAxiomWriterDropsDebug(t *testing.T) {
	sink := &recordingSink{}
	w := &axiomWriter{sink: sink}
	w.Write([]byte(`{"level":"debug","message":"noise"}`))
	w.Write([]byte(`{"level":"warn","message":"slow pass"}`))
	w.Write([]byte("not json"))

	if len(sink.events) != 2 {
		t.Fatalf("events = %v", sink.events)
	}
	ev := sink.events[0]
	if ev["service"] != Service || ev["message"] != "slow pass" {
		t.Errorf("event = %v", ev)
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		t.Error("timestamp missing")
	}
	if sink.events[1]["message"] != "not json" {
		t.Errorf("raw line event = %v", sink.events[1])
	}
}

type fakeIngester struct {
	mu      sync.Mutex
	dataset string
	count   int
}

func (f *fakeIngester) IngestEvents(ctx context.Context, dataset string, events []axiom.Event, _ ...ingest.Option) (*ingest.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataset = dataset
	f.count += len(events)
	return &ingest.Status{}, nil
}

func TestAxiomClientFlushesOnClose(t *testing.T) {
	fake := &fakeIngester{}
	c := startAxiomClient(fake, "", time.Hour)
	for i := 0; i < 5; i++ {
		c.Send(axiom.Event{"n": i})
	}
	c.Close()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.count != 5 || fake.dataset != "dev_qwill" {
		t.Errorf("ingested %d events into %q", fake.count, fake.dataset)
	}
}
