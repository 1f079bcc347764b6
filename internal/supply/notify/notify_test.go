package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/feishu"
	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/metrics"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
)

func sampleEvent() entity.StatusChangeEvent {
	return entity.StatusChangeEvent{
		EventID:    "ev-1",
		RequestID:  1,
		BranchID:   5,
		FromStatus: entity.StatusPending,
		ToStatus:   entity.StatusDelivered,
		Priority:   entity.PriorityNormal,
		TotalCost:  decimal.RequireFromString("70"),
		OccurredAt: time.Now(),
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeSender struct {
	cards []feishu.InteractiveCard
}

func (s *fakeSender) SendCard(_ context.Context, card feishu.InteractiveCard) error {
	s.cards = append(s.cards, card)
	return nil
}

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	if err := NewKafkaSink(w).Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "1" {
		t.Fatalf("expected key 1, got %q", msg.Key)
	}
	var ev entity.StatusChangeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.ToStatus != entity.StatusDelivered || !ev.TotalCost.Equal(decimal.RequireFromString("70")) {
		t.Fatalf("unexpected payload %+v", ev)
	}
	if msg.Headers[0].Key != "event-type" || string(msg.Headers[0].Value) != EventStatusChange {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
}

func TestFeishuSink(t *testing.T) {
	sender := &fakeSender{}
	if err := NewFeishuSink(sender, "https://erp.local/").Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sender.cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(sender.cards))
	}
	last := sender.cards[0].Elements[len(sender.cards[0].Elements)-1]
	if last.Tag != "action" || last.Actions[0].URL != "https://erp.local/supply-requests/1" {
		t.Fatalf("expected link to request, got %+v", last)
	}
}

func TestHubBranchFilter(t *testing.T) {
	hub := NewHub(nil)
	all := &Client{ID: "all", Events: make(chan Event, 1)}
	mine := &Client{ID: "mine", BranchID: 5, Events: make(chan Event, 1)}
	other := &Client{ID: "other", BranchID: 6, Events: make(chan Event, 1)}
	hub.Register(all)
	hub.Register(mine)
	hub.Register(other)

	if err := hub.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(all.Events) != 1 || len(mine.Events) != 1 || len(other.Events) != 0 {
		t.Fatalf("unexpected fan-out all=%d mine=%d other=%d", len(all.Events), len(mine.Events), len(other.Events))
	}

	// full buffer drops instead of blocking
	if err := hub.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	hub.Unregister("all")
	if hub.Count() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.Count())
	}
	if _, ok := <-all.Events; !ok {
		t.Fatalf("expected buffered event before close")
	}
}

func TestDispatcherIsolatesFailures(t *testing.T) {
	m := metrics.New()
	good := &fakeWriter{}
	bad := &fakeWriter{err: errors.New("broker down")}
	hub := NewHub(nil)
	client := &Client{ID: "c", Events: make(chan Event, 1)}
	hub.Register(client)

	d := NewDispatcher(time.Second, m, nil,
		hub,
		NewKafkaSink(good),
		namedSink{name: "kafka-dr", Sink: NewKafkaSink(bad)},
	)
	d.Notify(context.Background(), sampleEvent())
	d.Wait()

	if len(good.msgs) != 1 || len(client.Events) != 1 {
		t.Fatalf("expected healthy sinks delivered")
	}
	if got := testutil.ToFloat64(m.NotificationFailures.WithLabelValues("kafka-dr")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

type namedSink struct {
	Sink
	name string
}

func (n namedSink) Name() string { return n.name }
