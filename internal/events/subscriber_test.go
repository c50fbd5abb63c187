package events

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// runTestNATS starts an embedded server on port (-1 picks a free one).
func runTestNATS(t *testing.T, port int) *natsserver.Server {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: port})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv
}

func startTestNATS(t *testing.T) string {
	t.Helper()
	return runTestNATS(t, -1).ClientURL()
}

// connectPair returns a publisher and subscriber on url, closed when the test ends.
func connectPair(t *testing.T, url string) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("NewNATSPublisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("NewNATSSubscriber: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })
	return pub, sub
}

// collect reads from ch until want payloads arrived, then waits briefly to
// make sure nothing else follows.
func collect(t *testing.T, ch <-chan []byte, want int) [][]byte {
	t.Helper()
	var got [][]byte
	deadline := time.After(2 * time.Second)
	for len(got) < want {
		select {
		case msg := <-ch:
			got = append(got, msg)
		case <-deadline:
			t.Fatalf("received %d of %d payloads", len(got), want)
		}
	}
	select {
	case msg := <-ch:
		t.Fatalf("unexpected extra payload %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
	return got
}

func TestNATSSubscriber_SubjectFilters(t *testing.T) {
	pub, sub := connectPair(t, startTestNATS(t))

	published := []struct {
		topic string
		event any
	}{
		{OwnerTopic(KindAppConfig, ActionCreated), OwnerChanged{Kind: KindAppConfig, Action: ActionCreated, AppID: "api", GUID: "g1", Version: 1}},
		{OwnerTopic(KindSubpopulation, ActionDeleted), OwnerChanged{Kind: KindSubpopulation, Action: ActionDeleted, AppID: "api", GUID: "s1", Version: 3}},
		{TopicCriteriaSaved, CriteriaSaved{Key: "appconfig:g1"}},
		{TopicCriteriaPurged, CriteriaPurged{Key: "subpopulation:s1"}},
	}

	for _, tc := range []struct {
		subject string
		want    int
	}{
		{All, 4},
		{TopicCriteria, 2},
		{OwnerTopic(KindAppConfig, ActionCreated), 1},
		{Prefix + ".*.deleted", 1},
		{OwnerTopic(KindSchedulePlan, ActionPurged), 0},
	} {
		t.Run(tc.subject, func(t *testing.T) {
			ch, cancel, err := sub.Subscribe(tc.subject)
			if err != nil {
				t.Fatalf("Subscribe(%q): %v", tc.subject, err)
			}
			defer cancel()

			for _, p := range published {
				if err := pub.Publish(context.Background(), p.topic, p.event); err != nil {
					t.Fatalf("Publish(%s): %v", p.topic, err)
				}
			}
			pub.conn.Flush()
			collect(t, ch, tc.want)
		})
	}
}

func TestNATSSubscriber_DecodesOwnerChanged(t *testing.T) {
	pub, sub := connectPair(t, startTestNATS(t))

	ch, cancel, err := sub.Subscribe(Prefix + ".scheduleplan.*")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	want := OwnerChanged{Kind: KindSchedulePlan, Action: ActionUpdated, AppID: "api", GUID: "p1", Version: 7}
	if err := pub.Publish(context.Background(), OwnerTopic(want.Kind, want.Action), want); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.conn.Flush()

	var got OwnerChanged
	if err := json.Unmarshal(collect(t, ch, 1)[0], &got); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if got.Kind != want.Kind || got.Action != want.Action || got.GUID != want.GUID || got.Version != want.Version {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNATSPublisher_SetsContentType(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer nc.Close()
	raw, err := nc.SubscribeSync(TopicCriteriaPurged)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	nc.Flush()

	if err := pub.Publish(context.Background(), TopicCriteriaPurged, CriteriaPurged{Key: "appconfig:g2"}); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	msg, err := raw.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("waiting for message: %v", err)
	}
	if ct := msg.Header.Get(contentTypeHeader); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = pub.Publish(ctx, TopicCriteriaSaved, CriteriaSaved{Key: "appconfig:g1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Publish with cancelled context = %v, want context.Canceled", err)
	}
}

func TestNATSSubscriber_Cancel(t *testing.T) {
	pub, sub := connectPair(t, startTestNATS(t))

	ch, cancel, err := sub.Subscribe(All)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			_ = pub.Publish(context.Background(), TopicCriteriaSaved, CriteriaSaved{Key: "appconfig:g1"})
		}
		pub.conn.Flush()
	}()

	cancel()
	cancel()
	<-done

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancel")
	}
}

func TestNATSSubscriber_ResumesAfterServerRestart(t *testing.T) {
	srv := runTestNATS(t, -1)
	port := srv.Addr().(*net.TCPAddr).Port

	disconnected := make(chan struct{}, 1)
	reconnected := make(chan struct{}, 1)
	signal := func(ch chan struct{}) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	sub, err := NewNATSSubscriber(srv.ClientURL(),
		nats.ReconnectWait(20*time.Millisecond),
		nats.DisconnectErrHandler(func(*nats.Conn, error) { signal(disconnected) }),
		nats.ReconnectHandler(func(*nats.Conn) { signal(reconnected) }),
	)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicCriteria)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	srv.Shutdown()
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect handler not called")
	}

	restarted := runTestNATS(t, port)
	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect handler not called")
	}
	if err := sub.conn.Flush(); err != nil {
		t.Fatalf("flushing resubscription: %v", err)
	}

	pub, err := NewNATSPublisher(restarted.ClientURL())
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()
	if err := pub.Publish(context.Background(), TopicCriteriaSaved, CriteriaSaved{Key: "appconfig:g9"}); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.conn.Flush()
	collect(t, ch, 1)
}
