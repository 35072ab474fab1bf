package ws

import (
	"testing"
	"time"
)

func TestHubSubscribeAndPublish(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil)

	hub.Subscribe(Channel("lender", "lender-1"), client)
	hub.Publish(Channel("lender", "lender-1"), []byte(`{"event":"offer_accepted"}`))

	select {
	case msg := <-client.out:
		if string(msg) != `{"event":"offer_accepted"}` {
			t.Fatalf("unexpected payload: %s", string(msg))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for message")
	}

	hub.UnsubscribeAll(client)
}

// One device stays connected while the same user connects and drops on a
// second one. Publishes must keep flowing without touching the subscriber
// map or a closed outbound channel mid-flight; run with -race.
func TestHubPublishDuringClientChurn(t *testing.T) {
	hub := NewHub()
	channel := Channel("lender", "lender-1")

	keeper := NewClient(nil)
	hub.Subscribe(channel, keeper)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range keeper.out {
		}
	}()

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < 500; i++ {
			hub.Publish(channel, []byte(`{"event":"payment_confirmed"}`))
		}
	}()

	for i := 0; i < 500; i++ {
		second := NewClient(nil)
		hub.Subscribe(channel, second)
		hub.UnsubscribeAll(second)
		second.shutdown()
	}

	<-published
	hub.UnsubscribeAll(keeper)
	keeper.shutdown()
	<-drained
}

func TestClientSendAfterShutdownIsDropped(t *testing.T) {
	client := NewClient(nil)
	client.shutdown()
	client.shutdown() // second shutdown is a no-op

	client.send([]byte(`{"event":"loan_repaid"}`))

	if _, ok := <-client.out; ok {
		t.Fatalf("expected outbound channel to be closed and empty")
	}
}

func TestHubPublishAfterUnsubscribe(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil)

	hub.Subscribe(Channel("borrower", "b-1"), client)
	hub.UnsubscribeAll(client)
	hub.Publish(Channel("borrower", "b-1"), []byte(`{"event":"offer_received"}`))

	select {
	case msg := <-client.out:
		t.Fatalf("unexpected message after unsubscribe: %s", string(msg))
	case <-time.After(100 * time.Millisecond):
	}
}
