package stream_test

import (
	"context"
	"testing"

	"github.com/temirov/repo2txt/internal/services/stream"
	"github.com/temirov/repo2txt/internal/types"
)

func TestHubDeliversToEverySubscriber(t *testing.T) {
	hub := stream.NewHub()
	first, cancelFirst := hub.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe(4)
	defer cancelSecond()

	hub.Emit(stream.FilesUpdated(3, []types.FileUpdate{{ID: "a.txt", Size: 4, TokenCount: 1}}))

	for _, channel := range []<-chan stream.Event{first, second} {
		event := <-channel
		if event.Kind != stream.EventKindFilesUpdated || event.Epoch != 3 {
			t.Fatalf("unexpected event %+v", event)
		}
		if event.Version != stream.SchemaVersion || event.EmittedAt.IsZero() {
			t.Fatalf("event was not stamped: %+v", event)
		}
		if len(event.Updates) != 1 || event.Updates[0].ID != "a.txt" {
			t.Fatalf("unexpected updates %+v", event.Updates)
		}
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := stream.NewHub()
	channel, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Emit(stream.AnalysisCompleted(1))
	hub.Emit(stream.AnalysisCompleted(2))

	if dropped := hub.Dropped(); dropped != 1 {
		t.Fatalf("expected one dropped delivery, got %d", dropped)
	}
	if event := <-channel; event.Epoch != 1 {
		t.Fatalf("expected the first event to be kept, got %+v", event)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := stream.NewHub()
	channel, cancel := hub.Subscribe(1)
	cancel()
	cancel()
	if _, open := <-channel; open {
		t.Fatalf("expected closed channel")
	}
	hub.Emit(stream.AnalysisCompleted(1))
}

func TestChannelEmitterStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	emitter := stream.NewChannelEmitter(ctx, make(chan stream.Event))
	if err := emitter.Send(stream.GenerationProgress(types.ProgressEvent{Stage: types.StagePreparing})); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestFanoutSkipsNilEmitters(t *testing.T) {
	var received []stream.EventKind
	recorder := stream.EmitterFunc(func(event stream.Event) {
		received = append(received, event.Kind)
	})
	stream.Fanout(nil, recorder, recorder).Emit(stream.GenerationProgress(types.ProgressEvent{Current: 1, Total: 2}))
	if len(received) != 2 || received[0] != stream.EventKindGenerationProgress {
		t.Fatalf("unexpected deliveries %v", received)
	}
}
