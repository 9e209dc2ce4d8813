package types

import (
	"context"
	"testing"
)

func TestActorRoundTrip(t *testing.T) {
	actor := Actor{ID: "b0c5f6de-1", Email: "mario@example.com", Type: ActorTypeUser}
	ctx := WithActor(context.Background(), actor)

	got, ok := GetActor(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if got != actor {
		t.Errorf("GetActor() = %+v, want %+v", got, actor)
	}
}

func TestGetActorMissing(t *testing.T) {
	if _, ok := GetActor(context.Background()); ok {
		t.Error("expected no actor on a bare context")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty request id, got %q", id)
	}
	ctx := WithRequestID(context.Background(), "req-42")
	if id := GetRequestID(ctx); id != "req-42" {
		t.Errorf("GetRequestID() = %q", id)
	}
}
