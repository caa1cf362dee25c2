package graph

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestComputeOrderKeyDeterministic(t *testing.T) {
	k1 := ComputeOrderKey("dispatch", 0)
	k2 := ComputeOrderKey("dispatch", 0)
	if k1 != k2 {
		t.Fatalf("same inputs produced %d and %d", k1, k2)
	}
	if ComputeOrderKey("dispatch", 0) == ComputeOrderKey("dispatch", 1) {
		t.Error("different edge indexes collided")
	}
	if ComputeOrderKey("dispatch", 0) == ComputeOrderKey("risk", 0) {
		t.Error("different parents collided")
	}
}

func TestFrontierOrdersByKey(t *testing.T) {
	f := NewFrontier[testState](8)
	ctx := context.Background()

	keys := []uint64{}
	for i := 0; i < 5; i++ {
		key := ComputeOrderKey("parent", i)
		keys = append(keys, key)
		item := WorkItem[testState]{OrderKey: key, NodeID: "n", EdgeIndex: i}
		if err := f.Enqueue(ctx, item); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for i, want := range keys {
		item, err := f.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if item.OrderKey != want {
			t.Errorf("dequeue %d: key %d, want %d", i, item.OrderKey, want)
		}
	}
	if f.Len() != 0 {
		t.Errorf("Len = %d after draining", f.Len())
	}
}

func TestFrontierEnqueueBlocksWhenFull(t *testing.T) {
	f := NewFrontier[testState](1)
	ctx := context.Background()

	if err := f.Enqueue(ctx, WorkItem[testState]{OrderKey: 1}); err != nil {
		t.Fatal(err)
	}

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := f.Enqueue(blocked, WorkItem[testState]{OrderKey: 2})
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	// The rolled-back item must not appear on later dequeues.
	item, err := f.Dequeue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if item.OrderKey != 1 {
		t.Errorf("dequeued key %d, want 1", item.OrderKey)
	}
}

func TestFrontierDequeueRespectsCancel(t *testing.T) {
	f := NewFrontier[testState](1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := f.Dequeue(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err = %v, want canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after cancel")
	}
}
