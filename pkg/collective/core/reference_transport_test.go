package core

import (
	"context"
	"testing"
	"time"

	"github.com/jabolina/go-collective/pkg/collective/types"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReferenceTransportWriteNotifyAndWaitOne(t *testing.T) {
	hub := NewReferenceHub(2, types.NopLogger{})
	hub.Registry(0).Register(0, make([]byte, 8))
	hub.Registry(1).Register(0, make([]byte, 8))

	src := hub.Transport(0)
	dst := hub.Transport(1)

	srcBuf, _ := hub.Registry(0).Bytes(0)
	copy(srcBuf, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	ctx := context.Background()
	status := src.WriteNotify(ctx, 0, 0, 1, 0, 0, 8, 42, 7, 0, types.Block)
	if status != types.StatusSuccess {
		t.Fatalf("WriteNotify = %v, want Success", status)
	}

	status = dst.WaitOne(ctx, 0, 42, 7)
	if status != types.StatusSuccess {
		t.Fatalf("WaitOne = %v, want Success", status)
	}

	dstBuf, _ := hub.Registry(1).Bytes(0)
	if string(dstBuf) != string(srcBuf) {
		t.Errorf("destination bytes = %v, want %v", dstBuf, srcBuf)
	}
}

func TestReferenceTransportWaitOneWrongValue(t *testing.T) {
	hub := NewReferenceHub(1, types.NopLogger{})
	hub.Registry(0).Register(0, make([]byte, 8))
	trans := hub.Transport(0)

	ctx := context.Background()
	if status := trans.Notify(ctx, 0, 0, 5, 99, 0, types.Block); status != types.StatusSuccess {
		t.Fatalf("Notify = %v", status)
	}
	if status := trans.WaitOne(ctx, 0, 5, 100); status != types.StatusError {
		t.Fatalf("WaitOne with mismatched value = %v, want Error", status)
	}
}

func TestReferenceTransportWaitAny(t *testing.T) {
	hub := NewReferenceHub(1, types.NopLogger{})
	trans := hub.Transport(0)

	ctx := context.Background()
	if status := trans.Notify(ctx, 0, 0, 3, 55, 0, types.Block); status != types.StatusSuccess {
		t.Fatalf("Notify = %v", status)
	}

	id, value, status := trans.WaitAny(ctx, 0, 0, 10)
	if status != types.StatusSuccess {
		t.Fatalf("WaitAny = %v, want Success", status)
	}
	if id != 3 || value != 55 {
		t.Errorf("WaitAny = (%d, %d), want (3, 55)", id, value)
	}
}

func TestReferenceTransportWaitOneTimeout(t *testing.T) {
	hub := NewReferenceHub(1, types.NopLogger{})
	trans := hub.Transport(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	status := trans.WaitOne(ctx, 0, 1, 1)
	if status != types.StatusTimeout {
		t.Fatalf("WaitOne on an unsignalled slot with a bounded ctx = %v, want Timeout", status)
	}
}

func TestReferenceTransportInject(t *testing.T) {
	hub := NewReferenceHub(2, types.NopLogger{})
	hub.Registry(0).Register(0, make([]byte, 8))
	hub.Registry(1).Register(0, make([]byte, 8))

	calls := 0
	hub.Inject = func(rank int, queue types.QueueID) bool {
		calls++
		return calls == 1
	}

	ctx := context.Background()
	status := hub.Transport(0).WriteNotify(ctx, 0, 0, 1, 0, 0, 8, 1, 1, 0, types.Block)
	if status != types.StatusQueueFull {
		t.Fatalf("first WriteNotify = %v, want QueueFull", status)
	}

	status = SubmitWriteNotify(ctx, hub.Transport(0), 0, 0, 1, 0, 0, 8, 1, 1, 0, types.Block, types.NopMetrics, "test")
	if status != types.StatusSuccess {
		t.Fatalf("SubmitWriteNotify after backoff = %v, want Success", status)
	}
}

func TestReferenceHubBarrier(t *testing.T) {
	n := 4
	hub := NewReferenceHub(n, types.NopLogger{})
	done := make(chan types.Status, n)
	for i := 0; i < n; i++ {
		go func() {
			done <- hub.Barrier(context.Background())
		}()
	}
	for i := 0; i < n; i++ {
		if status := <-done; status != types.StatusSuccess {
			t.Errorf("Barrier = %v, want Success", status)
		}
	}
}
