package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/stagegate/internal/adapters/mq/queue"
	worker "github.com/okian/stagegate/internal/adapters/mq/worker"
	"github.com/okian/stagegate/internal/domain/dedupe"
	model "github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/internal/domain/ranking"
	logging "github.com/okian/stagegate/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	eventChan chan queue.Event
	closed    atomic.Bool
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Event {
	return mq.eventChan
}

func (mq *mockQueue) Close() error {
	if mq.closed.CompareAndSwap(false, true) {
		close(mq.eventChan)
	}
	return nil
}

type mockRecomputer struct {
	mu      sync.Mutex
	reasons []string
	err     error
	calls   chan struct{}
}

func newMockRecomputer() *mockRecomputer {
	return &mockRecomputer{calls: make(chan struct{}, 100)}
}

func (m *mockRecomputer) Recompute(_ context.Context, reason string) (*ranking.Snapshot, error) {
	m.mu.Lock()
	m.reasons = append(m.reasons, reason)
	err := m.err
	m.mu.Unlock()
	m.calls <- struct{}{}
	if err != nil {
		return nil, err
	}
	return ranking.Compute(nil, time.Now()), nil
}

func (m *mockRecomputer) wait(n int) bool {
	for i := 0; i < n; i++ {
		select {
		case <-m.calls:
		case <-time.After(2 * time.Second):
			return false
		}
	}
	return true
}

func recompute(id string) queue.Event {
	return queue.Event{EventID: id, Scope: model.ScopeAll, Reason: "submit"}
}

func TestWorker(t *testing.T) {
	if err := logging.Init(logging.WithOutput(io.Discard)); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	convey.Convey("Given a worker with a pending set", t, func() {
		q := newMockQueue()
		rec := newMockRecomputer()
		pending := dedupe.NewInMemoryDeduper()
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("test"), worker.WithPending(pending))

		runCtx, cancel := context.WithCancel(ctx)
		go w.Run(runCtx)

		convey.Convey("When an event arrives", func() {
			pending.SeenAndRecord(ctx, model.ScopeAll)
			q.eventChan <- recompute("e1")

			convey.Convey("Then it recomputes and releases the pending key", func() {
				convey.So(rec.wait(1), convey.ShouldBeTrue)
				convey.So(pending.SeenAndRecord(ctx, model.ScopeAll), convey.ShouldBeFalse)
				rec.mu.Lock()
				convey.So(rec.reasons, convey.ShouldResemble, []string{"submit"})
				rec.mu.Unlock()
			})
		})

		convey.Convey("When the recompute fails", func() {
			rec.err = errors.New("store down")
			q.eventChan <- recompute("e1")
			q.eventChan <- recompute("e2")

			convey.Convey("Then the worker keeps going", func() {
				convey.So(rec.wait(2), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shut down", func() {
			err := w.Shutdown(ctx)

			convey.Convey("Then it stops cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Reset(cancel)
	})

	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		rec := newMockRecomputer()
		pool := worker.NewPool(3, q, rec)
		pool.Start(ctx)

		convey.Convey("When several events are enqueued", func() {
			for _, id := range []string{"a", "b", "c", "d"} {
				convey.So(q.Enqueue(ctx, recompute(id)), convey.ShouldBeNil)
			}

			convey.Convey("Then all are processed and shutdown drains", func() {
				convey.So(rec.wait(4), convey.ShouldBeTrue)
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When created with no workers", func() {
			p := worker.NewPool(0, newMockQueue(), rec)

			convey.Convey("Then it falls back to one worker", func() {
				convey.So(p.Size(), convey.ShouldEqual, 1)
			})
		})
	})
}
