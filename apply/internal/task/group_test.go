package task_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/converge/converge/apply/internal/task"
	"github.com/pkg/errors"
)

func TestGroup_Do_sameKey(t *testing.T) {
	var got string

	g := task.NewGroup()
	_ = g.Do("a", func() error {
		got = "first"
		return nil
	})
	_ = g.Do("a", func() error {
		got = "second"
		return nil
	})

	want := "first"
	if got != want {
		t.Errorf("Got = %q, want = %q", got, want)
	}
}

func TestGroup_Do_diffKey(t *testing.T) {
	var got string

	g := task.NewGroup()
	_ = g.Do("a", func() error {
		got = "initial"
		return nil
	})
	_ = g.Do("b", func() error {
		got = "update"
		return nil
	})

	want := "update"
	if got != want {
		t.Errorf("Got = %q, want = %q", got, want)
	}
}

func TestGroup_Do_err(t *testing.T) {
	g := task.NewGroup()
	boom := errors.New("boom")
	err := g.Do("a", func() error {
		return boom
	})
	if err != boom {
		t.Errorf("Do() err = %v, want %v", err, boom)
	}

	// Later calls receive the first call's error.
	err = g.Do("a", func() error {
		return nil
	})
	if err != boom {
		t.Errorf("second Do() err = %v, want %v", err, boom)
	}
}

func TestGroup_Do_concurrent(t *testing.T) {
	g := task.NewGroup()

	var wg sync.WaitGroup

	var got int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do("a", func() error {
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&got, 1)
				return nil
			})
		}()
	}

	wg.Wait()

	if got != 1 {
		t.Errorf("task ran %d times, want 1", got)
	}
}
