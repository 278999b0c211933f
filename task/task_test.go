package task

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRunCompletesOnCallingStack(t *testing.T) {
	rt, _ := newTestRuntime()
	tk := rt.Run("answer", func(co *Coro) (any, error) {
		return 42, nil
	})
	if !tk.Completed() {
		t.Fatal("task should complete before Run returns")
	}
	v, err, ok := tk.TryResult()
	if !ok || err != nil || v != 42 {
		t.Fatalf("unexpected result: %v, %v, %v", v, err, ok)
	}
}

func TestBodyErrorSurfacesFromWait(t *testing.T) {
	rt, _ := newTestRuntime()
	boom := errors.New("X")
	tk := rt.Run("failing", func(co *Coro) (any, error) {
		return nil, fmt.Errorf("exploded: %w", boom)
	})
	_, err := tk.Wait(time.Second)
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped X, got %v", err)
	}
	if !strings.Contains(err.Error(), "X") {
		t.Fatalf("payload should name the error, got %q", err)
	}
	if tb := tk.Traceback("boom"); !strings.Contains(tb, "failing") {
		t.Fatalf("traceback should name the task, got %q", tb)
	}
}

func TestAwaitChild(t *testing.T) {
	rt, h := newTestRuntime()
	tk := rt.Run("parent", func(co *Coro) (any, error) {
		child := co.Run("child", func(co *Coro) (any, error) {
			if err := co.Yield(); err != nil {
				return nil, err
			}
			return 7, nil
		})
		return co.Await(child)
	})
	if tk.Completed() {
		t.Fatal("parent should be suspended on the child")
	}
	if got := tk.Status(); got != StatusAwaiting {
		t.Fatalf("status = %v, want awaiting", got)
	}
	v, err := tk.Wait(time.Second)
	if err != nil || v != 7 {
		t.Fatalf("unexpected result: %v, %v", v, err)
	}
	_ = h
}

func TestAwaitCompletedTaskDeliversSynchronously(t *testing.T) {
	rt, _ := newTestRuntime()
	done := rt.Run("done", func(co *Coro) (any, error) { return "v", nil })
	tk := rt.Run("awaiter", func(co *Coro) (any, error) {
		return co.Await(done)
	})
	if !tk.Completed() {
		t.Fatal("awaiting a completed task must not suspend")
	}
	v, _, _ := tk.TryResult()
	if v != "v" {
		t.Fatalf("unexpected value %v", v)
	}
}

func TestChildRunsBeforeControlReturnsToParent(t *testing.T) {
	rt, _ := newTestRuntime()
	var order []string
	rt.Run("parent", func(co *Coro) (any, error) {
		co.Run("child", func(co *Coro) (any, error) {
			order = append(order, "child")
			return nil, nil
		})
		order = append(order, "parent")
		return nil, nil
	})
	if len(order) != 2 || order[0] != "child" || order[1] != "parent" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestDeepSynchronousContinuations(t *testing.T) {
	rt, _ := newTestRuntime()
	tk := rt.Run("deep", func(co *Coro) (any, error) {
		for i := 0; i < 10_000; i++ {
			v, err := co.AwaitFunc(func(cb Callback) Closable {
				cb(i, nil)
				return nil
			})
			if err != nil {
				return nil, err
			}
			if v != i {
				return nil, fmt.Errorf("step %d got %v", i, v)
			}
		}
		return "deep ok", nil
	})
	v, err, ok := tk.TryResult()
	if !ok || err != nil || v != "deep ok" {
		t.Fatalf("unexpected result: %v, %v, %v", v, err, ok)
	}
}

func TestCompleteFirstWins(t *testing.T) {
	rt, _ := newTestRuntime()
	tk := rt.Run("eternal", eternity)
	if err := tk.Complete("child 1 won"); err != nil {
		t.Fatalf("first complete failed: %v", err)
	}
	if err := tk.Complete("child 2 won"); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("second complete should fail, got %v", err)
	}
	v, err := tk.Wait(time.Second)
	if err != nil || v != "child 1 won" {
		t.Fatalf("unexpected result: %v, %v", v, err)
	}
}

func TestCompleteClosesChildren(t *testing.T) {
	rt, _ := newTestRuntime()
	var child *Task
	tk := rt.Run("parent", func(co *Coro) (any, error) {
		child = co.Run("eternal-child", eternity)
		return nil, co.Yield()
	})
	if err := tk.Complete("done"); err != nil {
		t.Fatal(err)
	}
	if !child.Completed() || !errors.Is(childErr(child), ErrClosed) {
		t.Fatalf("child should be closed, status=%v err=%v", child.Status(), childErr(child))
	}
	v, err := tk.Wait(time.Second)
	if err != nil || v != "done" {
		t.Fatalf("unexpected result: %v, %v", v, err)
	}
}

func childErr(t *Task) error {
	_, err, _ := t.TryResult()
	return err
}

func TestCompleteRaceBetweenChildren(t *testing.T) {
	rt, h := newTestRuntime()
	var c2 *Task
	var second error
	parent := rt.Run("parent", func(co *Coro) (any, error) {
		p := co.Task()
		co.Run("c1", func(co *Coro) (any, error) {
			if err := co.Yield(); err != nil {
				return nil, err
			}
			return nil, p.Complete("child 1 won")
		})
		c2 = co.Run("c2", func(co *Coro) (any, error) {
			yieldErr := co.Yield()
			second = p.Complete("child 2 won")
			return nil, yieldErr
		})
		return eternity(co)
	})
	h.tick()
	v, err := parent.Wait(time.Second)
	if err != nil || v != "child 1 won" {
		t.Fatalf("unexpected result: %v, %v", v, err)
	}
	if !errors.Is(second, ErrAlreadyCompleted) {
		t.Fatalf("losing complete = %v, want already-completed", second)
	}
	if _, err, _ := c2.TryResult(); !errors.Is(err, ErrClosed) {
		t.Fatalf("c2 err = %v, want closed", err)
	}
}

func TestWaitTimeoutDoesNotClose(t *testing.T) {
	rt, _ := newTestRuntime()
	tk := rt.Run("eternal", eternity)
	_, err := tk.Wait(time.Nanosecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if tk.Completed() || tk.IsClosing() {
		t.Fatal("timeout must not mutate the task")
	}
	tk.Close(nil)
	if _, err := tk.Wait(time.Second); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestWaitInsideTaskIsMisuse(t *testing.T) {
	rt, _ := newTestRuntime()
	var waitErr error
	tk := rt.Run("outer", func(co *Coro) (any, error) {
		inner := co.Run("inner", func(co *Coro) (any, error) { return nil, nil })
		_, waitErr = inner.Wait(time.Second)
		return nil, nil
	})
	if !tk.Completed() || waitErr == nil {
		t.Fatalf("expected misuse error, got %v", waitErr)
	}
}

func TestDetachSeversPropagation(t *testing.T) {
	rt, h := newTestRuntime()
	var child *Task
	tk := rt.Run("parent", func(co *Coro) (any, error) {
		child = co.Run("detached", func(co *Coro) (any, error) {
			if err := co.Yield(); err != nil {
				return nil, err
			}
			return nil, errors.New("detached boom")
		}).Detach()
		return "parent ok", nil
	})
	if !tk.Completed() {
		t.Fatal("parent should not wait for a detached child")
	}
	v, err, _ := tk.TryResult()
	if err != nil || v != "parent ok" {
		t.Fatalf("unexpected result: %v, %v", v, err)
	}
	h.tick()
	if !child.Completed() {
		t.Fatal("detached child should run to completion")
	}
	if v, err, _ := tk.TryResult(); err != nil || v != "parent ok" {
		t.Fatalf("detached child error must not reach the parent: %v, %v", v, err)
	}
}

func TestStatusTransitions(t *testing.T) {
	rt, _ := newTestRuntime()
	var insideParent, insideChild Status
	tk := rt.Run("parent", func(co *Coro) (any, error) {
		insideParent = co.Task().Status()
		parent := co.Task()
		co.Run("child", func(co *Coro) (any, error) {
			insideChild = parent.Status()
			return nil, nil
		})
		return nil, co.Yield()
	})
	if insideParent != StatusRunning {
		t.Fatalf("inside body status = %v, want running", insideParent)
	}
	if insideChild != StatusActive {
		t.Fatalf("parent during child step = %v, want active", insideChild)
	}
	if tk.Status() != StatusAwaiting {
		t.Fatalf("suspended status = %v, want awaiting", tk.Status())
	}
	tk.Close(nil)
	if tk.Status() != StatusCompleted {
		t.Fatalf("terminal status = %v, want completed", tk.Status())
	}
	for s, want := range map[Status]string{
		StatusRunning: "running", StatusAwaiting: "awaiting",
		StatusActive: "active", StatusCompleted: "completed",
	} {
		if s.String() != want {
			t.Fatalf("Status(%d) = %q", int(s), s.String())
		}
	}
}

func TestOnCompleteOrderAndCancel(t *testing.T) {
	rt, _ := newTestRuntime()
	tk := rt.Run("eternal", eternity)
	var fired []int
	tk.OnComplete(func(any, error) { fired = append(fired, 1) })
	cancel := tk.OnComplete(func(any, error) { fired = append(fired, 2) })
	tk.OnComplete(func(any, error) { fired = append(fired, 3) })
	cancel()
	tk.Close(nil)
	if len(fired) != 2 || fired[0] != 1 || fired[1] != 3 {
		t.Fatalf("notifiers fired %v, want [1 3]", fired)
	}
	var sync bool
	tk.OnComplete(func(any, error) { sync = true })
	if !sync {
		t.Fatal("notifier on a completed task must fire synchronously")
	}
}

func TestBodyPanicBecomesError(t *testing.T) {
	rt, _ := newTestRuntime()
	tk := rt.Run("panicky", func(co *Coro) (any, error) {
		panic("kaboom")
	})
	_, err, _ := tk.TryResult()
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "kaboom" {
		t.Fatalf("expected PanicError(kaboom), got %v", err)
	}
	if len(pe.Stack) == 0 {
		t.Fatal("panic error should carry a stack")
	}
}

func TestPanicEscapesWhenDisabled(t *testing.T) {
	h := &testHost{}
	rt := NewRuntime(h, WithPanicAsError(false))
	defer func() {
		if r := recover(); r != "kaboom" {
			t.Fatalf("expected panic to escape, got %v", r)
		}
	}()
	rt.Run("panicky", func(co *Coro) (any, error) {
		panic("kaboom")
	})
	t.Fatal("unreachable")
}

func TestTracebackWalksAwaitChain(t *testing.T) {
	rt, _ := newTestRuntime()
	tk := rt.Run("outer", func(co *Coro) (any, error) {
		mid := co.Run("middle", func(co *Coro) (any, error) {
			inner := co.Run("inner", eternity)
			return co.Await(inner)
		})
		return co.Await(mid)
	})
	tb := tk.Traceback("trouble")
	for _, want := range []string{"trouble", "outer", "middle", "inner", "awaiting"} {
		if !strings.Contains(tb, want) {
			t.Fatalf("traceback missing %q:\n%s", want, tb)
		}
	}
	tk.Close(nil)
}
