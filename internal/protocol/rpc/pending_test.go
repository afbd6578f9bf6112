package rpc_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"keybridge/internal/protocol/rpc"
)

func TestPending_ResolveDelivers(t *testing.T) {
	p := rpc.NewPending()
	ch, err := p.Add("a", rpc.MethodPing, time.Second)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !p.Resolve("a", rpc.Outcome{Result: "pong"}) {
		t.Fatal("Resolve returned false for a pending id")
	}
	if got := <-ch; got.Result != "pong" || got.Err != nil {
		t.Fatalf("got %+v", got)
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d after resolve", p.Len())
	}
	if p.Resolve("a", rpc.Outcome{Result: "again"}) {
		t.Fatal("second Resolve for the same id should be dropped")
	}
}

func TestPending_DuplicateID(t *testing.T) {
	p := rpc.NewPending()
	if _, err := p.Add("a", rpc.MethodPing, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := p.Add("a", rpc.MethodPing, 0); !errors.Is(err, rpc.ErrDuplicateID) {
		t.Fatalf("want ErrDuplicateID, got %v", err)
	}
}

func TestPending_Timeout(t *testing.T) {
	p := rpc.NewPending()
	ch, _ := p.Add("slow", rpc.MethodSignEvent, 20*time.Millisecond)

	select {
	case got := <-ch:
		if !errors.Is(got.Err, rpc.ErrTimeout) {
			t.Fatalf("want timeout, got %+v", got)
		}
		var te *rpc.TimeoutError
		if !errors.As(got.Err, &te) || te.Method != rpc.MethodSignEvent || te.ID != "slow" {
			t.Fatalf("unexpected timeout detail: %v", got.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}

	// A late response for the expired id is ignored.
	if p.Resolve("slow", rpc.Outcome{Result: "late"}) {
		t.Fatal("late response resolved an expired request")
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d after timeout", p.Len())
	}
}

func TestPending_OutOfOrder(t *testing.T) {
	p := rpc.NewPending()
	chA, _ := p.Add("A", rpc.MethodSignEvent, time.Second)
	chB, _ := p.Add("B", rpc.MethodSignEvent, time.Second)

	p.Resolve("B", rpc.Outcome{Result: "for-B"})
	p.Resolve("A", rpc.Outcome{Result: "for-A"})

	if got := <-chA; got.Result != "for-A" {
		t.Fatalf("A got %q", got.Result)
	}
	if got := <-chB; got.Result != "for-B" {
		t.Fatalf("B got %q", got.Result)
	}
}

func TestPending_RejectAllStopsTimers(t *testing.T) {
	p := rpc.NewPending()
	disconnected := errors.New("disconnected")

	chans := make([]<-chan rpc.Outcome, 0, 3)
	for _, id := range []string{"1", "2", "3"} {
		ch, _ := p.Add(id, rpc.MethodPing, 30*time.Millisecond)
		chans = append(chans, ch)
	}
	if n := p.RejectAll(disconnected); n != 3 {
		t.Fatalf("RejectAll = %d, want 3", n)
	}
	for _, ch := range chans {
		if got := <-ch; !errors.Is(got.Err, disconnected) {
			t.Fatalf("want disconnected, got %+v", got)
		}
	}

	// Wait past the original deadlines: nothing else may be delivered.
	time.Sleep(60 * time.Millisecond)
	for _, ch := range chans {
		select {
		case got := <-ch:
			t.Fatalf("unexpected second outcome %+v", got)
		default:
		}
	}
}

func TestPending_RemoveIsSilent(t *testing.T) {
	p := rpc.NewPending()
	ch, _ := p.Add("x", rpc.MethodPing, 20*time.Millisecond)
	if !p.Remove("x") {
		t.Fatal("Remove returned false")
	}
	time.Sleep(40 * time.Millisecond)
	select {
	case got := <-ch:
		t.Fatalf("removed entry delivered %+v", got)
	default:
	}
}

func TestPending_TimeoutRacesResponse(t *testing.T) {
	for i := 0; i < 200; i++ {
		p := rpc.NewPending()
		ch, _ := p.Add("r", rpc.MethodPing, time.Millisecond)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			p.Resolve("r", rpc.Outcome{Result: "pong"})
		}()
		<-ch
		wg.Wait()
		select {
		case extra := <-ch:
			t.Fatalf("request settled twice: %+v", extra)
		default:
		}
	}
}

func TestResponse_ResultString(t *testing.T) {
	cases := map[string]string{
		`{"id":"1","result":"ack"}`:   "ack",
		`{"id":"1","result":{"a":1}}`: `{"a":1}`,
		`{"id":"1","error":"nope"}`:   "",
	}
	for raw, want := range cases {
		var r rpc.Response
		if err := jsonUnmarshal(raw, &r); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if got := r.ResultString(); got != want {
			t.Fatalf("%s: got %q, want %q", raw, got, want)
		}
	}
}
