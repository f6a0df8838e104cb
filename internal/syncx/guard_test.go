package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard([]byte("frame-1"))
	if string(g.Get()) != "frame-1" {
		t.Errorf("Get = %q, want frame-1", g.Get())
	}

	g.Set([]byte("frame-2"))
	if string(g.Get()) != "frame-2" {
		t.Errorf("Get = %q, want frame-2", g.Get())
	}
}

func TestGuardReadWrite(t *testing.T) {
	g := NewGuard(0)
	g.Write(func(v *int) { *v = 42 })

	got := g.Read(func(v int) any { return v * 2 })
	if got != 84 {
		t.Errorf("Read = %v, want 84", got)
	}
}

func TestGuardConcurrent(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Write(func(v *int) { *v++ })
		}()
	}
	wg.Wait()

	if g.Get() != 100 {
		t.Errorf("Get = %d, want 100", g.Get())
	}
}
