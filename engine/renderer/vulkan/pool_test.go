package vulkan

import (
	"sync"
	"testing"
)

func TestSafeQueueCallSerializes(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(family uint32) {
			defer wg.Done()
			_ = pool.SafeQueueCall(family, func() error {
				counter++
				return nil
			})
		}(0)
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d", counter)
	}
}

func TestSafeQueueCallUnknownFamilyFallsBack(t *testing.T) {
	pool := NewVulkanLockPool()
	called := false
	if err := pool.SafeQueueCall(7, func() error { called = true; return nil }); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("fn not called for unregistered family")
	}
}
