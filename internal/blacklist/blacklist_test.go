package blacklist_test

import (
	"sync"
	"testing"

	"github.com/rohmanhakim/webretriever/internal/blacklist"
	"github.com/stretchr/testify/assert"
)

func TestAdmit_FirstTimeTrueSecondTimeFalse(t *testing.T) {
	b := blacklist.New()
	assert.True(t, b.Admit("https://example.com/a"))
	assert.False(t, b.Admit("https://example.com/a"))
}

func TestAdmit_DistinctKeysBothAdmitted(t *testing.T) {
	b := blacklist.New()
	assert.True(t, b.Admit("https://example.com/a"))
	assert.True(t, b.Admit("https://example.com/b"))
	assert.Equal(t, 2, b.Size())
}

func TestContains_DoesNotAdmit(t *testing.T) {
	b := blacklist.New()
	assert.False(t, b.Contains("https://example.com/a"))
	assert.Equal(t, 0, b.Size())
	b.Admit("https://example.com/a")
	assert.True(t, b.Contains("https://example.com/a"))
}

func TestNeverShrinks(t *testing.T) {
	b := blacklist.New()
	for i := 0; i < 100; i++ {
		b.Admit(string(rune('a' + i%26)))
	}
	before := b.Size()
	for i := 0; i < 100; i++ {
		b.Admit(string(rune('a' + i%26)))
	}
	assert.Equal(t, before, b.Size())
}

func TestAdmit_ConcurrentSafe(t *testing.T) {
	b := blacklist.New()
	var wg sync.WaitGroup
	admittedCount := 0
	var mu sync.Mutex

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Admit("same-key") {
				mu.Lock()
				admittedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admittedCount)
	assert.Equal(t, 1, b.Size())
}
