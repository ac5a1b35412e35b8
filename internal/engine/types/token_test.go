package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelToken_SignalIsIdempotent(t *testing.T) {
	token := NewToken()
	assert.False(t, token.IsSignalled())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token.Signal()
		}()
	}
	wg.Wait()

	assert.True(t, token.IsSignalled())
	select {
	case <-token.Done():
	default:
		t.Fatal("Done channel should be closed after Signal")
	}
}
