package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	configs := map[string]Config{
		"sequential": Sequential(),
		"default":    DefaultConfig(),
		"small chunks": {
			Enabled:      true,
			NumWorkers:   4,
			MinChunkSize: 3,
		},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			const n = 1000
			counts := make([]int32, n)
			For(n, func(i int) {
				atomic.AddInt32(&counts[i], 1)
			}, cfg)
			for i, c := range counts {
				assert.Equal(t, int32(1), c, "index %d", i)
			}
		})
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestForBatch(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 2}
	var seen [4][5]int32
	ForBatch(4, 5, func(b, c int) {
		atomic.AddInt32(&seen[b][c], 1)
	}, cfg)
	for b := range seen {
		for c := range seen[b] {
			assert.Equal(t, int32(1), seen[b][c])
		}
	}
}
