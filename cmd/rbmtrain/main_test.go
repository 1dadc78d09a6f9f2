package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBarsAndStripes(t *testing.T) {
	data := barsAndStripes(3)
	assert.Equal(t, []int{14, 9}, []int(data.Shape()))

	seen := make(map[string]bool)
	backing := data.Data().([]float32)
	for i := 0; i < 14; i++ {
		row := backing[i*9 : i*9+9]
		key := ""
		for _, v := range row {
			if v == 1 {
				key += "1"
			} else {
				key += "0"
			}
		}
		assert.False(t, seen[key], "duplicate pattern %s", key)
		seen[key] = true
	}
	assert.True(t, seen["000000000"])
	assert.True(t, seen["111111111"])
	assert.True(t, seen["100100100"]) // left bar
	assert.True(t, seen["111000000"]) // top stripe
}
