package utils

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Map(t *testing.T) {
	out := Map([]int{1, 2, 3}, func(i int, index uint64) string {
		return strconv.Itoa(i * int(index))
	})
	assert.Equal(t, []string{"0", "2", "6"}, out)
}

func Test_Filter(t *testing.T) {
	out := Filter([]int{1, 2, 3, 4}, func(i int) bool {
		return i%2 == 0
	})
	assert.Equal(t, []int{2, 4}, out)
}
