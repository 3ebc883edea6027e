package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		page, size     int
		offset, limit  int
	}{
		{1, 10, 0, 10},
		{3, 10, 20, 10},
		{0, 10, 0, 10},
		{-5, 10, 0, 10},
		{2, 0, 10, 10},
		{2, 500, 10, 10},
		{1, 25, 0, 25},
	}

	for _, tc := range cases {
		offset, limit := Calculate(tc.page, tc.size)
		require.Equal(t, tc.offset, offset, "page=%d size=%d", tc.page, tc.size)
		require.Equal(t, tc.limit, limit, "page=%d size=%d", tc.page, tc.size)
	}
}
