package bingo_test

import (
	"strconv"
	"testing"

	"github.com/you-joon/bingoruzzol/internal/bingo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_CellsAreDistinct(t *testing.T) {
	for _, poolSize := range []int{25, 50} {
		cells, err := bingo.Generate(poolSize)
		require.NoError(t, err)
		require.Len(t, cells, bingo.BoardSize)

		seen := make(map[string]bool, len(cells))
		for _, c := range cells {
			assert.NotEmpty(t, c, "标签不能为空")
			assert.False(t, seen[c], "板面内不允许出现重复标签: %s", c)
			seen[c] = true

			n, convErr := strconv.Atoi(c)
			require.NoError(t, convErr)
			assert.GreaterOrEqual(t, n, 1)
			assert.LessOrEqual(t, n, poolSize, "标签必须落在取数池范围内")
		}
	}
}

func TestGenerate_PoolTooSmall(t *testing.T) {
	_, err := bingo.Generate(24)
	assert.Error(t, err, "取数池小于 25 时必须拒绝生成")
}

func TestGenerate_PoolEqualsBoardSize(t *testing.T) {
	// 池恰好 25 时是 1..25 的一个全排列
	cells, err := bingo.Generate(bingo.BoardSize)
	require.NoError(t, err)

	sum := 0
	for _, c := range cells {
		n, convErr := strconv.Atoi(c)
		require.NoError(t, convErr)
		sum += n
	}
	assert.Equal(t, 325, sum, "1..25 全排列的和应为 325")
}
