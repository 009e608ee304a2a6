// Package bingo 实现宾果游戏的纯函数核心：板面生成、标记格与线判定。
// 本包不持有任何状态，也不做任何 IO，可在任意时刻安全调用。
package bingo

import (
	"fmt"
	"math/rand"
	"strconv"
)

// DefaultPoolSize 是板面取数池的默认上界（1..DefaultPoolSize）。
const DefaultPoolSize = 25

// Generate 生成一块新的宾果板：从 1..poolSize 中随机抽取 25 个互不重复的
// 数字并打乱顺序，以字符串标签返回。poolSize 小于 25 时返回错误。
// 结果的持久化由调用方负责。
func Generate(poolSize int) ([]string, error) {
	if poolSize < BoardSize {
		return nil, fmt.Errorf("bingo: pool size %d is smaller than board size %d", poolSize, BoardSize)
	}
	pool := make([]int, poolSize)
	for i := range pool {
		pool[i] = i + 1
	}
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	cells := make([]string, BoardSize)
	for i := 0; i < BoardSize; i++ {
		cells[i] = strconv.Itoa(pool[i])
	}
	return cells, nil
}
