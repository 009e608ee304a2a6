package bingo

// BoardSize 是宾果板的格子总数 (5x5，行优先)。
const BoardSize = 25

// rowLength 是每行/每列/每条对角线的格子数。
const rowLength = 5

// MarkGrid 是 25 格的布尔标记网格（行优先），记录哪些格子已被揭示。
type MarkGrid [BoardSize]bool

// Line 是一条候选线的 5 个格子下标。
type Line [rowLength]int

// candidateLines 是固定的 12 条候选线：5 行、5 列、2 条对角线。
var candidateLines = buildCandidateLines()

func buildCandidateLines() []Line {
	lines := make([]Line, 0, 12)
	for i := 0; i < rowLength; i++ {
		lines = append(lines, Line{5 * i, 5*i + 1, 5*i + 2, 5*i + 3, 5*i + 4})
	}
	for i := 0; i < rowLength; i++ {
		lines = append(lines, Line{i, i + 5, i + 10, i + 15, i + 20})
	}
	lines = append(lines, Line{0, 6, 12, 18, 24})
	lines = append(lines, Line{4, 8, 12, 16, 20})
	return lines
}

// Evaluate 计算标记网格中已完成的线。
// 一条线完成当且仅当其 5 个成员格全部为 true。
// 纯函数、幂等，可在任意时刻调用，不限于标记变更之后。
func Evaluate(grid MarkGrid) (completed []Line, count int) {
	for _, line := range candidateLines {
		done := true
		for _, idx := range line {
			if !grid[idx] {
				done = false
				break
			}
		}
		if done {
			completed = append(completed, line)
		}
	}
	return completed, len(completed)
}

// Mark 将所有内容等于 value 的格子置为已标记，返回是否有任何格子状态发生变化。
// 扫描全部 25 格，值相同的格子都会被置位；
// 重复应用同一个值是空操作（布尔或），推送与轮询双通道投递不会重复计数。
func Mark(board []string, grid *MarkGrid, value string) bool {
	if value == "" {
		return false
	}
	changed := false
	for i, cell := range board {
		if i >= BoardSize {
			break
		}
		if cell == value && !grid[i] {
			grid[i] = true
			changed = true
		}
	}
	return changed
}
