package session

import (
	"sync"

	"github.com/you-joon/bingoruzzol/internal/bingo"
	"github.com/you-joon/bingoruzzol/internal/domain"
)

// Reconciler 持有一条连接的面板视图: 玩家的 25 格面板与标记网格。
// 推送事件与轮询快照共用同一个 apply 入口，标记是布尔置位，
// 因此同一选格经两条通道重复到达不会产生第二次状态变化。
type Reconciler struct {
	mu    sync.Mutex
	cells []string
	grid  bingo.MarkGrid
}

// NewReconciler 以玩家面板初始化一个空网格的视图。
func NewReconciler(cells []string) *Reconciler {
	c := make([]string, len(cells))
	copy(c, cells)
	return &Reconciler{cells: c}
}

// ApplyValue 把一个共享选格值对账到本地网格。
// 面板上存在该值且尚未标记时返回 true（本次产生了状态变化），
// 其余情况（值不在面板上、已标记、空值）均为无害的空操作。
func (r *Reconciler) ApplyValue(value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bingo.Mark(r.cells, &r.grid, value)
}

// ApplyEvent 把一条 pick 事件对账到本地网格。非 pick 事件直接忽略。
func (r *Reconciler) ApplyEvent(event domain.ChangeEvent) bool {
	if event.Type != domain.EventPick {
		return false
	}
	payload, err := event.ParsePickPayload()
	if err != nil {
		return false
	}
	return r.ApplyValue(payload.CellValue)
}

// ApplyRoomSignal 把轮询到的房间最近选格（last_cell_value）对账进来。
// 房间记录只保存最近一次选格，这是轮询客户端的追赶信号:
// 漏掉的更早选格由该值的持续轮询逐步补齐。
// 房间已重置回 waiting 时改为清空本地标记: 服务端的板面与完成状态
// 都已清除，残留的标记不得带进下一局。
func (r *Reconciler) ApplyRoomSignal(room *domain.Room) bool {
	if room == nil {
		return false
	}
	if room.Status == domain.StatusWaiting {
		return r.clearMarks()
	}
	if !room.HasPick() {
		return false
	}
	return r.ApplyValue(*room.LastCellValue)
}

// clearMarks 清空标记网格，返回是否有任何标记被清除。
func (r *Reconciler) clearMarks() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := false
	for _, marked := range r.grid {
		if marked {
			changed = true
			break
		}
	}
	r.grid = bingo.MarkGrid{}
	return changed
}

// Grid 返回当前标记网格的副本，用于连线评估与提交校验。
func (r *Reconciler) Grid() bingo.MarkGrid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grid
}

// Cells 返回面板格子值的副本。
func (r *Reconciler) Cells() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := make([]string, len(r.cells))
	copy(c, r.cells)
	return c
}

// Marked 报告指定下标是否已标记。越界视为未标记。
func (r *Reconciler) Marked(index int) bool {
	if index < 0 || index >= bingo.BoardSize {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grid[index]
}

// Reset 清空标记网格并替换面板（游戏重开后的新面板）。
func (r *Reconciler) Reset(cells []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cells = make([]string, len(cells))
	copy(r.cells, cells)
	r.grid = bingo.MarkGrid{}
}
