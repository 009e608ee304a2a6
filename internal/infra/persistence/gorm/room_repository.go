package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByCode 实现根据房间码查找房间
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return &room, nil
}

// Save 实现保存房间信息（创建或更新）。
// 房间码的唯一约束冲突映射为 ErrDuplicateEntry，交由服务层重试，
// 同一瞬间生成相同房间码时绝不覆盖已有房间。
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Save(room).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (id: %d, code: %s): %w", room.ID, room.Code, err)
	}
	return nil
}

// UpdateFields 实现对指定房间的部分字段更新
func (r *GormRoomRepository) UpdateFields(ctx context.Context, code string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.Room{}).Where("code = ?", code).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("gorm: update room '%s' fields: %w", code, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// Delete 实现删除房间记录
func (r *GormRoomRepository) Delete(ctx context.Context, code string) error {
	err := r.db.WithContext(ctx).Where("code = ?", code).Delete(&domain.Room{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete room '%s': %w", code, err)
	}
	return nil
}

// ListWaiting 实现列出所有等待中的房间
func (r *GormRoomRepository) ListWaiting(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusWaiting).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list waiting rooms: %w", err)
	}
	return rooms, nil
}

// ListActiveCodes 实现列出所有仍存在房间的房间码。
// 已结束的房间也要列进来: 玩家弃局后剩下的 finished 房间
// 只能靠回收任务逐个清走
func (r *GormRoomRepository) ListActiveCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Pluck("code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list active room codes: %w", err)
	}
	return codes, nil
}

// IsCodeExists 实现检查房间码是否已被占用
func (r *GormRoomRepository) IsCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code '%s': %w", code, err)
	}
	return count > 0, nil
}
