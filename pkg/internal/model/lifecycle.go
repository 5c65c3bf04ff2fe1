package model

import "time"

// Lifecycle 软删除三元组：标志位 + 删除时间 + 操作者.
// 嵌入到各实体中，级联删除通过 MarkDeleted 的幂等语义统一处理：
// 已删除的行保留原始删除信息，不被二次覆盖.
type Lifecycle struct {
	IsDeleted bool       `gorm:"index;default:false" json:"is_deleted"`
	DeletedAt *time.Time `gorm:"index"               json:"deleted_at,omitempty"`
	DeletedBy string     `gorm:"size:255"            json:"deleted_by,omitempty"`
}

// Active 是否处于活跃（未删除）状态.
func (l *Lifecycle) Active() bool {
	return !l.IsDeleted
}

// MarkDeleted 置为已删除并记录时间与操作者.
// 已删除的行是 no-op，返回 false，原始删除信息保持不变.
func (l *Lifecycle) MarkDeleted(at time.Time, by string) bool {
	if l.IsDeleted {
		return false
	}

	l.IsDeleted = true
	l.DeletedAt = &at
	l.DeletedBy = by

	return true
}
