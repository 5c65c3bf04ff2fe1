// Package model 定义制品、版本与文件记录的数据库模型.
package model

import (
	"time"
)

// Artifact 制品模型. 通过全局唯一的分享令牌公开寻址，
// 删除是软删除并级联到所有版本与文件记录.
type Artifact struct {
	ID      string `gorm:"primaryKey;size:64" json:"id"`
	OwnerID string `gorm:"size:255;index"     json:"owner_id"`
	// ShareToken 公开分享令牌，制品生命周期内不变
	ShareToken  string `gorm:"size:64;uniqueIndex" json:"share_token"`
	Title       string `gorm:"size:512"            json:"title"`
	Description string `gorm:"type:text"           json:"description,omitempty"`

	Lifecycle

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
