package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Timestamps 各表共用的时间列，删除为软删除
type Timestamps struct {
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// UUIDBase 测验、题目和答题记录使用字符串主键，客户端直接引用
// swagger:model
type UUIDBase struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Timestamps
}

// SerialBase 只在服务端内部查询的表使用自增主键
type SerialBase struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamps
}

func (b *UUIDBase) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = GenerateUUID()
	}
	return nil
}

// GenerateUUID 优先使用按时间递增的 v7，插入时主键索引更紧凑
func GenerateUUID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
