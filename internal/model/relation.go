package model

// Relation 学生与教师/管理员的关系，只用来查学号
// swagger:model Relation
type Relation struct {
	SerialBase

	StudentID  string `gorm:"size:64;index:idx_relation_pair" json:"studentId"`
	OwnerID    string `gorm:"size:64;index:idx_relation_pair" json:"ownerId"`
	RollNumber string `gorm:"size:50" json:"rollNumber"`
}

func (Relation) TableName() string {
	return "relations"
}
