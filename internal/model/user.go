package model

// UserRole 由身份服务签发的令牌携带，本服务不保存用户表
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
