package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User 对应 MongoDB 中 Users 集合的一条文档。
// Password 保存 bcrypt 哈希，永远不会序列化到 JSON。
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	CreatedAt time.Time          `bson:"created_at" json:"-"`
}

// UserSummary 是对外暴露的用户信息。
type UserSummary struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Summary 返回不含密码哈希的用户信息。
func (u *User) Summary() UserSummary {
	return UserSummary{Username: u.Username, Email: u.Email}
}
