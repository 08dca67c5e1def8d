// Package hash 提供基于 bcrypt 的密码哈希与校验。
package hash

import "golang.org/x/crypto/bcrypt"

// HashPassword 使用随机盐和默认 cost 生成 bcrypt 哈希。
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash 比较明文密码与哈希是否匹配。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
