// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import "errors"

var (
	// ErrNotFound 表示查询的记录不存在。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 表示写入违反了唯一约束。
	ErrDuplicate = errors.New("duplicate record")
)
