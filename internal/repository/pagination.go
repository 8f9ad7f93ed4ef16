package repository

import (
	"strings"

	"gorm.io/gorm"
)

// applyPagination 应用分页参数，统一处理非法页码与偏移量。
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}
	return query.Limit(pageSize).Offset(offset)
}

// resolveOrderBy 按白名单解析排序字段，非法值回退到默认排序。
func resolveOrderBy(sortBy, sortOrder string, allowed map[string]string, fallback string) string {
	column, ok := allowed[strings.ToLower(strings.TrimSpace(sortBy))]
	if !ok {
		return fallback
	}
	direction := "desc"
	if strings.EqualFold(strings.TrimSpace(sortOrder), "asc") {
		direction = "asc"
	}
	return column + " " + direction + ", id " + direction
}
