package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSON 通用结构化字段（地址、银行信息、扩展元数据）
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}
	if len(raw) == 0 {
		*j = make(JSON)
		return nil
	}
	return json.Unmarshal(raw, j)
}

// Merge 返回合并后的新对象，patch 中的键覆盖原有键
func (j JSON) Merge(patch JSON) JSON {
	result := make(JSON, len(j)+len(patch))
	for k, v := range j {
		result[k] = v
	}
	for k, v := range patch {
		result[k] = v
	}
	return result
}
