package model

import (
	"encoding/json"
	"errors"
)

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 返回分页偏移量
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// DocumentURLs 文档地址列表
// JSON中既可以是单个字符串，也可以是字符串数组
type DocumentURLs []string

// UnmarshalJSON 兼容字符串与数组两种写法
func (d *DocumentURLs) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*d = DocumentURLs{}
		} else {
			*d = DocumentURLs{single}
		}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("documents must be a URL or a list of URLs")
	}
	*d = list
	return nil
}

// RunRequest 文档问答请求
type RunRequest struct {
	Documents DocumentURLs `json:"documents" binding:"required,min=1,dive,notblank"` // 文档地址
	Questions []string     `json:"questions" binding:"required,min=1,dive,notblank"` // 问题列表
	TopK      int          `json:"top_k" binding:"omitempty,min=1,max=50"`           // 可选的检索条数
	Strategy  string       `json:"strategy" binding:"omitempty,oneof=sparse dense"`  // 可选的检索策略
}

// RunIDRequest 运行ID路径参数
type RunIDRequest struct {
	ID string `uri:"id" binding:"required"` // 运行ID
}

// RunListRequest 运行列表请求
type RunListRequest struct {
	PaginationRequest
	Status string `form:"status" json:"status" binding:"omitempty,oneof=pending processing completed failed"` // 运行状态
}
