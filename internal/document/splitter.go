package document

import (
	"strings"
	"unicode/utf8"
)

const (
	// ClauseSeparator 条款分隔符（空行）
	ClauseSeparator = "\n\n"

	// DefaultSparseMinLength 稀疏检索使用的最小条款长度
	DefaultSparseMinLength = 100
	// DefaultDenseMinLength 稠密检索使用的最小条款长度
	DefaultDenseMinLength = 512
)

// Clause 文档中的一个条款
// Text 已去除首尾空白，Position 为条款在保留结果中的序号（从0开始）
type Clause struct {
	Text     string // 条款文本
	Position int    // 条款序号
}

// Splitter 条款分段器接口
type Splitter interface {
	// Split 将全文切分为条款
	Split(text string) []Clause
}

// ClauseSplitter 按空行切分条款，丢弃过短的片段
// 不做重叠、合并或二次切分
type ClauseSplitter struct {
	minLength int // 最小条款长度（按字符计）
}

// NewClauseSplitter 创建条款分段器
// minLength小于等于0时保留所有非空片段
func NewClauseSplitter(minLength int) *ClauseSplitter {
	if minLength < 0 {
		minLength = 0
	}
	return &ClauseSplitter{minLength: minLength}
}

// MinLength 返回最小条款长度
func (s *ClauseSplitter) MinLength() int {
	return s.minLength
}

// Split 切分文本
func (s *ClauseSplitter) Split(text string) []Clause {
	return SplitClauses(text, s.minLength)
}

// SplitClauses 按空行切分文本，去除首尾空白并保留长度不小于minLength的片段
// 结果保持原文顺序；用ClauseSeparator重新拼接后再次切分得到相同结果
func SplitClauses(text string, minLength int) []Clause {
	if text == "" {
		return []Clause{}
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	segments := strings.Split(text, ClauseSeparator)

	clauses := make([]Clause, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if utf8.RuneCountInString(seg) < minLength {
			continue
		}
		clauses = append(clauses, Clause{
			Text:     seg,
			Position: len(clauses),
		})
	}

	return clauses
}

// JoinClauses 用ClauseSeparator拼接条款文本
func JoinClauses(clauses []Clause) string {
	texts := make([]string, len(clauses))
	for i, c := range clauses {
		texts[i] = c.Text
	}
	return strings.Join(texts, ClauseSeparator)
}

// Texts 返回条款文本列表
func Texts(clauses []Clause) []string {
	texts := make([]string, len(clauses))
	for i, c := range clauses {
		texts[i] = c.Text
	}
	return texts
}
