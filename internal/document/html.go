package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockSelector 作为独立段落输出的块级元素
const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, pre, blockquote, td, th, dt, dd"

// HTMLParser HTML文档解析器
// 每个块级元素输出为一个段落，段落之间以空行分隔
type HTMLParser struct{}

// NewHTMLParser 创建HTML解析器
func NewHTMLParser() Parser {
	return &HTMLParser{}
}

// Parse 解析HTML文件
func (p *HTMLParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析HTML内容
func (p *HTMLParser) ParseReader(r io.Reader, filename string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	return textFromDocument(doc), nil
}

// textFromDocument 提取文档中的段落文本
func textFromDocument(doc *goquery.Document) string {
	doc.Find("script, style, noscript, head").Remove()

	var paragraphs []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// 含有嵌套块级元素时由子元素输出
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if text := normalizeWhitespace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		return normalizeWhitespace(doc.Find("body").Text())
	}
	return strings.Join(paragraphs, ClauseSeparator)
}

// normalizeWhitespace 将连续空白折叠为单个空格
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
