package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/jhillyerd/enmime"
)

// EmailParser RFC 822邮件解析器
// 返回text/plain正文，没有纯文本部分时使用HTML正文的文本
// 传输编码与字符集由enmime统一解码为UTF-8
type EmailParser struct{}

// NewEmailParser 创建邮件解析器
func NewEmailParser() Parser {
	return &EmailParser{}
}

// Parse 解析邮件文件
func (p *EmailParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析邮件正文
func (p *EmailParser) ParseReader(r io.Reader, filename string) (string, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return "", fmt.Errorf("failed to read email: %w", err)
	}

	if text := strings.TrimSpace(env.Text); text != "" {
		return text, nil
	}
	if strings.TrimSpace(env.HTML) != "" {
		return NewHTMLParser().ParseReader(strings.NewReader(env.HTML), filename)
	}
	return "", fmt.Errorf("email has no text body: %w", ErrEmptyContent)
}
