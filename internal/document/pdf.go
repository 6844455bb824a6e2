package document

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser PDF文档解析器
// 优先使用ledongthuc/pdf提取纯文本，失败时回退到pdfcpu导出内容流并只保留文本显示操作数
type PDFParser struct{}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse 解析PDF文件并提取其文本内容
func (p *PDFParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析PDF内容
func (p *PDFParser) ParseReader(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf content: %w", err)
	}

	text, err := extractPlainText(data)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	// 回退到pdfcpu
	text, fallbackErr := extractContentStreams(data)
	if fallbackErr != nil {
		if err != nil {
			return "", fmt.Errorf("failed to extract text from PDF: %v; fallback: %w", err, fallbackErr)
		}
		return "", fmt.Errorf("failed to extract text from PDF: %w", fallbackErr)
	}
	return text, nil
}

// extractPlainText 使用ledongthuc/pdf按页顺序提取文本
func extractPlainText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}

// extractContentStreams 使用pdfcpu导出页面内容后拼接
func extractContentStreams(data []byte) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inFile := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(inFile, data, 0600); err != nil {
		return "", fmt.Errorf("failed to stage pdf: %w", err)
	}

	outDir := filepath.Join(tmpDir, "out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(inFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("pdfcpu extraction failed: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted text dir: %w", err)
	}

	// 按文件名排序（页码顺序）
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	pages := make([]string, 0, len(entries))
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			continue
		}
		if text := extractShownText(content); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", ErrEmptyContent
	}
	return strings.Join(pages, "\n"), nil
}

// extractShownText 从页面内容流中取出文本显示操作符(Tj TJ ' ")的字符串操作数
// 绘图等其他操作符的操作数全部丢弃
func extractShownText(stream []byte) string {
	var (
		out     strings.Builder
		line    strings.Builder
		pending []string
	)
	flushLine := func() {
		if text := strings.TrimSpace(line.String()); text != "" {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(text)
		}
		line.Reset()
	}

	s := contentScanner{data: stream}
	for {
		tok, kind := s.next()
		switch kind {
		case tokenEOF:
			flushLine()
			return out.String()
		case tokenString:
			pending = append(pending, tok)
		case tokenNumber:
			// TJ数组中较大的负间距视为词间空格
			if s.depth > 0 && len(pending) > 0 {
				if v, err := strconv.ParseFloat(tok, 64); err == nil && v <= -200 {
					pending = append(pending, " ")
				}
			}
		case tokenOperator:
			switch tok {
			case "Tj", "TJ":
				line.WriteString(strings.Join(pending, ""))
			case "'", "\"":
				flushLine()
				line.WriteString(strings.Join(pending, ""))
			case "T*", "Td", "TD", "ET":
				flushLine()
			case "ID":
				s.skipInlineImage()
			}
			pending = pending[:0]
		}
	}
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenString
	tokenNumber
	tokenOperator
	tokenOther
)

// contentScanner PDF内容流词法扫描
type contentScanner struct {
	data  []byte
	pos   int
	depth int // 数组嵌套深度
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isPDFDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (s *contentScanner) next() (string, tokenKind) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isPDFSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			s.pos++
			return s.literal(), tokenString
		case c == '<':
			if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
				s.pos += 2
				return "<<", tokenOther
			}
			s.pos++
			return s.hexString(), tokenString
		case c == '>':
			s.pos++
			if s.pos < len(s.data) && s.data[s.pos] == '>' {
				s.pos++
			}
			return ">>", tokenOther
		case c == '[':
			s.pos++
			s.depth++
			return "[", tokenOther
		case c == ']':
			s.pos++
			if s.depth > 0 {
				s.depth--
			}
			return "]", tokenOther
		case c == '/':
			s.pos++
			return s.regular(), tokenOther
		case c == '{' || c == '}' || c == ')':
			s.pos++
		default:
			tok := s.regular()
			if tok == "" {
				s.pos++
				continue
			}
			if strings.IndexByte("+-.0123456789", tok[0]) >= 0 {
				return tok, tokenNumber
			}
			return tok, tokenOperator
		}
	}
	return "", tokenEOF
}

func (s *contentScanner) regular() string {
	start := s.pos
	for s.pos < len(s.data) && !isPDFSpace(s.data[s.pos]) && !isPDFDelimiter(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal 读取括号字符串，处理转义与嵌套括号
func (s *contentScanner) literal() string {
	var b strings.Builder
	nesting := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			nesting++
			b.WriteByte(c)
		case ')':
			nesting--
			if nesting == 0 {
				return b.String()
			}
			b.WriteByte(c)
		case '\\':
			if s.pos >= len(s.data) {
				return b.String()
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r':
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						v = v*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					b.WriteRune(rune(v & 0xff))
				} else {
					b.WriteByte(e)
				}
			}
		default:
			b.WriteRune(rune(c))
		}
	}
	return b.String()
}

// hexString 读取十六进制字符串，仅保留可打印字符
func (s *contentScanner) hexString() string {
	start := s.pos
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		s.pos++
	}
	digits := strings.Map(func(r rune) rune {
		if isPDFSpace(byte(r)) {
			return -1
		}
		return r
	}, string(s.data[start:s.pos]))
	if s.pos < len(s.data) {
		s.pos++
	}
	if len(digits)%2 == 1 {
		digits += "0"
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, latin1(raw))
}

// skipInlineImage 跳过BI/ID与EI之间的内联图像数据
func (s *contentScanner) skipInlineImage() {
	for s.pos+2 < len(s.data) {
		if isPDFSpace(s.data[s.pos]) && s.data[s.pos+1] == 'E' && s.data[s.pos+2] == 'I' &&
			(s.pos+3 == len(s.data) || isPDFSpace(s.data[s.pos+3])) {
			s.pos += 3
			return
		}
		s.pos++
	}
	s.pos = len(s.data)
}

func latin1(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, c := range raw {
		runes[i] = rune(c)
	}
	return string(runes)
}
