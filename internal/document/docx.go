package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/unidoc/unioffice/common/license"
	uodocument "github.com/unidoc/unioffice/document"
)

// ConfigureLicense 设置unioffice的计量许可证密钥
// 未设置时DOCX解析回退到直接读取word/document.xml
func ConfigureLicense(key string) error {
	if key == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("failed to set unioffice license: %w", err)
	}
	return nil
}

// DOCXParser Word文档解析器
// 输出非空段落，段落之间以单个换行分隔
type DOCXParser struct{}

// NewDOCXParser 创建DOCX解析器
func NewDOCXParser() Parser {
	return &DOCXParser{}
}

// Parse 解析DOCX文件
func (p *DOCXParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析DOCX内容
func (p *DOCXParser) ParseReader(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read docx content: %w", err)
	}

	paragraphs, err := readParagraphs(data)
	if err == nil {
		if text := joinNonEmpty(paragraphs); text != "" {
			return text, nil
		}
	}

	// unioffice未授权或无法识别时直接解析XML
	paragraphs, err = readParagraphsXML(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	return joinNonEmpty(paragraphs), nil
}

// readParagraphs 使用unioffice读取段落文本
func readParagraphs(data []byte) ([]string, error) {
	doc, err := uodocument.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	paragraphs := make([]string, 0, len(doc.Paragraphs()))
	for _, para := range doc.Paragraphs() {
		var sb strings.Builder
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		paragraphs = append(paragraphs, sb.String())
	}
	return paragraphs, nil
}

// readParagraphsXML 从word/document.xml中按w:p读取w:t文本
func readParagraphsXML(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a docx archive: %w", err)
	}

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body, err = f.Open()
			if err != nil {
				return nil, err
			}
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("word/document.xml not found")
	}
	defer body.Close()

	var (
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
	)

	decoder := xml.NewDecoder(body)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				current.Reset()
			case "t":
				inText = true
			case "tab":
				if inPara {
					current.WriteString("\t")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				paragraphs = append(paragraphs, current.String())
				inPara = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inPara && inText {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}

// joinNonEmpty 丢弃空白段落后以换行拼接
func joinNonEmpty(paragraphs []string) string {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
