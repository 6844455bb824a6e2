package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fyerfyer/clause-rag/internal/document"
)

// DefaultMaxFeatures TF-IDF默认词表上限
const DefaultMaxFeatures = 1000

// 连续的字母、数字或下划线，长度不少于2
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokenize 小写化后切分词项并去除英文停用词
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if utf8.RuneCountInString(tok) < 2 {
			continue
		}
		if _, stop := englishStopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// SparseOption 稀疏策略选项
type SparseOption func(*SparseStrategy)

// WithSparseMinLength 设置最小条款长度
func WithSparseMinLength(n int) SparseOption {
	return func(s *SparseStrategy) {
		if n > 0 {
			s.splitter = document.NewClauseSplitter(n)
		}
	}
}

// WithSparseTopK 设置默认检索条数
func WithSparseTopK(k int) SparseOption {
	return func(s *SparseStrategy) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithMaxFeatures 设置词表上限，0表示不限制
func WithMaxFeatures(n int) SparseOption {
	return func(s *SparseStrategy) {
		if n >= 0 {
			s.maxFeatures = n
		}
	}
}

// SparseStrategy TF-IDF + 余弦相似度检索
// 单字词项，去停用词，次线性词频，行向量L2归一化
type SparseStrategy struct {
	splitter    *document.ClauseSplitter
	topK        int
	maxFeatures int
}

// NewSparseStrategy 创建稀疏检索策略
func NewSparseStrategy(opts ...SparseOption) *SparseStrategy {
	s := &SparseStrategy{
		splitter:    document.NewClauseSplitter(document.DefaultSparseMinLength),
		topK:        1,
		maxFeatures: DefaultMaxFeatures,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name 返回策略名称
func (s *SparseStrategy) Name() string { return StrategySparse }

// Splitter 返回条款分段器
func (s *SparseStrategy) Splitter() *document.ClauseSplitter { return s.splitter }

// DefaultTopK 返回默认检索条数
func (s *SparseStrategy) DefaultTopK() int { return s.topK }

// Build 在条款集合上拟合TF-IDF并生成行向量
func (s *SparseStrategy) Build(ctx context.Context, clauses []document.Clause) (Index, error) {
	if len(clauses) == 0 {
		return nil, ErrEmptyCorpus
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([]map[string]int, len(clauses))
	docFreq := make(map[string]int)
	totalFreq := make(map[string]int)
	for i, c := range clauses {
		counts := make(map[string]int)
		for _, tok := range Tokenize(c.Text) {
			counts[tok]++
		}
		for term, n := range counts {
			docFreq[term]++
			totalFreq[term] += n
		}
		docs[i] = counts
	}

	vocab := selectVocabulary(totalFreq, s.maxFeatures)
	n := float64(len(clauses))
	idf := make([]float64, len(vocab))
	for term, col := range vocab {
		idf[col] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	idx := &SparseIndex{
		clauses: clauses,
		vocab:   vocab,
		idf:     idf,
		rows:    make([]sparseVector, len(clauses)),
	}
	for i, counts := range docs {
		idx.rows[i] = idx.weigh(counts)
	}
	return idx, nil
}

// selectVocabulary 按语料总词频选取词表，频次相同按字典序，列号按字典序分配
func selectVocabulary(totalFreq map[string]int, maxFeatures int) map[string]int {
	terms := make([]string, 0, len(totalFreq))
	for term := range totalFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	if maxFeatures > 0 && len(terms) > maxFeatures {
		sort.SliceStable(terms, func(i, j int) bool {
			return totalFreq[terms[i]] > totalFreq[terms[j]]
		})
		terms = terms[:maxFeatures]
		sort.Strings(terms)
	}

	vocab := make(map[string]int, len(terms))
	for i, term := range terms {
		vocab[term] = i
	}
	return vocab
}

// sparseVector 稀疏向量，列号升序
type sparseVector struct {
	cols []int
	vals []float64
}

func (v sparseVector) dot(other sparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.cols) && j < len(other.cols) {
		switch {
		case v.cols[i] == other.cols[j]:
			sum += v.vals[i] * other.vals[j]
			i++
			j++
		case v.cols[i] < other.cols[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// SparseIndex 单个文档的TF-IDF矩阵
type SparseIndex struct {
	clauses []document.Clause
	vocab   map[string]int
	idf     []float64
	rows    []sparseVector
}

// weigh 计算次线性词频乘以IDF并L2归一化，词表外的词项被忽略
func (idx *SparseIndex) weigh(counts map[string]int) sparseVector {
	var vec sparseVector
	for term, n := range counts {
		if col, ok := idx.vocab[term]; ok && n > 0 {
			vec.cols = append(vec.cols, col)
		}
	}
	sort.Ints(vec.cols)

	byCol := make(map[int]int, len(counts))
	for term, n := range counts {
		if col, ok := idx.vocab[term]; ok {
			byCol[col] = n
		}
	}

	vec.vals = make([]float64, len(vec.cols))
	var norm float64
	for i, col := range vec.cols {
		w := (1 + math.Log(float64(byCol[col]))) * idx.idf[col]
		vec.vals[i] = w
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec.vals {
		vec.vals[i] /= norm
	}
	return vec
}

// Vocabulary 返回词表大小
func (idx *SparseIndex) Vocabulary() int { return len(idx.vocab) }

// Clauses 返回条款
func (idx *SparseIndex) Clauses() []document.Clause { return idx.clauses }

// Len 返回条款数量
func (idx *SparseIndex) Len() int { return len(idx.clauses) }

// Close 稀疏索引没有外部资源
func (idx *SparseIndex) Close() error { return nil }

// Search 计算查询与每个条款的余弦相似度，距离为1-相似度
// 查询不含任何词表内词项时所有条款距离为1
func (idx *SparseIndex) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if err := validateSearch(query, topK, len(idx.rows)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, tok := range Tokenize(query) {
		counts[tok]++
	}
	q := idx.weigh(counts)

	matches := make([]Match, len(idx.rows))
	for i, row := range idx.rows {
		distance := 1 - q.dot(row)
		matches[i] = Match{
			Clause:   idx.clauses[i],
			Distance: float32(math.Max(0, math.Min(2, distance))),
		}
	}

	// 距离相同时序号小的条款在前
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], nil
}
