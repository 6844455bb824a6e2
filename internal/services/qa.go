package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/clause-rag/internal/document"
	"github.com/fyerfyer/clause-rag/internal/llm"
	"github.com/fyerfyer/clause-rag/internal/retrieval"
)

// 问答流程错误定义
var (
	ErrNoQuestions     = errors.New("at least one question is required")
	ErrEmptyQuestion   = errors.New("questions cannot contain empty strings")
	ErrUnknownStrategy = errors.New("retrieval strategy is not available")
	ErrNoDocuments     = errors.New("at least one document is required")
)

// QAService 问答流程编排
// 每次调用为文档构建独立索引，再逐个问题检索并生成答案
type QAService struct {
	strategies      map[string]retrieval.Strategy // 可用检索策略
	defaultStrategy string                        // 默认策略名称
	answerer        *llm.Answerer                 // 回答生成器
	loader          *document.Loader              // 文档加载器
	logger          *logrus.Logger                // 日志记录器
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// NewQAService 创建问答服务实例，strategy为默认检索策略
func NewQAService(strategy retrieval.Strategy, answerer *llm.Answerer, opts ...QAOption) *QAService {
	service := &QAService{
		strategies:      map[string]retrieval.Strategy{strategy.Name(): strategy},
		defaultStrategy: strategy.Name(),
		answerer:        answerer,
		logger:          logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithStrategy 注册额外的检索策略，请求可以按名称选择
func WithStrategy(strategy retrieval.Strategy) QAOption {
	return func(s *QAService) {
		if strategy != nil {
			s.strategies[strategy.Name()] = strategy
		}
	}
}

// WithLoader 设置文档加载器
func WithLoader(loader *document.Loader) QAOption {
	return func(s *QAService) {
		s.loader = loader
	}
}

// WithQALogger 设置日志记录器
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Strategies 返回可用策略名称
func (s *QAService) Strategies() []string {
	names := make([]string, 0, len(s.strategies))
	for name := range s.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultStrategy 返回默认策略名称
func (s *QAService) DefaultStrategy() string {
	return s.defaultStrategy
}

// Strategy 按名称返回策略，名称为空时返回默认策略
func (s *QAService) Strategy(name string) (retrieval.Strategy, error) {
	if name == "" {
		name = s.defaultStrategy
	}
	strategy, ok := s.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return strategy, nil
}

// Loader 返回文档加载器，未配置时为nil
func (s *QAService) Loader() *document.Loader {
	return s.loader
}

// Request 一次问答请求
type Request struct {
	Documents []string // 文档URL
	Questions []string // 问题列表
	TopK      int      // 检索条数，0表示使用策略默认值
	Strategy  string   // 检索策略，空表示默认策略
}

// Result 一次问答的结果
type Result struct {
	Answers     []string      // 与问题一一对应的答案
	Strategy    string        // 实际使用的策略
	ClauseCount int           // 建立索引的条款数
	Duration    time.Duration // 总耗时
}

// Run 下载并解析文档后执行问答流程
func (s *QAService) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Documents) == 0 {
		return nil, ErrNoDocuments
	}
	if s.loader == nil {
		return nil, errors.New("document loader is not configured")
	}
	if err := validateQuestions(req.Questions); err != nil {
		return nil, err
	}

	start := time.Now()
	fullText, err := s.loader.Load(ctx, req.Documents)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"documents": len(req.Documents),
		"chars":     len(fullText),
		"latency":   time.Since(start).String(),
	}).Info("Documents loaded")

	return s.ProcessWith(ctx, req.Strategy, fullText, req.Questions, req.TopK)
}

// Process 使用默认策略回答问题，答案与问题数量和顺序一致
func (s *QAService) Process(ctx context.Context, fullText string, questions []string, topK int) ([]string, error) {
	result, err := s.ProcessWith(ctx, "", fullText, questions, topK)
	if err != nil {
		return nil, err
	}
	return result.Answers, nil
}

// ProcessWith 使用指定策略回答问题
// 任一步骤失败则整批失败，不返回部分结果
func (s *QAService) ProcessWith(ctx context.Context, strategyName, fullText string, questions []string, topK int) (*Result, error) {
	if err := validateQuestions(questions); err != nil {
		return nil, err
	}
	strategy, err := s.Strategy(strategyName)
	if err != nil {
		return nil, err
	}
	if topK < 0 {
		return nil, retrieval.ErrInvalidTopK
	}
	if topK == 0 {
		topK = strategy.DefaultTopK()
	}

	start := time.Now()
	index, err := s.build(ctx, strategy, fullText)
	if err != nil {
		return nil, err
	}
	defer index.Close()

	logger := s.logger.WithFields(logrus.Fields{
		"strategy":  strategy.Name(),
		"clauses":   index.Len(),
		"questions": len(questions),
		"top_k":     topK,
	})
	logger.Debug("Index built")

	answers := make([]string, 0, len(questions))
	for i, question := range questions {
		matches, err := index.Search(ctx, question, topK)
		if err != nil {
			logger.WithField("question_index", i).WithError(err).Error("Retrieval failed")
			return nil, fmt.Errorf("failed to retrieve clauses for question %d: %w", i+1, err)
		}

		answer, err := s.answerer.Answer(ctx, question, retrieval.Contexts(matches))
		if err != nil {
			logger.WithField("question_index", i).WithError(err).Error("Answer generation failed")
			return nil, fmt.Errorf("failed to answer question %d: %w", i+1, err)
		}
		answers = append(answers, answer)
	}

	duration := time.Since(start)
	logger.WithField("latency", duration.String()).Info("Questions answered")

	return &Result{
		Answers:     answers,
		Strategy:    strategy.Name(),
		ClauseCount: index.Len(),
		Duration:    duration,
	}, nil
}

// Search 只做检索，返回每条命中的条款与距离
func (s *QAService) Search(ctx context.Context, strategyName, fullText, query string, topK int) ([]retrieval.Match, error) {
	strategy, err := s.Strategy(strategyName)
	if err != nil {
		return nil, err
	}
	if topK == 0 {
		topK = strategy.DefaultTopK()
	}

	index, err := s.build(ctx, strategy, fullText)
	if err != nil {
		return nil, err
	}
	defer index.Close()

	return index.Search(ctx, query, topK)
}

// build 分段并构建索引，没有可用条款时快速失败
func (s *QAService) build(ctx context.Context, strategy retrieval.Strategy, fullText string) (retrieval.Index, error) {
	clauses := strategy.Splitter().Split(fullText)
	if len(clauses) == 0 {
		s.logger.WithFields(logrus.Fields{
			"strategy":   strategy.Name(),
			"min_length": strategy.Splitter().MinLength(),
			"chars":      len(fullText),
		}).Warn("Document produced no clauses")
		return nil, retrieval.ErrEmptyCorpus
	}

	index, err := strategy.Build(ctx, clauses)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s index: %w", strategy.Name(), err)
	}
	return index, nil
}

func validateQuestions(questions []string) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	for _, q := range questions {
		if strings.TrimSpace(q) == "" {
			return ErrEmptyQuestion
		}
	}
	return nil
}
