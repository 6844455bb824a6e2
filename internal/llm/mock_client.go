package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient 基于testify/mock的大模型客户端
// 可变参数选项作为一个整体切片参与匹配
type MockClient struct {
	mock.Mock
}

// MockClient_Expecter 提供类型化的期望设置
type MockClient_Expecter struct {
	mock *mock.Mock
}

// NewMockClient 创建模拟客户端，测试结束时校验期望调用
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// EXPECT 返回期望设置器
func (m *MockClient) EXPECT() *MockClient_Expecter {
	return &MockClient_Expecter{mock: &m.Mock}
}

// Generate 模拟文本生成
func (m *MockClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	args := m.Called(ctx, prompt, options)
	resp, _ := args.Get(0).(*Response)
	return resp, args.Error(1)
}

// Name 模拟模型名称
func (m *MockClient) Name() string {
	args := m.Called()
	return args.String(0)
}

// Generate 设置Generate调用期望
func (e *MockClient_Expecter) Generate(ctx interface{}, prompt interface{}, options interface{}) *mock.Call {
	return e.mock.On("Generate", ctx, prompt, options)
}

// Name 设置Name调用期望
func (e *MockClient_Expecter) Name() *mock.Call {
	return e.mock.On("Name")
}
