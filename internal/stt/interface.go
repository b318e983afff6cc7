// internal/stt/interface.go
package stt

import (
	"context"
	"errors"

	"github.com/Corphon/VoiceScribeMCP/internal/models"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的转写提供者")

// Provider 定义所有语音转写提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 获取当前使用的模型名称
	GetModel() string

	// 转写指定路径的音频文件
	Transcribe(ctx context.Context, audioPath string) (*models.TranscriptionRaw, error)
}

// 注册表和工厂函数类型
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register 注册提供者工厂
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider 创建指定名称的提供者实例
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	err := provider.Initialize(config)
	return provider, err
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
