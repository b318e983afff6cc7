// internal/utils/audio.go
package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxAudioFileSize 音频文件大小上限（50 MiB）
const MaxAudioFileSize = 50 * 1024 * 1024

// 受支持的MIME类型到扩展名的映射
var supportedAudioFormats = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/mp4":    ".m4a",
	"audio/x-m4a":  ".m4a",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"audio/ogg":    ".ogg",
	"audio/webm":   ".webm",
}

// 受支持的文件扩展名
var supportedAudioExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".webm"}

// ValidateAudioFile 校验上传音频的元数据是否可被转写管道接受
// 纯谓词：只检查文件名、声明的内容类型和字节长度，不读取字节流本身
// contentType为空时跳过内容类型检查（缺失不是拒绝理由）
func ValidateAudioFile(filename, contentType string, byteLength int64) bool {
	// 必须有文件名
	if filename == "" {
		return false
	}

	// 检查文件扩展名
	ext := strings.ToLower(filepath.Ext(filename))
	if !isSupportedExtension(ext) {
		return false
	}

	// 检查声明的内容类型（如果有）
	if contentType != "" {
		if _, ok := supportedAudioFormats[contentType]; !ok {
			return false
		}
	}

	// 检查文件大小
	if byteLength == 0 {
		return false
	}
	if byteLength > MaxAudioFileSize {
		return false
	}

	return true
}

// AudioValidationReason 返回校验失败时命中的具体约束描述
// 与ValidateAudioFile的检查顺序保持一致，通过时返回空串
func AudioValidationReason(filename, contentType string, byteLength int64) string {
	if filename == "" {
		return "未提供文件名"
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !isSupportedExtension(ext) {
		return fmt.Sprintf("不支持的文件格式: %s，支持的格式: %s", ext, strings.Join(supportedAudioExtensions, ", "))
	}

	if contentType != "" {
		if _, ok := supportedAudioFormats[contentType]; !ok {
			return fmt.Sprintf("不支持的内容类型: %s", contentType)
		}
	}

	if byteLength == 0 {
		return "文件内容为空"
	}
	if byteLength > MaxAudioFileSize {
		return fmt.Sprintf("文件过大: %d字节，上限%d字节", byteLength, MaxAudioFileSize)
	}

	return ""
}

func isSupportedExtension(ext string) bool {
	for _, supported := range supportedAudioExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// GetSupportedFormats 返回受支持的音频扩展名列表
func GetSupportedFormats() []string {
	formats := make([]string, len(supportedAudioExtensions))
	copy(formats, supportedAudioExtensions)
	return formats
}

// GetMaxFileSize 返回允许的最大文件大小（字节）
func GetMaxFileSize() int64 {
	return MaxAudioFileSize
}
