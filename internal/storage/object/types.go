package object

import "cloudfile/pkg/utils"

// DefaultPartSize 分片上传/下载的默认分片大小
const DefaultPartSize int64 = 8 << 20

// FileLink 对象访问链接
type FileLink struct {
	Path         string `json:"path"`
	URL          string `json:"url"`
	ExpiresAt    int64  `json:"expires_at"`
	DownloadName string `json:"download_name,omitempty"`
}

// FileMetadata 后端报告的对象属性快照
type FileMetadata struct {
	Path         string            `json:"path"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	ETag         string            `json:"etag"`
	LastModified int64             `json:"last_modified"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// ObjectInfo 列举结果中的对象信息
type ObjectInfo struct {
	Path         string `json:"path"`          // 对象路径
	Size         int64  `json:"size"`          // 对象大小
	ETag         string `json:"etag"`          // 实体标签
	LastModified int64  `json:"last_modified"` // 最后修改时间
	IsDir        bool   `json:"is_dir"`
}

// ListResult 一页列举结果
type ListResult struct {
	Objects           []*ObjectInfo `json:"objects"`
	ContinuationToken string        `json:"continuation_token,omitempty"`
	IsTruncated       bool          `json:"is_truncated"`
}

// ListOptions 列举参数
type ListOptions struct {
	Prefix            string
	ContinuationToken string
	MaxKeys           int
}

// DeleteResult 批量删除结果
type DeleteResult struct {
	Deleted []string          `json:"deleted"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ChunkDownloadConfig 分片下载参数
type ChunkDownloadConfig struct {
	PartSize    int64 // 分片大小（字节）
	Concurrency int   // 并发数
	MaxRetries  int   // 单片重试次数
}

// DefaultChunkDownloadConfig 默认分片下载参数
func DefaultChunkDownloadConfig() *ChunkDownloadConfig {
	return &ChunkDownloadConfig{
		PartSize:    DefaultPartSize,
		Concurrency: 4,
		MaxRetries:  3,
	}
}

// Normalize 补齐零值字段
func (c *ChunkDownloadConfig) Normalize() *ChunkDownloadConfig {
	def := DefaultChunkDownloadConfig()
	if c == nil {
		return def
	}
	out := *c
	out.PartSize = utils.PositiveOr(out.PartSize, def.PartSize)
	out.Concurrency = utils.PositiveOr(out.Concurrency, def.Concurrency)
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	return &out
}
