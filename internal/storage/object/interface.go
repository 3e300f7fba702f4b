package object

import (
	"context"
	"io"
)

// Filesystem 默认后端绑定：服务端直写/读/删
type Filesystem interface {
	// Write 写入对象
	Write(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	// Read 读取对象
	Read(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除对象
	Delete(ctx context.Context, key string) error
	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)
}

// ExpandDriver 元数据/链接/删除/复制/分片下载驱动
type ExpandDriver interface {
	// GetUploadCredential 签发临时凭证（原始响应，过期时间与平台可缺省）
	GetUploadCredential(ctx context.Context, policy CredentialPolicy, opts Options) (*Credential, error)
	// GetMetas 获取对象元数据
	GetMetas(ctx context.Context, paths []string, opts Options) ([]*FileMetadata, error)
	// GetFileLinks 批量签发访问链接，结果按路径索引
	GetFileLinks(ctx context.Context, paths []string, downloadNames map[string]string, expires int64, opts Options) (map[string]*FileLink, error)
	// Destroy 删除对象
	Destroy(ctx context.Context, paths []string, opts Options) error
	// Duplicate 复制对象，返回新键
	Duplicate(ctx context.Context, source, dest string, opts Options) (string, error)
	// DownloadByChunks 分片下载到本地文件
	DownloadByChunks(ctx context.Context, remotePath, localPath string, cfg *ChunkDownloadConfig, opts Options) error
}

// SimpleUploadDriver 凭证直传驱动
type SimpleUploadDriver interface {
	UploadObject(ctx context.Context, cred *Credential, file *UploadFile, opts Options) error
	UploadObjectByChunks(ctx context.Context, cred *Credential, file *ChunkUploadFile, opts Options) error
	// AppendUploadObject 追加写，返回下一次追加的偏移
	AppendUploadObject(ctx context.Context, cred *Credential, file *AppendUploadFile, opts Options) (int64, error)
	ListObjects(ctx context.Context, cred *Credential, list ListOptions, opts Options) (*ListResult, error)
	DeleteObject(ctx context.Context, cred *Credential, key string, opts Options) error
	DeleteObjects(ctx context.Context, cred *Credential, keys []string, opts Options) (*DeleteResult, error)
	CopyObject(ctx context.Context, cred *Credential, source, dest string, opts Options) error
	HeadObject(ctx context.Context, cred *Credential, key string, opts Options) (*FileMetadata, error)
	SetHeadObject(ctx context.Context, cred *Credential, key string, headers map[string]string, opts Options) error
	CreateObject(ctx context.Context, cred *Credential, key string, opts Options) error
	// PreSignedURL 签发预签名 URL；opts["method"] 指定 HTTP 方法，默认 GET
	PreSignedURL(ctx context.Context, cred *Credential, key string, expires int64, opts Options) (string, error)
}
