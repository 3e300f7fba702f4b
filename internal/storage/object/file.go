package object

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"

	"cloudfile/pkg/utils"
)

// UploadFile 待上传的本地源（路径或内存数据）与目标键；传输结束后必须 Release
type UploadFile struct {
	Name     string // 原始文件名
	Source   string // 本地文件路径，为空时使用内存数据
	KeyPath  string // 目标键；以 / 结尾时拼接 Name
	MimeType string

	data     []byte
	mu       sync.Mutex
	handle   *os.File
	releases atomic.Int32
}

// NewUploadFile 以本地文件为源
func NewUploadFile(source, key string) *UploadFile {
	return &UploadFile{
		Name:    filepath.Base(source),
		Source:  source,
		KeyPath: key,
	}
}

// NewUploadFileFromBytes 以内存数据为源
func NewUploadFileFromBytes(key string, data []byte, mimeType string) *UploadFile {
	return &UploadFile{
		Name:     path.Base(key),
		KeyPath:  key,
		MimeType: mimeType,
		data:     data,
	}
}

// Key 返回存储键
func (f *UploadFile) Key() string {
	key := strings.TrimPrefix(f.KeyPath, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		key += f.Name
	}
	return key
}

// Open 打开源并返回可重读的 reader 与大小；文件句柄由 Release 关闭
func (f *UploadFile) Open() (io.ReadSeeker, int64, error) {
	if f.Source == "" {
		if f.data == nil {
			return nil, 0, fmt.Errorf("upload file %q has no source", f.Key())
		}
		return bytes.NewReader(f.data), int64(len(f.data)), nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handle == nil {
		h, err := os.Open(f.Source)
		if err != nil {
			return nil, 0, err
		}
		f.handle = h
	}
	info, err := f.handle.Stat()
	if err != nil {
		return nil, 0, err
	}
	if _, err := f.handle.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}
	return f.handle, info.Size(), nil
}

// ReadAll 将源完整读入内存
func (f *UploadFile) ReadAll() ([]byte, error) {
	r, size, err := f.Open()
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType 返回 MIME，未设置时按内容探测
func (f *UploadFile) ContentType() string {
	if f.MimeType != "" {
		return f.MimeType
	}
	if f.Source == "" {
		f.MimeType = mimetype.Detect(f.data).String()
		return f.MimeType
	}
	mt, err := mimetype.DetectFile(f.Source)
	if err != nil {
		return "application/octet-stream"
	}
	f.MimeType = mt.String()
	return f.MimeType
}

// Release 释放底层文件句柄；多次调用只有第一次生效
func (f *UploadFile) Release() {
	if f.releases.Add(1) > 1 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handle != nil {
		_ = f.handle.Close()
		f.handle = nil
	}
}

// ReleaseCount 返回 Release 被调用的次数
func (f *UploadFile) ReleaseCount() int {
	return int(f.releases.Load())
}

// ChunkConfig 分片上传参数
type ChunkConfig struct {
	PartSize    int64
	Concurrency int
}

// ChunkUploadFile 分片上传源
type ChunkUploadFile struct {
	*UploadFile
	Chunk ChunkConfig
}

// NewChunkUploadFile 创建分片上传源，零值参数使用默认（8MiB，3 并发）
func NewChunkUploadFile(source, key string, cfg ChunkConfig) *ChunkUploadFile {
	cfg.PartSize = utils.PositiveOr(cfg.PartSize, DefaultPartSize)
	cfg.Concurrency = utils.PositiveOr(cfg.Concurrency, 3)
	return &ChunkUploadFile{UploadFile: NewUploadFile(source, key), Chunk: cfg}
}

// AppendUploadFile 追加上传源；Position 为本次追加的起始偏移
type AppendUploadFile struct {
	*UploadFile
	Position int64
}

// NewAppendUploadFile 创建追加上传源
func NewAppendUploadFile(source, key string, position int64) *AppendUploadFile {
	return &AppendUploadFile{UploadFile: NewUploadFile(source, key), Position: position}
}
