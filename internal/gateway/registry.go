// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"

	"cloudfile/internal/storage/object"
	"cloudfile/internal/storage/object/fileservice"
	"cloudfile/internal/storage/object/local"
	"cloudfile/internal/storage/object/s3"
	"cloudfile/pkg/utils"
)

// Drivers 一个后端实例的驱动组合；不支持的能力为 nil
type Drivers struct {
	Expand     object.ExpandDriver
	Simple     object.SimpleUploadDriver
	Filesystem object.Filesystem
}

// Factory 由已校验的配置构造驱动组合
type Factory func(ctx context.Context, a object.Adapter, cfg object.BackendConfig) (Drivers, error)

// Registry 适配器 -> 驱动工厂；构造完成后只读
type Registry struct {
	factories map[object.Adapter]Factory
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{factories: make(map[object.Adapter]Factory)}
}

// Register 注册工厂，同一适配器后注册者覆盖
func (r *Registry) Register(a object.Adapter, f Factory) *Registry {
	r.factories[a] = f
	return r
}

// Lookup 查找工厂
func (r *Registry) Lookup(a object.Adapter) (Factory, bool) {
	f, ok := r.factories[a]
	return f, ok
}

// Adapters 已注册的适配器（排序）
func (r *Registry) Adapters() []object.Adapter {
	return utils.SortedKeys(r.factories)
}

// DefaultRegistry 注册内置驱动：本地磁盘、S3 族（aliyun/tos/obs/minio）、内部文件服务
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(object.AdapterLocal, func(_ context.Context, _ object.Adapter, cfg object.BackendConfig) (Drivers, error) {
		d, err := local.New(cfg)
		if err != nil {
			return Drivers{}, err
		}
		return bundle(d), nil
	})
	s3Factory := func(ctx context.Context, a object.Adapter, cfg object.BackendConfig) (Drivers, error) {
		d, err := s3.New(ctx, a, cfg)
		if err != nil {
			return Drivers{}, err
		}
		return bundle(d), nil
	}
	for _, a := range []object.Adapter{object.AdapterAliyun, object.AdapterTOS, object.AdapterOBS, object.AdapterMinio} {
		r.Register(a, s3Factory)
	}
	r.Register(object.AdapterFileService, func(_ context.Context, _ object.Adapter, cfg object.BackendConfig) (Drivers, error) {
		d, err := fileservice.New(cfg)
		if err != nil {
			return Drivers{}, err
		}
		return bundle(d), nil
	})
	return r
}

// bundle 按实现的接口拆出各能力
func bundle(d any) Drivers {
	var out Drivers
	out.Expand, _ = d.(object.ExpandDriver)
	out.Simple, _ = d.(object.SimpleUploadDriver)
	out.Filesystem, _ = d.(object.Filesystem)
	return out
}
