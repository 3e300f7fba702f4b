package gateway

import (
	"context"
	"net/url"
	"strings"
	"time"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
	"cloudfile/pkg/metrics"
	"cloudfile/pkg/tracing"
	"cloudfile/pkg/utils"
)

// linkTarget 调用方原始路径与交给驱动的后端键
type linkTarget struct {
	path string
	key  string
}

// normalizePath 转义字面量 %，并在文件服务托管 minio 时去掉 key_prefix
func (g *Gateway) normalizePath(p string) string {
	key := strings.ReplaceAll(p, "%", "%25")
	if prefix := g.impersonationPrefix(); prefix != "" {
		key = strings.TrimPrefix(strings.TrimPrefix(key, "/"), prefix)
	}
	return key
}

// impersonationPrefix 文件服务以 minio 身份托管且配置了 key_prefix 时返回 "<prefix>/"
func (g *Gateway) impersonationPrefix() string {
	if g.adapter != object.AdapterFileService {
		return ""
	}
	if platform, err := object.ResolveAdapter(g.config.Get(object.KeyPlatform)); err != nil || platform != object.AdapterMinio {
		return ""
	}
	prefix := strings.Trim(g.config.Get(object.KeyKeyPrefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// GetLinks 批量签发访问链接，结果按调用方原始路径索引。
// 公共读且域名已知、未指定下载名时直接拼接，不访问驱动；否则先查缓存，未命中的路径一次性交给驱动。
// 驱动失败时返回已从缓存解析的部分结果与 ErrLinkIssuanceFailed。
func (g *Gateway) GetLinks(ctx context.Context, paths []string, downloadNames map[string]string, expires int64, opts object.Options) (links map[string]*object.FileLink, err error) {
	const op = "get_links"
	ctx, span := tracing.StartGatewaySpan(ctx, op, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	if expires <= 0 {
		expires = g.linkExpires
	}
	links = make(map[string]*object.FileLink, len(paths))
	targets := make([]linkTarget, 0, len(paths))
	for _, p := range paths {
		targets = append(targets, linkTarget{path: p, key: g.normalizePath(p)})
	}
	if len(targets) == 0 {
		return links, nil
	}

	now := g.now().Unix()
	if domain := g.PublicDomain(); g.PublicRead() && domain != "" && len(downloadNames) == 0 {
		for _, t := range targets {
			links[t.path] = &object.FileLink{
				Path:      t.path,
				URL:       domain + "/" + strings.TrimPrefix(t.key, "/"),
				ExpiresAt: now + expires,
			}
		}
		metrics.LinksShortCircuit.WithLabelValues(g.adapter.String()).Add(float64(len(targets)))
		return links, nil
	}

	useCache := g.cache != nil && opts.CacheEnabled()
	cacheKeys := make(map[string]string, len(targets))
	pending := make(map[string][]linkTarget)
	for _, t := range targets {
		name := downloadNames[t.path]
		if useCache {
			ck := g.cacheKey("link:" + object.HashKey(t.key, name, expires, opts.CacheRelevant()))
			cacheKeys[t.path] = ck
			var cached object.FileLink
			if g.cacheGet(ctx, "link", ck, &cached) {
				cached.Path = t.path
				links[t.path] = &cached
				continue
			}
		}
		pending[t.key] = append(pending[t.key], t)
	}
	if len(pending) == 0 {
		return links, nil
	}

	driver, err := g.expandDriver(op)
	if err != nil {
		return links, err
	}
	keys := utils.SortedKeys(pending)
	names := make(map[string]string)
	for k, ts := range pending {
		for _, t := range ts {
			if n := downloadNames[t.path]; n != "" {
				names[k] = n
			}
		}
	}
	start := time.Now()
	fetched, err := driver.GetFileLinks(ctx, keys, names, expires, opts)
	metrics.ObserveDriver(g.adapter.String(), "get_file_links", start, err)
	if err != nil {
		g.logger.Error("link issuance failed", "paths", len(keys), "error", err)
		return links, object.NewOperationError(object.ErrLinkIssuanceFailed, op, strings.Join(keys, ","), err)
	}

	var missing []string
	for _, k := range keys {
		link := fetched[k]
		if link == nil || link.URL == "" {
			missing = append(missing, k)
			continue
		}
		resolved := *link
		if resolved.ExpiresAt <= 0 {
			resolved.ExpiresAt = now + expires
		}
		if g.PublicRead() {
			g.stripSignature(&resolved, k)
		}
		for _, t := range pending[k] {
			out := resolved
			out.Path = t.path
			links[t.path] = &out
			if useCache {
				g.cacheSet(ctx, "link", cacheKeys[t.path], out, cacheTTL(now+expires, now, LinkCacheMargin))
			}
		}
	}
	if len(missing) > 0 {
		return links, object.NewOperationError(object.ErrLinkIssuanceFailed, op, strings.Join(missing, ","),
			errors.New("driver returned no link"))
	}
	return links, nil
}

// stripSignature 去掉查询串签名参数；首个结果去掉末尾对象键后的前缀（含路径式桶名）作为公共域名
func (g *Gateway) stripSignature(link *object.FileLink, key string) {
	u, err := url.Parse(link.URL)
	if err != nil || u.Host == "" {
		return
	}
	u.RawQuery = ""
	u.Fragment = ""
	link.URL = u.String()
	if g.publicDomain.Load() != nil {
		return
	}
	suffix := "/" + strings.TrimPrefix(key, "/")
	var prefix string
	var ok bool
	// 驱动可能按原样或再次转义后写入键
	for _, p := range []string{u.Path, u.EscapedPath()} {
		if prefix, ok = strings.CutSuffix(p, suffix); ok {
			break
		}
	}
	if !ok {
		g.logger.Debug("public domain not derivable", "url", link.URL, "key", key)
		return
	}
	base := u.Scheme + "://" + u.Host + strings.TrimSuffix(prefix, "/")
	if g.publicDomain.CompareAndSwap(nil, &base) {
		g.logger.Info("public domain discovered", "domain", base)
	}
}

// GetLink 单路径便捷封装
func (g *Gateway) GetLink(ctx context.Context, path, downloadName string, expires int64, opts object.Options) (*object.FileLink, error) {
	var names map[string]string
	if downloadName != "" {
		names = map[string]string{path: downloadName}
	}
	links, err := g.GetLinks(ctx, []string{path}, names, expires, opts)
	if err != nil {
		return nil, err
	}
	return links[path], nil
}
