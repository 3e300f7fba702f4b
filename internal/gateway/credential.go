package gateway

import (
	"context"
	"strconv"
	"time"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
	"cloudfile/pkg/metrics"
	"cloudfile/pkg/tracing"
	"cloudfile/pkg/utils"
)

var errEmptyCredential = errors.New("driver returned no credential")

// GetUploadTemporaryCredential 签发或复用临时凭证。
// 除非 opts["cache"] 为 false，先按策略缓存键查缓存；未命中时由驱动签发、规范化后写入缓存。
// 签发失败不缓存。
func (g *Gateway) GetUploadTemporaryCredential(ctx context.Context, policy object.CredentialPolicy, opts object.Options) (*object.Credential, error) {
	ctx, span := tracing.StartGatewaySpan(ctx, "get_upload_temporary_credential", g.adapter.String())
	cred, err := g.issueCredential(ctx, policy, opts)
	tracing.End(span, err)
	return cred, err
}

func (g *Gateway) issueCredential(ctx context.Context, policy object.CredentialPolicy, opts object.Options) (*object.Credential, error) {
	const op = "get_upload_temporary_credential"
	useCache := g.cache != nil && opts.CacheEnabled()
	var key string
	if useCache {
		key = g.cacheKey(policy.CacheKey(opts))
		var cached object.Credential
		if g.cacheGet(ctx, "credential", key, &cached) {
			return &cached, nil
		}
	}

	driver, err := g.expandDriver(op)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	raw, err := driver.GetUploadCredential(ctx, policy, opts)
	metrics.ObserveDriver(g.adapter.String(), "get_upload_credential", start, err)
	if err == nil && raw == nil {
		err = errEmptyCredential
	}
	if err != nil {
		g.logger.Error("credential issuance failed", "dir", policy.Dir, "scoped", policy.Scoped, "sub_operation", policy.SubOperation, "error", err)
		return nil, object.NewOperationError(object.ErrCredentialIssuanceFailed, op, policy.Dir, err)
	}

	now := g.now().Unix()
	cred := &object.Credential{
		Platform:  utils.Coalesce(raw.Platform, g.adapter),
		Payload:   raw.Payload,
		ExpiresAt: utils.PositiveOr(raw.ExpiresAt, now+policy.EffectiveTTL()),
	}
	if cred.Payload == nil {
		cred.Payload = map[string]any{}
	}
	metrics.CredentialsIssued.WithLabelValues(g.adapter.String(), strconv.FormatBool(policy.Scoped)).Inc()
	g.logger.Debug("credential issued", "dir", policy.Dir, "scoped", policy.Scoped, "sub_operation", policy.SubOperation, "platform", cred.Platform.String(), "expires_at", cred.ExpiresAt)

	if useCache {
		g.cacheSet(ctx, "credential", key, cred, cacheTTL(cred.ExpiresAt, now, CredentialCacheMargin))
	}
	return cred, nil
}
