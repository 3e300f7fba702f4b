package gateway

import (
	"fmt"

	"cloudfile/internal/storage/object"
	"cloudfile/internal/storage/object/s3"
)

// credentialTarget 凭证翻译出的一次性后端配置；isTarget 未导出，变体集合封闭
type credentialTarget interface {
	adapter() object.Adapter
	backendConfig() object.BackendConfig
	isTarget()
}

type aliyunTarget struct {
	AccessID, AccessSecret, SessionToken string
	Bucket, Endpoint, Region             string
}

type tosTarget struct {
	AK, SK, SessionToken     string
	Bucket, Endpoint, Region string
}

type obsTarget struct {
	AK, SK, SessionToken     string
	Bucket, Endpoint, Region string
}

type minioTarget struct {
	AccessKey, SecretKey, SessionToken string
	Bucket, Endpoint                   string
}

type localTarget struct {
	Root string
}

func (aliyunTarget) adapter() object.Adapter { return object.AdapterAliyun }
func (tosTarget) adapter() object.Adapter    { return object.AdapterTOS }
func (obsTarget) adapter() object.Adapter    { return object.AdapterOBS }
func (minioTarget) adapter() object.Adapter  { return object.AdapterMinio }
func (localTarget) adapter() object.Adapter  { return object.AdapterLocal }

func (aliyunTarget) isTarget() {}
func (tosTarget) isTarget()    {}
func (obsTarget) isTarget()    {}
func (minioTarget) isTarget()  {}
func (localTarget) isTarget()  {}

func (t aliyunTarget) backendConfig() object.BackendConfig {
	return compact(object.BackendConfig{
		object.KeyAccessID:     t.AccessID,
		object.KeyAccessSecret: t.AccessSecret,
		object.KeySessionToken: t.SessionToken,
		object.KeyBucket:       t.Bucket,
		object.KeyEndpoint:     t.Endpoint,
		object.KeyRegion:       t.Region,
	})
}

// tos 的 S3 接入点由区域代码推导
func (t tosTarget) backendConfig() object.BackendConfig {
	return compact(object.BackendConfig{
		object.KeyAK:           t.AK,
		object.KeySK:           t.SK,
		object.KeySessionToken: t.SessionToken,
		object.KeyBucket:       t.Bucket,
		object.KeyRegion:       t.Region,
		object.KeyEndpoint:     s3.EndpointFor(object.AdapterTOS, t.Endpoint, t.Region),
	})
}

func (t obsTarget) backendConfig() object.BackendConfig {
	return compact(object.BackendConfig{
		object.KeyAK:           t.AK,
		object.KeySK:           t.SK,
		object.KeySessionToken: t.SessionToken,
		object.KeyBucket:       t.Bucket,
		object.KeyRegion:       t.Region,
		object.KeyEndpoint:     s3.EndpointFor(object.AdapterOBS, t.Endpoint, t.Region),
	})
}

func (t minioTarget) backendConfig() object.BackendConfig {
	return compact(object.BackendConfig{
		object.KeyAccessKey:    t.AccessKey,
		object.KeySecretKey:    t.SecretKey,
		object.KeySessionToken: t.SessionToken,
		object.KeyBucket:       t.Bucket,
		object.KeyEndpoint:     t.Endpoint,
	})
}

func (t localTarget) backendConfig() object.BackendConfig {
	return compact(object.BackendConfig{object.KeyRoot: t.Root})
}

func compact(cfg object.BackendConfig) object.BackendConfig {
	for k, v := range cfg {
		if v == "" {
			delete(cfg, k)
		}
	}
	return cfg
}

// translateCredential 按凭证报告的平台（而非网关自身适配器）翻译为一次性后端配置
func translateCredential(cred *object.Credential) (credentialTarget, error) {
	if cred == nil {
		return nil, fmt.Errorf("no credential")
	}
	ak := cred.PayloadString(object.CredAccessKeyID)
	sk := cred.PayloadString(object.CredSecretAccessKey)
	token := cred.PayloadString(object.CredSessionToken)
	bucket := cred.PayloadString(object.CredBucket)
	endpoint := cred.PayloadString(object.CredEndpoint)
	region := cred.PayloadString(object.CredRegion)

	var target credentialTarget
	switch cred.Platform {
	case object.AdapterAliyun:
		target = aliyunTarget{AccessID: ak, AccessSecret: sk, SessionToken: token, Bucket: bucket, Endpoint: endpoint, Region: region}
	case object.AdapterTOS:
		target = tosTarget{AK: ak, SK: sk, SessionToken: token, Bucket: bucket, Endpoint: endpoint, Region: region}
	case object.AdapterOBS:
		target = obsTarget{AK: ak, SK: sk, SessionToken: token, Bucket: bucket, Endpoint: endpoint, Region: region}
	case object.AdapterMinio:
		target = minioTarget{AccessKey: ak, SecretKey: sk, SessionToken: token, Bucket: bucket, Endpoint: endpoint}
	case object.AdapterLocal:
		target = localTarget{Root: cred.PayloadString(object.CredRoot)}
	default:
		return nil, fmt.Errorf("no translation for platform %q", cred.Platform)
	}
	if _, err := object.ValidateConfig(target.adapter(), target.backendConfig()); err != nil {
		return nil, err
	}
	return target, nil
}
