package s3

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"cloudfile/internal/storage/object"
)

// AssumeRole 允许的最短时长
const minSTSDuration = 900

// 子操作对应的最小授权动作集
var subOperationActions = map[string][]string{
	object.SubOpListObjects:  {"s3:ListBucket"},
	object.SubOpDelObject:    {"s3:DeleteObject"},
	object.SubOpDelObjects:   {"s3:DeleteObject"},
	object.SubOpCopyObject:   {"s3:GetObject", "s3:PutObject"},
	object.SubOpHeadObject:   {"s3:GetObject"},
	object.SubOpSetMeta:      {"s3:GetObject", "s3:PutObject"},
	object.SubOpCreateObject: {"s3:PutObject"},
	object.SubOpPresignedURL: {"s3:GetObject", "s3:PutObject"},
}

var defaultActions = []string{
	"s3:PutObject",
	"s3:AbortMultipartUpload",
	"s3:ListMultipartUploadParts",
	"s3:GetObject",
}

type policyStatement struct {
	Effect    string         `json:"Effect"`
	Action    []string       `json:"Action"`
	Resource  []string       `json:"Resource"`
	Condition map[string]any `json:"Condition,omitempty"`
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// scopedPolicy 构造限定到桶内目录的 inline policy
func scopedPolicy(bucket, dir, subOperation string) (string, error) {
	dir = strings.TrimPrefix(dir, "/")
	actions, ok := subOperationActions[subOperation]
	if !ok {
		actions = defaultActions
	}
	var statements []policyStatement
	var objectActions []string
	for _, a := range actions {
		if a == "s3:ListBucket" {
			statements = append(statements, policyStatement{
				Effect:   "Allow",
				Action:   []string{a},
				Resource: []string{"arn:aws:s3:::" + bucket},
				Condition: map[string]any{
					"StringLike": map[string]any{"s3:prefix": []string{dir + "*"}},
				},
			})
			continue
		}
		objectActions = append(objectActions, a)
	}
	if len(objectActions) > 0 {
		statements = append(statements, policyStatement{
			Effect:   "Allow",
			Action:   objectActions,
			Resource: []string{"arn:aws:s3:::" + bucket + "/" + dir + "*"},
		})
	}
	data, err := json.Marshal(policyDocument{Version: "2012-10-17", Statement: statements})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetUploadCredential 范围凭证走 STS AssumeRole；简单凭证签发 POST 表单策略
func (d *Driver) GetUploadCredential(ctx context.Context, policy object.CredentialPolicy, opts object.Options) (*object.Credential, error) {
	if policy.Scoped {
		return d.assumeRole(ctx, policy)
	}
	return d.postPolicy(ctx, policy)
}

func (d *Driver) assumeRole(ctx context.Context, policy object.CredentialPolicy) (*object.Credential, error) {
	if d.cfg.RoleArn == "" {
		return nil, fmt.Errorf("s3: role_arn is required for scoped credentials on %s", d.cfg.Adapter)
	}
	doc, err := scopedPolicy(d.cfg.Bucket, policy.Dir, policy.SubOperation)
	if err != nil {
		return nil, err
	}
	ttl := policy.EffectiveTTL()
	if ttl < minSTSDuration {
		ttl = minSTSDuration
	}
	out, err := d.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(d.cfg.RoleArn),
		RoleSessionName: aws.String(sessionName(policy.SessionName)),
		Policy:          aws.String(doc),
		DurationSeconds: aws.Int32(int32(ttl)),
	})
	if err != nil {
		return nil, err
	}
	if out.Credentials == nil {
		return nil, fmt.Errorf("s3: AssumeRole returned no credentials")
	}
	cred := &object.Credential{
		Platform: d.cfg.Adapter,
		Payload: map[string]any{
			object.CredAccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
			object.CredSecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
			object.CredSessionToken:    aws.ToString(out.Credentials.SessionToken),
			object.CredBucket:          d.cfg.Bucket,
			object.CredRegion:          d.cfg.Region,
			object.CredEndpoint:        d.cfg.Endpoint,
			object.CredDir:             policy.Dir,
		},
	}
	if out.Credentials.Expiration != nil {
		cred.ExpiresAt = out.Credentials.Expiration.Unix()
	}
	return cred, nil
}

func (d *Driver) postPolicy(ctx context.Context, policy object.CredentialPolicy) (*object.Credential, error) {
	dir := strings.TrimPrefix(policy.Dir, "/")
	ttl := time.Duration(policy.EffectiveTTL()) * time.Second
	conditions := []interface{}{
		[]interface{}{"starts-with", "$key", dir},
	}
	if policy.ContentType != "" {
		conditions = append(conditions, map[string]string{"Content-Type": policy.ContentType})
	}
	req, err := d.presign.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(dir + "${filename}"),
	}, func(o *s3.PresignPostOptions) {
		o.Expires = ttl
		o.Conditions = conditions
	})
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any, len(req.Values))
	for k, v := range req.Values {
		fields[k] = v
	}
	return &object.Credential{
		Platform: d.cfg.Adapter,
		Payload: map[string]any{
			"url":             req.URL,
			"fields":          fields,
			object.CredBucket: d.cfg.Bucket,
			object.CredDir:    policy.Dir,
			"content_type":    policy.ContentType,
		},
		ExpiresAt: d.now().Add(ttl).Unix(),
	}, nil
}

// sessionName AWS 要求 2-64 位 [\w+=,.@-]
func sessionName(name string) string {
	if name == "" {
		return "cloudfile"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', strings.ContainsRune("_+=,.@-", r):
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	s := b.String()
	if len(s) > 64 {
		s = s[:64]
	}
	if len(s) < 2 {
		s = "cloudfile-" + s
	}
	return s
}
