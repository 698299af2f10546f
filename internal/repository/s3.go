package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"assettrack-api/internal/history"
	"assettrack-api/internal/models"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config holds explicit construction parameters for the grouped-file
// driver. Credentials fall back to the default chain when unset.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, e.g. MinIO
	Prefix          string // object key prefix, e.g. "assets/"
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// s3API is the subset of the S3 client the driver uses.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Repository stores one JSON-array object per site. Keys are
// <prefix><sanitized-site>.json and writes overwrite the full array.
type S3Repository struct {
	client s3API
	bucket string
	prefix string
	engine *history.Engine
}

// NewS3 constructs the grouped-file driver. A missing bucket is not an
// error here; it surfaces as a ConfigError on first use.
func NewS3(ctx context.Context, cfg S3Config, engine *history.Engine) (*S3Repository, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Repository{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, engine: engine}, nil
}

func (r *S3Repository) ensureReady() error {
	if r.bucket == "" {
		return &ConfigError{Missing: "S3 bucket"}
	}
	return nil
}

func (r *S3Repository) keyFor(site string) string {
	return r.prefix + SanitizePartitionKey(site) + ".json"
}

// isNoSuchKey distinguishes the backend's "not found" conditions, a missing
// object or a missing bucket, from all other failures.
func isNoSuchKey(err error) bool {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

func (r *S3Repository) loadGroup(ctx context.Context, key string) ([]models.AssetRecord, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &r.bucket, Key: &key})
	if err != nil {
		if isNoSuchKey(err) {
			return []models.AssetRecord{}, nil
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var records []models.AssetRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	for i := range records {
		records[i].ApplyDefaults()
	}
	return records, nil
}

func (r *S3Repository) saveGroup(ctx context.Context, key string, records []models.AssetRecord) error {
	if records == nil {
		records = []models.AssetRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	contentType := "application/json"
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &r.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (r *S3Repository) listGroupKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &r.bucket,
			Prefix:            &r.prefix,
			ContinuationToken: token,
		})
		if err != nil {
			if isNoSuchKey(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	return keys, nil
}

// FetchAll reads every group object under the prefix.
func (r *S3Repository) FetchAll(ctx context.Context) ([]models.AssetRecord, error) {
	if err := r.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	keys, err := r.listGroupKeys(ctx)
	if err != nil {
		return nil, err
	}
	all := []models.AssetRecord{}
	for _, key := range keys {
		group, err := r.loadGroup(ctx, key)
		if err != nil {
			return nil, err
		}
		all = append(all, group...)
	}
	return all, nil
}

// AddMany finalizes drafts through the history engine, groups them by site
// and performs one read-modify-write per group. Groups are written
// concurrently; one group's failure never blocks another.
func (r *S3Repository) AddMany(ctx context.Context, drafts []models.AssetRecord) (BatchReport, error) {
	if err := r.ensureReady(); err != nil {
		return BatchReport{}, err
	}

	finalized := make([]models.AssetRecord, 0, len(drafts))
	for _, draft := range drafts {
		finalized = append(finalized, r.engine.Create(draft))
	}
	groups, order := groupBySite(finalized)

	report := runPartitions(order, partitionMembers(groups), func(site string) error {
		opCtx, cancel := withOpTimeout(ctx)
		defer cancel()
		key := r.keyFor(site)
		existing, err := r.loadGroup(opCtx, key)
		if err != nil {
			return err
		}
		return r.saveGroup(opCtx, key, append(existing, groups[site]...))
	})
	return report, report.Err()
}

// UpdateOne walks the group objects to locate the identity, merges the
// patch via the history engine and writes the group back. A site change
// relocates the record into the new site's group object; the two group
// writes are not atomic, and a failure between them leaves the record in
// both groups rather than in neither.
func (r *S3Repository) UpdateOne(ctx context.Context, id string, patch models.AssetPatch) (models.AssetRecord, error) {
	if err := r.ensureReady(); err != nil {
		return models.AssetRecord{}, err
	}
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	keys, err := r.listGroupKeys(ctx)
	if err != nil {
		return models.AssetRecord{}, err
	}
	for _, key := range keys {
		group, err := r.loadGroup(ctx, key)
		if err != nil {
			return models.AssetRecord{}, err
		}
		for i, rec := range group {
			if rec.ID != id {
				continue
			}
			updated, _ := r.engine.ApplyUpdate(rec, patch)
			newKey := r.keyFor(updated.Site)
			if newKey == key {
				group[i] = updated
				return updated, r.saveGroup(ctx, key, group)
			}
			// Partition key changed: insert into the new group first, then
			// rewrite the old one, so a failure between the writes
			// duplicates the record instead of dropping it.
			target, err := r.loadGroup(ctx, newKey)
			if err != nil {
				return models.AssetRecord{}, err
			}
			if err := r.saveGroup(ctx, newKey, append(target, updated)); err != nil {
				return models.AssetRecord{}, err
			}
			remaining := append(group[:i:i], group[i+1:]...)
			return updated, r.saveGroup(ctx, key, remaining)
		}
	}
	return models.AssetRecord{}, ErrNotFound
}

// DeleteMany groups the records by site and rewrites each group without
// the matching identities.
func (r *S3Repository) DeleteMany(ctx context.Context, records []models.AssetRecord) (BatchReport, error) {
	if err := r.ensureReady(); err != nil {
		return BatchReport{}, err
	}

	groups, order := groupBySite(records)

	report := runPartitions(order, partitionMembers(groups), func(site string) error {
		opCtx, cancel := withOpTimeout(ctx)
		defer cancel()
		key := r.keyFor(site)
		existing, err := r.loadGroup(opCtx, key)
		if err != nil {
			return err
		}
		drop := map[string]bool{}
		for _, rec := range groups[site] {
			drop[rec.ID] = true
		}
		remaining := existing[:0]
		for _, rec := range existing {
			if !drop[rec.ID] {
				remaining = append(remaining, rec)
			}
		}
		return r.saveGroup(opCtx, key, remaining)
	})
	return report, report.Err()
}
