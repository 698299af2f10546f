package repository

import (
	"context"
	"errors"
	"fmt"

	"assettrack-api/internal/history"
	"assettrack-api/internal/models"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoConfig holds construction parameters for the flat-table driver.
type DynamoConfig struct {
	Table           string
	Region          string
	Endpoint        string // optional, e.g. dynamodb-local
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// DynamoRepository stores one item per record keyed by id. Creation history
// is attached before dispatch; batch writes carry no per-item merge.
type DynamoRepository struct {
	client *dynamodb.Client
	table  string
	engine *history.Engine
}

// NewDynamo constructs the flat-table driver. A missing table name surfaces
// as a ConfigError on first use, not here.
func NewDynamo(ctx context.Context, cfg DynamoConfig, engine *history.Engine) (*DynamoRepository, error) {
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
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &DynamoRepository{client: client, table: cfg.Table, engine: engine}, nil
}

func (r *DynamoRepository) ensureReady() error {
	if r.table == "" {
		return &ConfigError{Missing: "DynamoDB table"}
	}
	return nil
}

func isTableMissing(err error) bool {
	var notFound *dynamotypes.ResourceNotFoundException
	return errors.As(err, &notFound)
}

// FetchAll scans the whole table. A missing table reads as zero results;
// every other failure surfaces.
func (r *DynamoRepository) FetchAll(ctx context.Context) ([]models.AssetRecord, error) {
	if err := r.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	all := []models.AssetRecord{}
	var startKey map[string]dynamotypes.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         &r.table,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			if isTableMissing(err) {
				return []models.AssetRecord{}, nil
			}
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		page := make([]models.AssetRecord, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("decode scan page: %w", err)
		}
		for i := range page {
			page[i].ApplyDefaults()
		}
		all = append(all, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return all, nil
}

// AddMany finalizes drafts and dispatches batch puts in chunks of at most
// 25 items, each chunk an independent concurrent branch.
func (r *DynamoRepository) AddMany(ctx context.Context, drafts []models.AssetRecord) (BatchReport, error) {
	if err := r.ensureReady(); err != nil {
		return BatchReport{}, err
	}

	finalized := make([]models.AssetRecord, 0, len(drafts))
	for _, draft := range drafts {
		finalized = append(finalized, r.engine.Create(draft))
	}
	chunks := chunkRecords(finalized, batchLimit)
	return r.runChunks(ctx, chunks, func(rec models.AssetRecord) (dynamotypes.WriteRequest, error) {
		item, err := attributevalue.MarshalMap(rec)
		if err != nil {
			return dynamotypes.WriteRequest{}, fmt.Errorf("encode %s: %w", rec.ID, err)
		}
		return dynamotypes.WriteRequest{PutRequest: &dynamotypes.PutRequest{Item: item}}, nil
	})
}

// UpdateOne reads the item, merges the patch through the history engine
// and puts the whole item back. Last write wins; there is no version check.
func (r *DynamoRepository) UpdateOne(ctx context.Context, id string, patch models.AssetPatch) (models.AssetRecord, error) {
	if err := r.ensureReady(); err != nil {
		return models.AssetRecord{}, err
	}
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	key := map[string]dynamotypes.AttributeValue{
		"id": &dynamotypes.AttributeValueMemberS{Value: id},
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &r.table, Key: key})
	if err != nil {
		if isTableMissing(err) {
			return models.AssetRecord{}, ErrNotFound
		}
		return models.AssetRecord{}, fmt.Errorf("get %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return models.AssetRecord{}, ErrNotFound
	}

	var current models.AssetRecord
	if err := attributevalue.UnmarshalMap(out.Item, &current); err != nil {
		return models.AssetRecord{}, fmt.Errorf("decode %s: %w", id, err)
	}
	current.ApplyDefaults()

	updated, _ := r.engine.ApplyUpdate(current, patch)
	item, err := attributevalue.MarshalMap(updated)
	if err != nil {
		return models.AssetRecord{}, fmt.Errorf("encode %s: %w", id, err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &r.table, Item: item}); err != nil {
		return models.AssetRecord{}, fmt.Errorf("put %s: %w", id, err)
	}
	return updated, nil
}

// DeleteMany issues batch deletes by identity in chunks of at most 25.
func (r *DynamoRepository) DeleteMany(ctx context.Context, records []models.AssetRecord) (BatchReport, error) {
	if err := r.ensureReady(); err != nil {
		return BatchReport{}, err
	}

	chunks := chunkRecords(records, batchLimit)
	return r.runChunks(ctx, chunks, func(rec models.AssetRecord) (dynamotypes.WriteRequest, error) {
		return dynamotypes.WriteRequest{DeleteRequest: &dynamotypes.DeleteRequest{
			Key: map[string]dynamotypes.AttributeValue{
				"id": &dynamotypes.AttributeValueMemberS{Value: rec.ID},
			},
		}}, nil
	})
}

// runChunks dispatches each chunk of at most 25 items concurrently and retries
// unprocessed items once before reporting the chunk failed.
func (r *DynamoRepository) runChunks(ctx context.Context, chunks [][]models.AssetRecord, toRequest func(models.AssetRecord) (dynamotypes.WriteRequest, error)) (BatchReport, error) {
	labels := make([]string, len(chunks))
	byLabel := map[string][]models.AssetRecord{}
	for i, chunk := range chunks {
		labels[i] = fmt.Sprintf("batch-%d", i+1)
		byLabel[labels[i]] = chunk
	}

	report := runPartitions(labels, partitionMembers(byLabel), func(label string) error {
		opCtx, cancel := withOpTimeout(ctx)
		defer cancel()

		requests := make([]dynamotypes.WriteRequest, 0, len(byLabel[label]))
		for _, rec := range byLabel[label] {
			req, err := toRequest(rec)
			if err != nil {
				return err
			}
			requests = append(requests, req)
		}

		pending := map[string][]dynamotypes.WriteRequest{r.table: requests}
		for attempt := 0; attempt < 2; attempt++ {
			out, err := r.client.BatchWriteItem(opCtx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("batch write: %w", err)
			}
			if len(out.UnprocessedItems) == 0 {
				return nil
			}
			pending = out.UnprocessedItems
		}
		return fmt.Errorf("batch write: %d item(s) unprocessed after retry", len(pending[r.table]))
	})
	return report, report.Err()
}
