package repository

import (
	"context"
	"fmt"

	"assettrack-api/internal/config"
	"assettrack-api/internal/history"
)

// Open selects and constructs the repository driver named by the
// configuration.
func Open(ctx context.Context, cfg *config.Config, engine *history.Engine) (AssetRepository, error) {
	switch Driver(cfg.StorageDriver) {
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SessionToken:    cfg.AWSSessionToken,
			PathStyle:       cfg.S3PathStyle,
		}, engine)
	case DriverDynamoDB:
		return NewDynamo(ctx, DynamoConfig{
			Table:           cfg.DynamoTable,
			Region:          cfg.DynamoRegion,
			Endpoint:        cfg.DynamoEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SessionToken:    cfg.AWSSessionToken,
		}, engine)
	case DriverMemory:
		return NewMemory(engine), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}
