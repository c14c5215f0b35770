package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/semview"
	"github.com/hupe1980/semview/blobstore"
	"github.com/hupe1980/semview/blobstore/minio"
	"github.com/hupe1980/semview/blobstore/s3"
	"github.com/hupe1980/semview/codec"
	"github.com/hupe1980/semview/durable/dynamo"
	"github.com/hupe1980/semview/durable/sqlstore"
	"github.com/hupe1980/semview/internal/config"
	"github.com/hupe1980/semview/internal/resource"
)

// app holds what one command invocation opens.
type app struct {
	configPath string

	cfg  *config.Config
	host *sql.DB
	db   *semview.DB
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	dialect, ok := sqlstore.DialectByName(cfg.Database.Driver)
	if !ok {
		return fmt.Errorf("unknown driver %q", cfg.Database.Driver)
	}
	host, err := sql.Open(dialect.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := host.PingContext(ctx); err != nil {
		_ = host.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	a.host = host

	opts, err := a.options(ctx, dialect)
	if err != nil {
		return err
	}
	db, err := semview.Open(ctx, host, opts...)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *app) options(ctx context.Context, dialect sqlstore.Dialect) ([]semview.Option, error) {
	cfg := a.cfg

	mode, err := semview.ParseDurability(cfg.Catalog.Durability)
	if err != nil {
		return nil, err
	}
	c, ok := codec.ByName(cfg.Catalog.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", cfg.Catalog.Codec)
	}
	comp, err := semview.ParseCompression(strings.ToLower(cfg.Backup.Compression))
	if err != nil {
		return nil, err
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := semview.NewTextLogger(level)
	if strings.EqualFold(cfg.Log.Format, "json") {
		logger = semview.NewJSONLogger(level)
	}

	opts := []semview.Option{
		semview.WithDialect(dialect),
		semview.WithDurability(mode),
		semview.WithCodec(c),
		semview.WithLogger(logger),
		semview.WithBackupCompression(comp),
		semview.WithQueryLimits(semview.QueryLimits{
			MaxConcurrentQueries: cfg.Query.MaxConcurrent,
			QueriesPerSecond:     cfg.Query.PerSecond,
			QueryBurst:           cfg.Query.Burst,
			IOLimitBytesPerSec:   cfg.Backup.IOLimit,
		}),
	}
	if cfg.Catalog.WriterQueueSize > 0 {
		opts = append(opts, semview.WithWriterQueueSize(cfg.Catalog.WriterQueueSize))
	}
	if cfg.Database.StorePath != "" {
		opts = append(opts, semview.WithStorePath(cfg.Database.StorePath))
	}
	if cfg.Catalog.DynamoDBTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Catalog.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		opts = append(opts, semview.WithCatalogStore(dynamo.Opener(client, cfg.Catalog.DynamoDBTable)))
	}
	return opts, nil
}

// targets builds the configured backup stores.
func (a *app) targets(ctx context.Context) ([]blobstore.BlobStore, error) {
	b := a.cfg.Backup
	var stores []blobstore.BlobStore
	// Downloads from remote targets share the configured IO limit.
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: b.IOLimit})

	if b.LocalDir != "" {
		stores = append(stores, blobstore.NewLocalStore(b.LocalDir))
	}
	if b.S3 != nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(b.S3.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		remote := s3.NewStore(awss3.NewFromConfig(awsCfg), b.S3.Bucket, b.S3.Prefix, s3.WithResourceController(rc))
		stores = append(stores, blobstore.NewCachingStore(remote, b.CacheBytes, nil))
	}
	if b.MinIO != nil {
		client, err := miniogo.New(b.MinIO.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(b.MinIO.AccessKey, b.MinIO.SecretKey, ""),
			Secure: b.MinIO.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO client: %w", err)
		}
		remote := minio.NewStore(client, b.MinIO.Bucket, b.MinIO.Prefix, minio.WithResourceController(rc))
		stores = append(stores, blobstore.NewCachingStore(remote, b.CacheBytes, nil))
	}
	if len(stores) == 0 {
		return nil, errors.New("no backup target configured")
	}
	return stores, nil
}

func (a *app) close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
	}
	if a.host != nil {
		if cerr := a.host.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
