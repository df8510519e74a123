package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"corevo/go-backend/pkg/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const extrinsicsCollection = "extrinsics"

// MongoConfig points at an extrinsic indexer database.
type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	BlockField     string        `yaml:"blockField"`
	IndexField     string        `yaml:"indexField"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:            "mongodb://localhost:27017",
		Database:       "corevo",
		BlockField:     "blockNumber",
		IndexField:     "index",
		ConnectTimeout: 10 * time.Second,
	}
}

// MongoStore reads remark extrinsics written by an external chain indexer.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	cfg    MongoConfig
	logger *slog.Logger
}

func OpenMongoStore(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*MongoStore, error) {
	if strings.TrimSpace(cfg.URI) == "" || strings.TrimSpace(cfg.Database) == "" {
		return nil, errors.New("mongo uri and database are required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := options.Client().ApplyURI(cfg.URI).SetAppName("corevo")
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout).SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(extrinsicsCollection),
		cfg:    cfg,
		logger: logger.With("component", "storage.mongo"),
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ScanRemarks streams matching extrinsics; a cursor failure aborts the scan.
func (s *MongoStore) ScanRemarks(ctx context.Context, filter models.RemarkFilter, fn func(models.Remark) error) error {
	opts := options.Find()
	if sort := s.sortOrder(); len(sort) > 0 {
		opts.SetSort(sort)
	}
	cur, err := s.coll.Find(ctx, s.buildFilter(filter), opts)
	if err != nil {
		return fmt.Errorf("find remarks: %w", err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		r, ok := s.decodeRemark(cur.Current)
		if !ok {
			s.logger.Debug("extrinsic without remark or signer skipped", "operation", "storage.scan")
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (s *MongoStore) buildFilter(f models.RemarkFilter) bson.D {
	doc := bson.D{{Key: "method", Value: "remark"}}
	if f.PayloadPattern != "" {
		doc = append(doc, bson.E{Key: "args.remark", Value: bson.D{
			{Key: "$regex", Value: f.PayloadPattern},
			{Key: "$options", Value: "i"},
		}})
	}
	if f.Sender != "" {
		doc = append(doc, bson.E{Key: "signer.Id", Value: f.Sender})
	}
	if f.FromBlock > 0 && s.cfg.BlockField != "" {
		doc = append(doc, bson.E{Key: s.cfg.BlockField, Value: bson.D{{Key: "$gte", Value: int64(f.FromBlock)}}})
	}
	return doc
}

func (s *MongoStore) sortOrder() bson.D {
	var sort bson.D
	if s.cfg.BlockField != "" {
		sort = append(sort, bson.E{Key: s.cfg.BlockField, Value: 1})
	}
	if s.cfg.IndexField != "" {
		sort = append(sort, bson.E{Key: s.cfg.IndexField, Value: 1})
	}
	return sort
}

func (s *MongoStore) decodeRemark(doc bson.Raw) (models.Remark, bool) {
	payload, ok := doc.Lookup("args", "remark").StringValueOK()
	if !ok {
		return models.Remark{}, false
	}
	sender, ok := doc.Lookup("signer", "Id").StringValueOK()
	if !ok {
		return models.Remark{}, false
	}
	r := models.Remark{Sender: sender, PayloadHex: payload}
	if s.cfg.BlockField != "" {
		if n, ok := doc.Lookup(strings.Split(s.cfg.BlockField, ".")...).AsInt64OK(); ok && n >= 0 {
			r.Block = uint64(n)
		}
	}
	if s.cfg.IndexField != "" {
		if n, ok := doc.Lookup(strings.Split(s.cfg.IndexField, ".")...).AsInt64OK(); ok && n >= 0 {
			r.Index = uint32(n)
		}
	}
	return r, true
}
