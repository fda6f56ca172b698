// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig configures the MongoDB store.
type MongoConfig struct {
	URI      string
	Database string

	// Timeout bounds every call the driver makes. Zero leaves the driver default.
	Timeout time.Duration
}

// MongoStore implements Store on a MongoDB database. Bulk writes are sent
// unordered so one rejected document never blocks the rest of the chunk.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database

	mu        sync.RWMutex
	keyFields map[string]string
}

// NewMongoStore connects and pings the server.
func NewMongoStore(ctx context.Context, config MongoConfig) (*MongoStore, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if config.Database == "" {
		config.Database = "bulkload"
	}

	opts := options.Client().ApplyURI(config.URI)
	if config.Timeout > 0 {
		opts.SetTimeout(config.Timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{
		client:    client,
		db:        client.Database(config.Database),
		keyFields: make(map[string]string),
	}, nil
}

// EnsureCollection creates a unique index on the key field.
func (s *MongoStore) EnsureCollection(ctx context.Context, c Collection) error {
	_, err := s.db.Collection(c.Name).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: c.KeyField, Value: 1}},
		Options: options.Index().SetUnique(true).SetName(c.KeyField + "_unique"),
	})
	if err != nil {
		return fmt.Errorf("create index on %s.%s: %w", c.Name, c.KeyField, err)
	}

	s.mu.Lock()
	s.keyFields[c.Name] = c.KeyField
	s.mu.Unlock()
	return nil
}

func (s *MongoStore) keyField(collection string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kf, ok := s.keyFields[collection]
	if !ok {
		return "", fmt.Errorf("collection %q was not ensured", collection)
	}
	return kf, nil
}

// FindByKeys runs one $in query for all keys.
func (s *MongoStore) FindByKeys(ctx context.Context, collection string, keys []string) (map[string]Document, error) {
	kf, err := s.keyField(collection)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Document, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	cur, err := s.db.Collection(collection).Find(ctx, bson.M{kf: bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		delete(raw, "_id")
		key, ok := raw[kf].(string)
		if !ok {
			continue
		}
		out[key] = Document(raw)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

// BulkWrite sends ops as one unordered bulk write.
func (s *MongoStore) BulkWrite(ctx context.Context, collection string, ops []WriteOp) (*BulkResult, error) {
	kf, err := s.keyField(collection)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return &BulkResult{}, nil
	}

	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case OpInsert:
			doc := bson.M(op.Fields.Clone())
			doc[kf] = op.Key
			models = append(models, mongo.NewInsertOneModel().SetDocument(doc))
		case OpUpdate:
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(bson.M{kf: op.Key}).
				SetUpdate(bson.M{"$set": updateSet(kf, op.Fields)}))
		default:
			return nil, fmt.Errorf("unknown op kind %q", op.Kind)
		}
	}

	_, err = s.db.Collection(collection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return bulkResultFromError(ops, err)
}

// updateSet leaves the key out of an update; the filter already pins it.
func updateSet(keyField string, fields Document) bson.M {
	set := bson.M(fields.Clone())
	delete(set, keyField)
	return set
}

const duplicateKeyCode = 11000

// bulkResultFromError maps the driver's per-index write errors back to op
// IDs. Errors that carry no per-op breakdown are returned as-is.
func bulkResultFromError(ops []WriteOp, err error) (*BulkResult, error) {
	res := &BulkResult{}
	if err == nil {
		for _, op := range ops {
			res.ok(op)
		}
		return res, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return nil, err
	}

	failed := make(map[int]string, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		reason := we.Message
		if we.Code == duplicateKeyCode {
			reason = "duplicate key"
		}
		failed[we.Index] = reason
	}
	for i, op := range ops {
		if reason, ok := failed[i]; ok {
			res.fail(op, "%s", reason)
			continue
		}
		res.ok(op)
	}
	return res, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
