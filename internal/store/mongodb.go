package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"logworker/pkg/models"
)

const BackendMongoDB = "mongodb"

type mongoDocument struct {
	ID  string   `bson:"_id"`
	Doc document `bson:",inline"`
}

// MongoStore keeps one document per record, with the namespace path as _id.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{collection: db.Collection(collection)}
}

func (s *MongoStore) Put(ctx context.Context, tenantID, logID string, rec models.ProcessedRecord) error {
	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return newError(BackendMongoDB, "put", KindInvalidKey, err)
	}

	doc := mongoDocument{ID: key.Path(), Doc: newDocument(key, rec)}
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return newError(BackendMongoDB, "put", classifyMongo(err), err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, tenantID, logID string) (models.ProcessedRecord, error) {
	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return models.ProcessedRecord{}, newError(BackendMongoDB, "get", KindInvalidKey, err)
	}

	var doc mongoDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": key.Path()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ProcessedRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ProcessedRecord{}, newError(BackendMongoDB, "get", classifyMongo(err), err)
	}

	rec, err := doc.Doc.record()
	if err != nil {
		return models.ProcessedRecord{}, newError(BackendMongoDB, "get", KindEncoding, err)
	}
	return rec, nil
}

var mongoPermissionCodes = map[int32]bool{
	13: true, // Unauthorized
	18: true, // AuthenticationFailed
}

var mongoQuotaCodes = map[int32]bool{
	12501: true, // QuotaExceeded
	14031: true, // OutOfDiskSpace
}

func classifyMongo(err error) ErrorKind {
	if kind := classifyCommon(err); kind != "" {
		return kind
	}

	if mongo.IsTimeout(err) {
		return KindTimeout
	}
	if mongo.IsNetworkError(err) {
		return KindConnection
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch {
		case mongoPermissionCodes[cmdErr.Code]:
			return KindPermission
		case mongoQuotaCodes[cmdErr.Code]:
			return KindQuota
		case cmdErr.Code == 26: // NamespaceNotFound
			return KindNotFoundTarget
		case cmdErr.HasErrorLabel("RetryableWriteError"):
			return KindUnavailable
		}
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) && writeErr.HasErrorLabel("RetryableWriteError") {
		return KindUnavailable
	}

	if errors.Is(err, mongo.ErrClientDisconnected) {
		return KindUnavailable
	}

	return KindUnknown
}
