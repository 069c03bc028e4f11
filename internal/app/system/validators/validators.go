// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/donorlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Core collections this app uses
	ensure("users", usersSchema())
	ensure("ngos", ngosSchema())
	ensure("camp_news", campNewsSchema())

	// Chat collections must exist before change streams can watch them.
	ensure("chats", chatsSchema())
	ensure("messages", messagesSchema())

	// These don't strictly need validators; we still ensure the collections exist.
	ensure("camp_interest", nil)
	ensure("admins", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

// nonBlank matches a string with at least one non-space character.
var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "email_ci", "name", "blood_group", "is_available"},
			"properties": bson.M{
				"email":        nonBlank,
				"email_ci":     nonBlank,
				"name":         nonBlank,
				"blood_group":  bson.M{"enum": bloodGroupEnum()},
				"is_available": bson.M{"bsonType": "bool"},
				"location":     geoPointSchema(),
			},
		},
	}
}

func ngosSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "name", "registration_number", "verification_status", "is_active"},
			"properties": bson.M{
				"user_id":             bson.M{"bsonType": "objectId"},
				"name":                nonBlank,
				"registration_number": nonBlank,
				"verification_status": bson.M{"enum": bson.A{"pending", "verified", "rejected"}},
				"is_verified":         bson.M{"bsonType": "bool"},
				"is_active":           bson.M{"bsonType": "bool"},
			},
		},
	}
}

func campNewsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"ngo_id", "title", "camp_date", "status", "views", "interested_count"},
			"properties": bson.M{
				"ngo_id":           bson.M{"bsonType": "objectId"},
				"title":            nonBlank,
				"camp_date":        bson.M{"bsonType": "date"},
				"status":           bson.M{"enum": bson.A{"pending", "approved", "rejected"}},
				"views":            bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
				"interested_count": bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
				"location":         geoPointSchema(),
			},
		},
	}
}

func chatsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"participants"},
			"properties": bson.M{
				"_id": nonBlank,
				"participants": bson.M{
					"bsonType": "array",
					"minItems": 2,
					"maxItems": 2,
					"items":    nonBlank,
				},
			},
		},
	}
}

func messagesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"chat_id", "sender_id", "message", "timestamp"},
			"properties": bson.M{
				"chat_id":   nonBlank,
				"sender_id": nonBlank,
				"message":   nonBlank,
				"timestamp": bson.M{"bsonType": "date"},
				"read":      bson.M{"bsonType": "bool"},
			},
		},
	}
}

func geoPointSchema() bson.M {
	return bson.M{
		"bsonType": bson.A{"object", "null"},
		"required": bson.A{"lat", "lng"},
		"properties": bson.M{
			"lat": bson.M{"bsonType": "double", "minimum": -90, "maximum": 90},
			"lng": bson.M{"bsonType": "double", "minimum": -180, "maximum": 180},
		},
	}
}

func bloodGroupEnum() bson.A {
	out := make(bson.A, 0, len(models.BloodGroups))
	for _, g := range models.BloodGroups {
		out = append(out, g)
	}
	return out
}
