// Package txn runs multi-document writes inside a MongoDB transaction when
// the deployment supports one.
//
// Transactions need a replica set or sharded cluster. On a standalone
// server Run executes the same function without a session, so the writes
// land one after another and readers may briefly see the first without the
// second. The fallback is logged once per process.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var fallbackOnce sync.Once

// Run executes fn in a transaction on db's client. fn must be safe to call
// twice: once inside the transaction and, if the server rejects
// transactions, once more without one.
func Run(ctx context.Context, db *mongo.Database, logger *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fallback(ctx, logger, err, fn)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		return fallback(ctx, logger, err, fn)
	}
	return err
}

func fallback(ctx context.Context, logger *zap.Logger, cause error, fn func(ctx context.Context) error) error {
	fallbackOnce.Do(func() {
		if logger != nil {
			logger.Warn("transactions not supported; running multi-document writes sequentially",
				zap.Error(cause))
		}
	})
	return fn(ctx)
}

// IsNotSupported reports whether err means the server cannot run
// transactions, as opposed to the transaction itself failing.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263: // IllegalOperation, IllegalOperation (legacy), OperationNotSupportedInTransaction
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	has := func(s string) bool { return strings.Contains(msg, s) }

	switch {
	case has("transaction") && has("replica set"):
		return true
	case has("session") && has("not supported"):
		return true
	case has("transaction") && has("session"):
		return true
	case has("illegal operation"):
		return true
	}
	return false
}
