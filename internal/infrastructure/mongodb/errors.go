package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
)

// wrapError turns driver failures that are worth retrying into TransientError
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransientMongoError(err) {
		return domain.NewTransientError(op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isTransientMongoError(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel("TransientTransactionError") ||
			serverErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}

// isInfrastructureFailure reports errors that say something about the
// database's health rather than about the request
func isInfrastructureFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, domain.ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded) ||
		isTransientMongoError(err)
}
