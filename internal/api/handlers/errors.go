package handlers

import (
	stderrors "errors"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/api/dto"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/errors"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/middleware"
)

// toAppError translates a domain error into the platform error envelope. It
// returns nil for errors without a domain mapping.
func toAppError(err error) *errors.AppError {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		transitionErr *domain.InvalidStateTransitionError
		assignedErr   *domain.CrateAssignedError
		conflictErr   *domain.ConcurrencyConflictError
		existsErr     *domain.AlreadyExistsError
	)

	switch {
	case stderrors.As(err, &validationErr):
		appErr := errors.ErrValidation(validationErr.Error()).Wrap(err)
		if validationErr.Field != "" {
			appErr = appErr.WithDetail(validationErr.Field, validationErr.Reason)
		}
		return appErr
	case stderrors.As(err, &notFoundErr):
		appErr := errors.ErrNotFoundWithID(notFoundErr.Resource, notFoundErr.Key).Wrap(err)
		if notFoundErr.Batch != "" {
			appErr.Message = notFoundErr.Error()
			appErr = appErr.WithDetail("batchCode", notFoundErr.Batch)
		}
		return appErr
	case stderrors.As(err, &transitionErr):
		appErr := errors.ErrInvalidStateTransition(transitionErr.Error(), string(transitionErr.Current)).Wrap(err)
		return appErr.WithDetail("action", transitionErr.Action)
	case stderrors.As(err, &assignedErr):
		return errors.ErrCrateAlreadyAssigned(assignedErr.Error()).
			WithDetail("batchId", assignedErr.BatchID).
			Wrap(err)
	case stderrors.Is(err, domain.ErrDuplicateReconciliation):
		return errors.ErrDuplicateReconciliation(err.Error()).Wrap(err)
	case stderrors.As(err, &conflictErr):
		return errors.ErrConcurrencyConflict(conflictErr.Error()).Wrap(err)
	case stderrors.As(err, &existsErr):
		return errors.ErrConflict(existsErr.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrSequenceExhausted):
		return errors.ErrSequenceExhausted(err.Error()).Wrap(err)
	default:
		return nil
	}
}

// respondError writes err using the responder. A duplicate reconciliation also
// carries the record stored by the first attempt.
func respondError(responder *middleware.ErrorResponder, err error) {
	var dupErr *domain.DuplicateReconciliationError
	switch {
	case stderrors.As(err, &dupErr) && dupErr.Record != nil:
		responder.RespondWithExisting(toAppError(err), dto.ToRecordResponse(dupErr.Record))
	case stderrors.Is(err, domain.ErrTransient):
		responder.RespondTransient("temporarily unavailable, retry the request", err)
	default:
		if appErr := toAppError(err); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		responder.RespondWithError(err)
	}
}
