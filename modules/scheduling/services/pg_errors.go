package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func mapPgErrorToServiceError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, CodeNotFound, "not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		if pgErr.ConstraintName == "mobilization_assignments_mobilization_id_resource_id_key" {
			return newServiceError(http.StatusConflict, CodeAlreadyAssigned, "resource already assigned to mobilization", err)
		}
		return newServiceError(http.StatusConflict, CodeAlreadyAssigned, "unique constraint violated", err)
	case "23P01": // exclusion_violation
		recordWriteConflict("overlap")
		return newServiceError(http.StatusConflict, CodeOverlap, "time window overlap", err)
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		return newServiceError(http.StatusUnprocessableEntity, CodeReferenceNotFound, "referenced record not found", err)
	case "23514": // check_violation
		recordWriteConflict("check")
		return newServiceError(http.StatusUnprocessableEntity, CodeInvalidRequest, "check constraint violated", err)
	default:
		return newServiceError(http.StatusInternalServerError, CodeInternal, fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}

// notFoundAs replaces the generic 404 with a specific code and message.
func notFoundAs(err error, code, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, code, message, err)
	}
	return mapPgErrorToServiceError(err)
}
