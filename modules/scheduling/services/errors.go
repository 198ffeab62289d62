package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fieldcrew/mobsched/pkg/serrors"
)

const (
	CodeInvalidRequest     = "SCHED_INVALID_REQUEST"
	CodeNotFound           = "SCHED_NOT_FOUND"
	CodeAssignmentNotFound = "SCHED_ASSIGNMENT_NOT_FOUND"
	CodeOverlap            = "SCHED_OVERLAP"
	CodeAlreadyAssigned    = "SCHED_ALREADY_ASSIGNED"
	CodeMobilizationLocked = "SCHED_MOBILIZATION_LOCKED"
	CodeHasTimesheets      = "SCHED_MOBILIZATION_HAS_TIMESHEETS"
	CodeTimesheetInvalid   = "SCHED_TIMESHEET_INVALID"
	CodeDuplicateJob       = "SCHED_DUPLICATE_JOB"
	CodeReferenceNotFound  = "SCHED_REFERENCE_NOT_FOUND"
	CodeWorkflowNotFound   = "SCHED_WORKFLOW_NOT_FOUND"
	CodeWorkflowBusy       = "SCHED_WORKFLOW_BUSY"
	CodeWorkflowState      = "SCHED_WORKFLOW_STATE"
	CodeSaveTimeout        = "SCHED_SAVE_TIMEOUT"
	CodeTenantRequired     = "SCHED_TENANT_REQUIRED"
	CodeInternal           = "SCHED_INTERNAL"
)

var (
	ErrSessionNotFound = serrors.NewError(CodeWorkflowNotFound, "workflow session not found", "Scheduling.Errors.WorkflowNotFound")
	ErrSessionBusy     = serrors.NewError(CodeWorkflowBusy, "workflow session is busy", "Scheduling.Errors.WorkflowBusy")
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil || e.Cause.Error() == e.Message {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func invalidRequest(message string, cause error) *ServiceError {
	return newServiceError(http.StatusBadRequest, CodeInvalidRequest, message, cause)
}

// AsServiceError converts err into a ServiceError, mapping database and
// session errors on the way. Unknown errors become 500 SCHED_INTERNAL.
func AsServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	mapped := mapPgErrorToServiceError(err)
	if errors.As(mapped, &svcErr) {
		return svcErr
	}
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return newServiceError(http.StatusNotFound, CodeWorkflowNotFound, "workflow not found", err)
	case errors.Is(err, ErrSessionBusy):
		return newServiceError(http.StatusConflict, CodeWorkflowBusy, "workflow is busy", err)
	}
	return newServiceError(http.StatusInternalServerError, CodeInternal, "internal error", err)
}
