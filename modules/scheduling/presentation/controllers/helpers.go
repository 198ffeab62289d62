package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fieldcrew/mobsched/modules/scheduling/services"
	"github.com/fieldcrew/mobsched/pkg/composables"
	"github.com/fieldcrew/mobsched/pkg/constants"
	"github.com/fieldcrew/mobsched/pkg/httpapi"
)

const (
	codeInvalidBody  = "SCHED_INVALID_BODY"
	codeInvalidQuery = "SCHED_INVALID_QUERY"
	codeInvalidPath  = "SCHED_INVALID_PATH"
)

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	_ = httpapi.WriteError(w, status, requestID, code, message)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeServiceError is the one place service failures become HTTP responses.
func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	svcErr := services.AsServiceError(err)
	writeAPIError(w, svcErr.Status, requestID, svcErr.Code, svcErr.Message)
}

// requireTenant reads the tenant resolved by the tenant middleware.
func requireTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	requestID := composables.UseRequestID(r.Context())
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil || tenantID == uuid.Nil {
		writeAPIError(w, http.StatusBadRequest, requestID, services.CodeTenantRequired, "tenant id is required")
		return uuid.Nil, requestID, false
	}
	return tenantID, requestID, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, requestID, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidPath, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// decodeBody decodes and validates a request DTO, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, requestID string, out any) bool {
	if err := decodeJSON(r.Body, out); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, "invalid json body")
		return false
	}
	if err := constants.Validate.Struct(out); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// parseTimeParam accepts YYYY-MM-DD or RFC3339. Empty yields the zero time.
func parseTimeParam(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseOptionalUUID(v string) (*uuid.UUID, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseOptionalBool(v string) (bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
