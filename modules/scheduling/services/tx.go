package services

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/pkg/composables"
)

// TxRunner runs fn inside a transaction. Repositories pick the transaction
// up from the context.
type TxRunner func(ctx context.Context, fn func(txCtx context.Context) error) error

// NoTx runs fn directly; used with in-memory repositories.
func NoTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func inTx[T any](ctx context.Context, run TxRunner, tenantID uuid.UUID, fn func(txCtx context.Context) (T, error)) (T, error) {
	var out T
	if run == nil {
		run = composables.InTenantTx
	}
	err := run(composables.WithTenantID(ctx, tenantID), func(txCtx context.Context) error {
		var innerErr error
		out, innerErr = fn(txCtx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func requireTenant(tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return newServiceError(http.StatusBadRequest, CodeTenantRequired, "tenant_id is required", nil)
	}
	return nil
}
