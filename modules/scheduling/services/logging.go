package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/mobsched/pkg/composables"
)

// logWithFields logs through the request logger, tagged with the tenant
// when one is bound to ctx.
func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger := composables.UseLogger(ctx)
	if logger == nil || !logger.Logger.IsLevelEnabled(level) {
		return
	}
	if tenantID, err := composables.UseTenantID(ctx); err == nil {
		logger = logger.WithField("tenant_id", tenantID.String())
	}
	logger.WithFields(fields).Log(level, msg)
}
