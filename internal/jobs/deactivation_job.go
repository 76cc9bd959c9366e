package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/unibox/internal/repository"
)

// DeactivationJob retires accounts whose tokens have actually expired so the
// reconciler and send paths stop attempting calls that can only 401.
type DeactivationJob struct {
	accounts repository.PlatformAccountRepository
}

func NewDeactivationJob(accounts repository.PlatformAccountRepository) *DeactivationJob {
	return &DeactivationJob{accounts: accounts}
}

func (j *DeactivationJob) DeactivateExpired() {
	ctx := context.Background()

	count, err := j.accounts.DeactivateExpired(ctx, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if count > 0 {
		slog.Info("deactivated expired accounts", "count", count)
	}
}
