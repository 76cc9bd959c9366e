package queue

import (
	"github.com/maheshrc27/unibox/internal/repository"
	"github.com/maheshrc27/unibox/internal/service"
)

type Queue struct {
	pa repository.PlatformAccountRepository
	ss service.SyncService
}

func NewQueue(
	pa repository.PlatformAccountRepository,
	ss service.SyncService) *Queue {
	return &Queue{
		pa: pa,
		ss: ss,
	}
}

const TaskTypeSyncAccount = "sync:account"

type SyncAccountPayload struct {
	AccountID int64 `json:"account_id"`
}
