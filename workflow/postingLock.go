package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireCompanyPostingLock serializes posting per company across instances
// using MySQL advisory locks. GET_LOCK is session-scoped, not
// transaction-scoped, so the lock must be taken and released on the posting
// transaction's own connection while the transaction is still live; a
// release attempted after Commit or Rollback never reaches MySQL and the
// pooled session would keep holding the lock.
//
// The returned release func is idempotent: defer it for the error paths and
// call it explicitly right before Commit.
func AcquireCompanyPostingLock(tx *gorm.DB, companyId string) (func(), error) {
	lockName := fmt.Sprintf("posting:%s", companyId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return nil, err
	}
	if ok != 1 {
		return nil, fmt.Errorf("could not acquire posting lock for company_id=%s", companyId)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		var unused int
		_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&unused).Error
	}, nil
}
