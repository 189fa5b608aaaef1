package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireClassificationLock serializes classification per business across
// instances using MySQL advisory locks: the engine is a single-writer batch
// job, two concurrent runs over the same business would race on shared
// evidence.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the waterfall transactions.
func AcquireClassificationLock(db *gorm.DB, businessId string) error {
	lockName := fmt.Sprintf("settlement:%s", businessId)
	var ok int
	if err := db.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire classification lock for business_id=%s", businessId)
	}
	return nil
}

func ReleaseClassificationLock(db *gorm.DB, businessId string) {
	lockName := fmt.Sprintf("settlement:%s", businessId)
	var _ok int
	_ = db.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
