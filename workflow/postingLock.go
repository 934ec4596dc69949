package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireExpenseLock serializes expense bookkeeping per subscription across
// instances using MySQL advisory locks.
// GET_LOCK is connection-scoped: call it on the transaction that does the booking.
func AcquireExpenseLock(tx *gorm.DB, businessId string, subscriptionId int) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", expenseLockName(businessId, subscriptionId)).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire expense lock for business_id=%s subscription_id=%d", businessId, subscriptionId)
	}
	return nil
}

func ReleaseExpenseLock(tx *gorm.DB, businessId string, subscriptionId int) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", expenseLockName(businessId, subscriptionId)).Scan(&_ok).Error
}

func expenseLockName(businessId string, subscriptionId int) string {
	return fmt.Sprintf("expense:%s:%d", businessId, subscriptionId)
}
