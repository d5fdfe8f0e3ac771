package settlement

import (
	"fmt"
	"math"
)

// BufferMillis is added to every user expiry before it is signed (14 days)
const BufferMillis int64 = 14 * 24 * 60 * 60 * 1000

// SettlementExpiration converts a user-facing expiry in epoch millis into
// the settlement expiration in epoch seconds: ceil((expiry + 14d) / 1000)
func SettlementExpiration(expiryMillis int64) (uint64, error) {
	if expiryMillis < 0 {
		return 0, fmt.Errorf("%w: negative expiry %d", ErrInvalidInput, expiryMillis)
	}
	if expiryMillis > math.MaxInt64-BufferMillis-999 {
		return 0, fmt.Errorf("%w: expiry %d out of range", ErrInvalidInput, expiryMillis)
	}
	return uint64((expiryMillis + BufferMillis + 999) / 1000), nil
}
