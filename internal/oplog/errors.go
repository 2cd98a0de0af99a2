package oplog

import (
	"errors"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
)

func asOperationError(err error) (booking.OperationError, bool) {
	var operationError booking.OperationError
	if errors.As(err, &operationError) {
		return operationError, true
	}
	return booking.OperationError{}, false
}
