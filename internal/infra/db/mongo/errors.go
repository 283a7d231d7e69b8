package mongo

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"staybook/internal/app/uow"
)

const writeConflictCode = 112

// mapWriteErr turns transaction write conflicts into uow.ErrConcurrentUpdate so the
// unit is replayed against fresh state.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorCode(writeConflictCode) || se.HasErrorLabel("TransientTransactionError") {
			return fmt.Errorf("%w: %w", uow.ErrConcurrentUpdate, err)
		}
	}
	return err
}

func isDuplicateOn(err error, index string) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), index)
}
