package bol

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bagline-erp/bagline/internal/shared"
)

// NextNumber issues the next BOL number for a supplier by atomically
// incrementing suppliers.next_bol_no and formatting prefix+counter, e.g.
// "YAS1001". It must run inside the same transaction as the BOL insert:
// the row update both reserves the number and serializes concurrent
// issuers on the supplier row, so N concurrent calls get N distinct,
// gap-free numbers.
func NextNumber(ctx context.Context, tx pgx.Tx, supplierID uuid.UUID) (string, error) {
	var prefix string
	var issued int64
	err := tx.QueryRow(ctx, `UPDATE suppliers
SET next_bol_no = next_bol_no + 1, updated_at = NOW()
WHERE id = $1
RETURNING bol_prefix, next_bol_no - 1`, supplierID).Scan(&prefix, &issued)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.NotFound("supplier %s not found", supplierID)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", prefix, issued), nil
}
