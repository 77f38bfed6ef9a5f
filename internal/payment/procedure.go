package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pendakian-services/internal/db"
)

// ProcedureMigration holds the definition of konfirmasi_pembayaran this service expects.
const ProcedureMigration = "migrations/konfirmasi_pembayaran.sql"

var ErrProcedureOutdated = errors.New("konfirmasi_pembayaran is outdated")

// CheckProcedure reads the deployed payment procedure and rejects a definition
// that would count climbers against the daily quota a second time or confirm a
// reservation that is no longer awaiting payment.
func CheckProcedure(ctx context.Context, q db.Querier) error {
	var def string
	err := q.QueryRow(ctx, `select pg_get_functiondef('public.konfirmasi_pembayaran(bigint)'::regprocedure)`).Scan(&def)
	if err != nil {
		return fmt.Errorf("read %s definition: %w", confirmFunction, err)
	}
	return inspectProcedure(def)
}

func inspectProcedure(def string) error {
	body := strings.ToLower(def)
	if strings.Contains(body, "kuota_harian") || strings.Contains(body, "kuota_terpesan") {
		return fmt.Errorf("%w: it still updates kuota_harian; apply %s", ErrProcedureOutdated, ProcedureMigration)
	}
	if !strings.Contains(body, "'menunggu_pembayaran'") {
		return fmt.Errorf("%w: it does not require status menunggu_pembayaran; apply %s", ErrProcedureOutdated, ProcedureMigration)
	}
	return nil
}
