package payment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

const legacyProcedure = `CREATE OR REPLACE FUNCTION public.konfirmasi_pembayaran(p_id_reservasi bigint)
 RETURNS text
 LANGUAGE plpgsql
AS $function$
begin
  update reservasi set status = 'terkonfirmasi' where id_reservasi = p_id_reservasi;
  update kuota_harian set kuota_terpesan = kuota_terpesan + v_jumlah where tanggal_kuota = v_tanggal;
  return 'sukses';
end;
$function$`

const unguardedProcedure = `CREATE OR REPLACE FUNCTION public.konfirmasi_pembayaran(p_id_reservasi bigint)
 RETURNS text
AS $function$
begin
  update reservasi set status = 'terkonfirmasi' where id_reservasi = p_id_reservasi;
  return 'sukses';
end;
$function$`

func TestInspectProcedure(t *testing.T) {
	shipped, err := os.ReadFile(filepath.Join("..", "..", ProcedureMigration))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}

	cases := []struct {
		name    string
		def     string
		outdate bool
	}{
		{name: "shipped migration", def: string(shipped)},
		{name: "increments quota on confirm", def: legacyProcedure, outdate: true},
		{name: "confirms any status", def: unguardedProcedure, outdate: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := inspectProcedure(tc.def)
			if tc.outdate != errors.Is(err, ErrProcedureOutdated) {
				t.Fatalf("expected outdated=%v, got %v", tc.outdate, err)
			}
		})
	}
}

func TestCheckProcedureReadsDeployedDefinition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`pg_get_functiondef`).
		WillReturnRows(pgxmock.NewRows([]string{"pg_get_functiondef"}).AddRow(legacyProcedure))

	if err := CheckProcedure(context.Background(), mock); !errors.Is(err, ErrProcedureOutdated) {
		t.Fatalf("expected ErrProcedureOutdated, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
