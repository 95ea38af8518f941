package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpCollectsChainAndCode(t *testing.T) {
	err := fmt.Errorf("drain: %w", Wrap(CodeDependency, stdErrors.New("timeout"), "remote select"))

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if !d.Retryable {
		t.Fatalf("dependency errors should be retryable")
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_sales_client_ref", TableName: "sales", Message: "duplicate key value"}
	d := Dump(fmt.Errorf("insert sale: %w", pgErr))

	if d.PGCode != "23505" || d.PGConstraint != "ux_sales_client_ref" || d.PGTable != "sales" {
		t.Fatalf("unexpected pg fields: %+v", d)
	}
	fields := d.Fields()
	if fields["pg_code"] != "23505" {
		t.Fatalf("expected pg_code field, got %v", fields["pg_code"])
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump for nil error")
	}
}
