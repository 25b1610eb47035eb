package mssql

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"migrate/driver"
)

func newTestDriver(t *testing.T, cfg driver.Config) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	return &Driver{Base: driver.NewBase(db, dialect{}, cfg)}, mock
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	if got := (dialect{}).QuoteIdent("users"); got != "[users]" {
		t.Fatalf("quote = %q", got)
	}
	if got := (dialect{}).QuoteIdent("od]d"); got != "[od]]d]" {
		t.Fatalf("bracket doubling = %q", got)
	}
}

func TestMapType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec driver.ColumnSpec
		want string
	}{
		{driver.ColumnSpec{Type: driver.DateTime}, "DATETIME2"},
		{driver.ColumnSpec{Type: driver.Boolean}, "BIT"},
		{driver.ColumnSpec{Type: driver.Blob}, "VARBINARY(MAX)"},
		{driver.ColumnSpec{Type: driver.Integer}, "INTEGER"},
	}
	for _, tt := range tests {
		if got := (dialect{}).MapType(tt.spec); got != tt.want {
			t.Fatalf("MapType(%s) = %q, want %q", tt.spec.Type, got, tt.want)
		}
	}
}

// TestAddColumn_NoColumnKeyword: T-SQL uses ADD, not ADD COLUMN.
func TestAddColumn_NoColumnKeyword(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	mock.ExpectExec("ALTER TABLE [users] ADD [nick] VARCHAR (255) NOT NULL").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, d.AddColumn(context.Background(), "users", "nick",
		driver.ColumnSpec{Type: driver.String, NotNull: true}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameTable_SpRename(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	mock.ExpectExec("EXEC sp_rename 'old_events', 'events'").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, d.RenameTable(context.Background(), "old_events", "events"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameColumn_SpRename(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	mock.ExpectExec("EXEC sp_rename 'users.login', 'username', 'COLUMN'").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, d.RenameColumn(context.Background(), "users", "login", "username"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeColumn_AlterColumn(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	mock.ExpectExec("ALTER TABLE [users] ALTER COLUMN [age] INTEGER  NOT NULL").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, d.ChangeColumn(context.Background(), "users", "age",
		driver.ColumnSpec{Type: driver.Integer, NotNull: true}))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestChangeColumn_RequiresType: the type must be restated; a type-less spec
// is rejected before any SQL is built.
func TestChangeColumn_RequiresType(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	err := d.ChangeColumn(context.Background(), "users", "age", driver.ColumnSpec{NotNull: true})
	if err == nil || !strings.Contains(err.Error(), "requires the column type") {
		t.Fatalf("err = %v, want restate-type error", err)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveIndex_RequiresTable(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	err := d.RemoveIndex(context.Background(), "", "users_email_idx")
	if err == nil || !strings.Contains(err.Error(), "requires a table name") {
		t.Fatalf("err = %v, want table-name error", err)
	}

	mock.ExpectExec("DROP INDEX [users_email_idx] ON [users]").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, d.RemoveIndex(context.Background(), "users", "users_email_idx"))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestAll_PlaceholderRewrite: `?` markers become @p1..@pN, and bracket
// escape markers pass through as native quoting.
func TestAll_PlaceholderRewrite(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	mock.ExpectQuery("SELECT [name] FROM [users] WHERE id = @p1 AND active = @p2").
		WithArgs(int64(7), true).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ada"))

	rows, err := d.All(context.Background(),
		"SELECT [name] FROM [users] WHERE id = ? AND active = ?", int64(7), true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMigrationsTable_Idempotent(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	lookup := "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1"

	mock.ExpectQuery(lookup).WithArgs("migrations").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}))
	mock.ExpectExec("CREATE TABLE [migrations] (" +
		"[id] INTEGER  PRIMARY KEY IDENTITY(1,1) NOT NULL, " +
		"[name] VARCHAR (255) NOT NULL, " +
		"[run_on] DATETIME2  NOT NULL)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lookup).WithArgs("migrations").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("migrations"))

	ctx := context.Background()
	require.NoError(t, d.CreateMigrationsTable(ctx))
	require.NoError(t, d.CreateMigrationsTable(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	t.Parallel()

	got := dsn(driver.Config{User: "sa", Password: "pw", Database: "appdb"})
	if want := "sqlserver://sa:pw@localhost:1433?database=appdb"; got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
	if got := dsn(driver.Config{DSN: "sqlserver://sa:pw@db:1433?database=x"}); got != "sqlserver://sa:pw@db:1433?database=x" {
		t.Fatalf("explicit DSN not honored: %q", got)
	}
}
