package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/semmidev/dbkeeper/internal/domain"
)

type PgxInspector struct{}

func NewPgxInspector() *PgxInspector {
	return &PgxInspector{}
}

func connConfig(desc domain.DumpDescriptor) (*pgx.ConnConfig, error) {
	sslMode := desc.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		desc.Host, desc.Port, desc.User, desc.DatabaseName, sslMode)

	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	cfg.Password = desc.Password
	return cfg, nil
}

func (i *PgxInspector) connect(ctx context.Context, desc domain.DumpDescriptor) (*pgx.Conn, error) {
	cfg, err := connConfig(desc)
	if err != nil {
		return nil, err
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", desc.DatabaseName, err)
	}
	return conn, nil
}

// ListTables returns every base table of the descriptor's schema with its exact
// row count.
func (i *PgxInspector) ListTables(ctx context.Context, desc domain.DumpDescriptor) ([]domain.TableStat, error) {
	conn, err := i.connect(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.WithoutCancel(ctx))

	schema := desc.Schema
	if schema == "" {
		schema = "public"
	}

	rows, err := conn.Query(ctx,
		`SELECT schemaname, tablename FROM pg_catalog.pg_tables WHERE schemaname = $1 ORDER BY tablename`,
		schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TableStat, error) {
		var t domain.TableStat
		err := row.Scan(&t.Schema, &t.Name)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tables: %w", err)
	}

	for idx := range tables {
		t := &tables[idx]
		query := "SELECT count(*) FROM " + pgx.Identifier{t.Schema, t.Name}.Sanitize()
		if err := conn.QueryRow(ctx, query).Scan(&t.Rows); err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", t.QualifiedName(), err)
		}
	}

	return tables, nil
}

func (i *PgxInspector) Ping(ctx context.Context, desc domain.DumpDescriptor) error {
	conn, err := i.connect(ctx, desc)
	if err != nil {
		return fmt.Errorf("postgresql ping failed: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("postgresql ping failed: %w", err)
	}
	return nil
}
