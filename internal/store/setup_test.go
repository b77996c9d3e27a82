package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db, "../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB, migrationDir string) error {
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

// seeder inserts pricing fixtures. Rule types rt_group (customer_group,
// priority 10), rt_region (region_id, 5) and rt_channel (sales_channel, 1)
// exist once newSeeder returns.
type seeder struct {
	t  *testing.T
	db *sql.DB
}

func newSeeder(t *testing.T, db *sql.DB) *seeder {
	t.Helper()
	s := &seeder{t: t, db: db}
	s.exec(`INSERT INTO rule_type (id, name, rule_attribute, default_priority) VALUES
		('rt_group', 'Customer group', 'customer_group', 10),
		('rt_region', 'Region', 'region_id', 5),
		('rt_channel', 'Sales channel', 'sales_channel', 1)`)
	return s
}

func (s *seeder) exec(query string, args ...any) {
	s.t.Helper()
	if _, err := s.db.Exec(query, args...); err != nil {
		s.t.Fatalf("seed: %v", err)
	}
}

func (s *seeder) priceSet(id string) *seeder {
	s.exec(`INSERT INTO price_set (id) VALUES ($1) ON CONFLICT DO NOTHING`, id)
	return s
}

func (s *seeder) price(psmaID, priceSetID, currency, amount string, min, max *int64, listID *string, rules map[string]string) *seeder {
	s.t.Helper()
	s.priceSet(priceSetID)
	maID := "ma_" + psmaID
	s.exec(`INSERT INTO money_amount (id, currency_code, amount, min_quantity, max_quantity) VALUES ($1, $2, $3, $4, $5)`,
		maID, currency, amount, min, max)
	s.exec(`INSERT INTO price_set_money_amount (id, price_set_id, money_amount_id, price_list_id, number_rules) VALUES ($1, $2, $3, $4, $5)`,
		psmaID, priceSetID, maID, listID, len(rules))
	for rtID, value := range rules {
		s.exec(`INSERT INTO price_rule (id, price_set_money_amount_id, rule_type_id, value) VALUES ($1, $2, $3, $4)`,
			psmaID+"_"+rtID, psmaID, rtID, value)
	}
	return s
}

func (s *seeder) list(id, status string, rules map[string][]string) *seeder {
	s.t.Helper()
	s.exec(`INSERT INTO price_list (id, title, status, number_rules) VALUES ($1, $2, $3, $4)`,
		id, "List "+id, status, len(rules))
	for rtID, values := range rules {
		ruleID := id + "_" + rtID
		s.exec(`INSERT INTO price_list_rule (id, price_list_id, rule_type_id) VALUES ($1, $2, $3)`, ruleID, id, rtID)
		for i, v := range values {
			s.exec(`INSERT INTO price_list_rule_value (id, price_list_rule_id, value) VALUES ($1, $2, $3)`,
				fmt.Sprintf("%s_%d", ruleID, i), ruleID, v)
		}
	}
	return s
}

func strPtr(s string) *string { return &s }
func i64Ptr(i int64) *int64   { return &i }
