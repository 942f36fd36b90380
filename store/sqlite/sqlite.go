/*
Package sqlite provides a SQLite-backed implementation of billing.Store.

PURPOSE:
  Implements the full persistence surface (properties, tenants, utility
  entries, allocations, billing periods, audit trail) using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  properties        Managed rental properties
  tenants           Lease records (dates, area, headcount, rent)
  utility_entries   Monthly utility bills
  allocations       Per-tenant shares of a bill (replaced as a batch)
  billing_periods   One row per (property, month, year), upserted
  audit_trail       Append-only billing period history

CORRECTNESS-CRITICAL BITS:
  - ReplaceAllocations runs DELETE + INSERTs inside one database
    transaction. A crash between delete and insert cannot leave an entry
    with a partial allocation set.
  - billing_periods carries a UNIQUE(property_id, year, month) index and
    is written with ON CONFLICT DO UPDATE, so concurrent calculations
    cannot create duplicate period rows.
  - audit_trail has no UPDATE or DELETE statements. Ever.

MONEY AND DATES:
  Decimal amounts are stored as TEXT (exact string round-trip through
  shopspring/decimal). Dates are TEXT in RFC3339; day-granularity fields
  use the date portion only.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/rental.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: Interface definitions and contracts
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hearth/rental-engine/billing"
)

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The sqlite3 driver is not safe for concurrent writes on one
	// connection; serialize at the pool level.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL REFERENCES properties(id),
		name TEXT NOT NULL,
		room_area TEXT NOT NULL,
		number_of_people INTEGER NOT NULL,
		move_in_date TEXT NOT NULL,
		move_out_date TEXT,
		occupancy_status TEXT NOT NULL,
		rent_amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tenants_property
		ON tenants(property_id);

	CREATE TABLE IF NOT EXISTS utility_entries (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL REFERENCES properties(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		utility_type TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		allocation_method TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_utility_entries_property_month
		ON utility_entries(property_id, year, month);

	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		utility_entry_id TEXT NOT NULL REFERENCES utility_entries(id),
		allocated_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_entry
		ON allocations(utility_entry_id);
	-- One allocation per tenant per bill; the batch replace keeps this
	-- true, the index enforces it against bugs.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_allocations_entry_tenant
		ON allocations(utility_entry_id, tenant_id);

	CREATE TABLE IF NOT EXISTS billing_periods (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL REFERENCES properties(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		total_rent TEXT NOT NULL,
		total_utilities TEXT NOT NULL,
		calculation_status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one logical billing period per property-month.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_billing_periods_unique
		ON billing_periods(property_id, year, month);

	CREATE TABLE IF NOT EXISTS audit_trail (
		id TEXT PRIMARY KEY,
		billing_period_id TEXT NOT NULL,
		action TEXT NOT NULL,
		details_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_trail_period
		ON audit_trail(billing_period_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROPERTY STORE
// =============================================================================

func (s *Store) SaveProperty(ctx context.Context, p billing.Property) error {
	query := `
		INSERT INTO properties (id, name, address, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Address, formatTime(p.CreatedAt))
	return err
}

func (s *Store) GetProperty(ctx context.Context, id billing.PropertyID) (*billing.Property, error) {
	var p billing.Property
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, address, created_at FROM properties WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Address, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func (s *Store) ListProperties(ctx context.Context) ([]billing.Property, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, address, created_at FROM properties ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Property
	for rows.Next() {
		var p billing.Property
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// TENANT STORE
// =============================================================================

func (s *Store) SaveTenant(ctx context.Context, t billing.Tenant) error {
	var moveOut *string
	if t.MoveOutDate != nil {
		d := formatDate(*t.MoveOutDate)
		moveOut = &d
	}

	query := `
		INSERT INTO tenants
		(id, property_id, name, room_area, number_of_people, move_in_date,
		 move_out_date, occupancy_status, rent_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			name = excluded.name,
			room_area = excluded.room_area,
			number_of_people = excluded.number_of_people,
			move_in_date = excluded.move_in_date,
			move_out_date = excluded.move_out_date,
			occupancy_status = excluded.occupancy_status,
			rent_amount = excluded.rent_amount,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.PropertyID, t.Name,
		t.RoomArea.String(), t.NumberOfPeople,
		formatDate(t.MoveInDate), moveOut,
		t.Status, t.RentAmount.String(),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	return err
}

func (s *Store) GetTenant(ctx context.Context, id billing.TenantID) (*billing.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, name, room_area, number_of_people, move_in_date,
		       move_out_date, occupancy_status, rent_amount, created_at, updated_at
		FROM tenants WHERE id = ?`, id)

	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTenantsByProperty(ctx context.Context, propertyID billing.PropertyID) ([]billing.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, name, room_area, number_of_people, move_in_date,
		       move_out_date, occupancy_status, rent_amount, created_at, updated_at
		FROM tenants WHERE property_id = ? ORDER BY id`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*billing.Tenant, error) {
	var (
		t         billing.Tenant
		roomArea  string
		moveIn    string
		moveOut   sql.NullString
		rent      string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&t.ID, &t.PropertyID, &t.Name, &roomArea, &t.NumberOfPeople,
		&moveIn, &moveOut, &t.Status, &rent, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.RoomArea = mustDecimal(roomArea)
	t.RentAmount = mustDecimal(rent)
	t.MoveInDate = parseDate(moveIn)
	if moveOut.Valid {
		d := parseDate(moveOut.String)
		t.MoveOutDate = &d
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// =============================================================================
// UTILITY STORE
// =============================================================================

func (s *Store) SaveUtilityEntry(ctx context.Context, e billing.UtilityEntry) error {
	query := `
		INSERT INTO utility_entries
		(id, property_id, year, month, utility_type, total_amount,
		 allocation_method, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			year = excluded.year,
			month = excluded.month,
			utility_type = excluded.utility_type,
			total_amount = excluded.total_amount,
			allocation_method = excluded.allocation_method,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.PropertyID, e.Month.Year, int(e.Month.Month),
		e.UtilityType, e.TotalAmount.String(), e.Method,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	return err
}

func (s *Store) GetUtilityEntry(ctx context.Context, id billing.UtilityEntryID) (*billing.UtilityEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, year, month, utility_type, total_amount,
		       allocation_method, created_at, updated_at
		FROM utility_entries WHERE id = ?`, id)

	e, err := scanUtilityEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) ListUtilityEntries(ctx context.Context, propertyID billing.PropertyID, bm billing.BillingMonth) ([]billing.UtilityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, year, month, utility_type, total_amount,
		       allocation_method, created_at, updated_at
		FROM utility_entries
		WHERE property_id = ? AND year = ? AND month = ?
		ORDER BY id`, propertyID, bm.Year, int(bm.Month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.UtilityEntry
	for rows.Next() {
		e, err := scanUtilityEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanUtilityEntry(row rowScanner) (*billing.UtilityEntry, error) {
	var (
		e         billing.UtilityEntry
		year      int
		month     int
		amount    string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&e.ID, &e.PropertyID, &year, &month, &e.UtilityType,
		&amount, &e.Method, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.Month = billing.NewBillingMonth(year, month)
	e.TotalAmount = mustDecimal(amount)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// ReplaceAllocations swaps the allocation set of a utility entry inside
// one database transaction: delete-then-insert, all-or-nothing.
func (s *Store) ReplaceAllocations(ctx context.Context, entryID billing.UtilityEntryID, allocations []billing.Allocation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM allocations WHERE utility_entry_id = ?", entryID); err != nil {
		return fmt.Errorf("failed to delete allocations: %w", err)
	}

	for _, a := range allocations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO allocations (id, tenant_id, utility_entry_id, allocated_amount, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			a.ID, a.TenantID, a.UtilityEntryID,
			a.Amount.String(), formatTime(a.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert allocation: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) Allocations(ctx context.Context, entryID billing.UtilityEntryID) ([]billing.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, utility_entry_id, allocated_amount, created_at
		FROM allocations WHERE utility_entry_id = ? ORDER BY tenant_id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Allocation
	for rows.Next() {
		var a billing.Allocation
		var amount, createdAt string
		if err := rows.Scan(&a.ID, &a.TenantID, &a.UtilityEntryID, &amount, &createdAt); err != nil {
			return nil, err
		}
		a.Amount = mustDecimal(amount)
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// PERIOD STORE
// =============================================================================

// UpsertBillingPeriod writes the one row per (property, year, month).
// On conflict the existing row is updated in place; its id and
// created_at survive.
func (s *Store) UpsertBillingPeriod(ctx context.Context, p billing.BillingPeriod) (*billing.BillingPeriod, error) {
	now := formatTime(time.Now().UTC())
	query := `
		INSERT INTO billing_periods
		(id, property_id, year, month, total_rent, total_utilities,
		 calculation_status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(property_id, year, month) DO UPDATE SET
			total_rent = excluded.total_rent,
			total_utilities = excluded.total_utilities,
			calculation_status = excluded.calculation_status,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.PropertyID, p.Month.Year, int(p.Month.Month),
		p.TotalRent.String(), p.TotalUtilities.String(),
		p.Status, p.Notes, now, now,
	)
	if err != nil {
		return nil, err
	}
	return s.FindBillingPeriod(ctx, p.PropertyID, p.Month)
}

func (s *Store) GetBillingPeriod(ctx context.Context, id billing.BillingPeriodID) (*billing.BillingPeriod, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, year, month, total_rent, total_utilities,
		       calculation_status, notes, created_at, updated_at
		FROM billing_periods WHERE id = ?`, id)
	return scanBillingPeriod(row)
}

func (s *Store) FindBillingPeriod(ctx context.Context, propertyID billing.PropertyID, bm billing.BillingMonth) (*billing.BillingPeriod, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, year, month, total_rent, total_utilities,
		       calculation_status, notes, created_at, updated_at
		FROM billing_periods WHERE property_id = ? AND year = ? AND month = ?`,
		propertyID, bm.Year, int(bm.Month))
	return scanBillingPeriod(row)
}

func scanBillingPeriod(row rowScanner) (*billing.BillingPeriod, error) {
	var (
		p         billing.BillingPeriod
		year      int
		month     int
		rent      string
		utilities string
		notes     sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&p.ID, &p.PropertyID, &year, &month, &rent, &utilities,
		&p.Status, &notes, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Month = billing.NewBillingMonth(year, month)
	p.TotalRent = mustDecimal(rent)
	p.TotalUtilities = mustDecimal(utilities)
	p.Notes = notes.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// =============================================================================
// AUDIT LOG - Append-only. No UPDATE. No DELETE. Ever.
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry billing.AuditEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_trail (id, billing_period_id, action, details_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.BillingPeriodID, entry.Action,
		string(detailsJSON), formatTime(entry.CreatedAt))
	return err
}

// AuditTrail returns entries newest-first. Ordering falls back to the id
// for entries created within the same timestamp tick.
func (s *Store) AuditTrail(ctx context.Context, periodID billing.BillingPeriodID) ([]billing.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, billing_period_id, action, details_json, created_at
		FROM audit_trail
		WHERE billing_period_id = ?
		ORDER BY created_at DESC, rowid DESC`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.AuditEntry
	for rows.Next() {
		var e billing.AuditEntry
		var detailsJSON, createdAt string
		if err := rows.Scan(&e.ID, &e.BillingPeriodID, &e.Action, &detailsJSON, &createdAt); err != nil {
			return nil, err
		}
		if detailsJSON != "" {
			json.Unmarshal([]byte(detailsJSON), &e.Details)
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
