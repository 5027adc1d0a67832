package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/storage"
)

// Ensure Store satisfies the storage.LedgerStore interface at compile time.
var _ storage.LedgerStore = (*Store)(nil)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store provides Postgres-backed persistence for the ledger.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			phone TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			city TEXT NOT NULL DEFAULT '',
			neighbourhood TEXT NOT NULL DEFAULT '',
			birth_date DATE,
			lifetime_points BIGINT NOT NULL DEFAULT 0 CHECK (lifetime_points >= 0),
			redeemable_points BIGINT NOT NULL DEFAULT 0,
			monthly_points BIGINT NOT NULL DEFAULT 0,
			wallet_balance NUMERIC NOT NULL DEFAULT 0 CHECK (wallet_balance >= 0),
			bank_account_ref TEXT NOT NULL DEFAULT '',
			payout_pending BOOLEAN NOT NULL DEFAULT FALSE,
			redeemed_voucher_ids TEXT[] NOT NULL DEFAULT '{}',
			communities TEXT[] NOT NULL DEFAULT '{}',
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT users_redeemable_range CHECK (redeemable_points >= 0 AND redeemable_points <= lifetime_points),
			CONSTRAINT users_monthly_range CHECK (monthly_points >= 0 AND monthly_points <= lifetime_points)
		);`,
		`CREATE INDEX IF NOT EXISTS users_city_idx ON users (city);`,
		`CREATE INDEX IF NOT EXISTS users_neighbourhood_idx ON users (neighbourhood);`,
		`CREATE INDEX IF NOT EXISTS users_birth_date_idx ON users (birth_date);`,
		`CREATE INDEX IF NOT EXISTS users_communities_idx ON users USING GIN (communities);`,
		`CREATE TABLE IF NOT EXISTS machines (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_accepted_scan_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS maintenances (
			id TEXT PRIMARY KEY,
			machine_id TEXT NOT NULL REFERENCES machines(id),
			date TIMESTAMPTZ NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS maintenances_machine_date_idx ON maintenances (machine_id, date);`,
		`CREATE TABLE IF NOT EXISTS scan_credits (
			id TEXT PRIMARY KEY,
			machine_id TEXT NOT NULL REFERENCES machines(id),
			user_id TEXT NOT NULL REFERENCES users(id),
			points BIGINT NOT NULL CHECK (points > 0),
			accepted_at TIMESTAMPTZ NOT NULL,
			UNIQUE (machine_id, accepted_at)
		);`,
		`CREATE INDEX IF NOT EXISTS scan_credits_user_idx ON scan_credits (user_id, accepted_at DESC);`,
		`CREATE TABLE IF NOT EXISTS communities (
			id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			join_code TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS vouchers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			point_cost BIGINT NOT NULL CHECK (point_cost > 0),
			expiry TIMESTAMPTZ,
			promo_code TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS reset_periods (
			period TEXT PRIMARY KEY,
			reset_at TIMESTAMPTZ NOT NULL,
			users_reset BIGINT NOT NULL DEFAULT 0
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const userColumns = `id, username, email, phone, password_hash, city, neighbourhood, birth_date,
	lifetime_points, redeemable_points, monthly_points, wallet_balance, bank_account_ref, payout_pending,
	redeemed_voucher_ids, communities, version, created_at, updated_at`

// CreateUser inserts a new user row with zeroed counters.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	communities := user.Communities
	if communities == nil {
		communities = []string{}
	}
	query := `
		INSERT INTO users (id, username, email, phone, password_hash, city, neighbourhood, birth_date, communities)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, user.ID, user.Username, user.Email, user.Phone, user.PasswordHash,
		user.City, user.Neighbourhood, user.BirthDate, communities)
	created, err := scanUser(row)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return created, nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByUsernameOrEmail fetches the first user matching the identifier as username or email.
func (s *Store) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1 LIMIT 1`
	row := s.pool.QueryRow(ctx, query, identifier)
	return scanUser(row)
}

// SaveUser writes the balance, bank and membership fields when the stored version matches.
func (s *Store) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
		UPDATE users SET
			redeemable_points = $2,
			wallet_balance = $3,
			bank_account_ref = $4,
			payout_pending = $5,
			redeemed_voucher_ids = $6,
			communities = $7,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $8
		RETURNING ` + userColumns
	vouchers, communities := user.RedeemedVoucherIDs, user.Communities
	if vouchers == nil {
		vouchers = []string{}
	}
	if communities == nil {
		communities = []string{}
	}
	row := s.pool.QueryRow(ctx, query, user.ID, user.RedeemablePoints, user.WalletBalance, user.BankAccountRef,
		user.PayoutPending, vouchers, communities, user.Version)
	saved, err := scanUser(row)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, s.missingOrConflict(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID)
	}
	return saved, err
}

// missingOrConflict explains a conditional write that matched no rows.
func (s *Store) missingOrConflict(ctx context.Context, existsQuery, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, existsQuery, id).Scan(&exists); err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

// CreateMachine registers a machine.
func (s *Store) CreateMachine(ctx context.Context, machine models.Machine) (models.Machine, error) {
	if machine.ID == "" {
		machine.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO machines (id, name, active)
		VALUES ($1, $2, $3)
		RETURNING id, name, active, last_accepted_scan_at, created_at`
	created, err := scanMachine(s.pool.QueryRow(ctx, query, machine.ID, machine.Name, machine.Active))
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return models.Machine{}, storage.ErrAlreadyExists
		}
		return models.Machine{}, err
	}
	return created, nil
}

// GetMachine fetches a machine by id.
func (s *Store) GetMachine(ctx context.Context, id string) (models.Machine, error) {
	const query = `SELECT id, name, active, last_accepted_scan_at, created_at FROM machines WHERE id = $1`
	return scanMachine(s.pool.QueryRow(ctx, query, id))
}

// ListMachines returns machines ordered by name.
func (s *Store) ListMachines(ctx context.Context, activeOnly bool) ([]models.Machine, error) {
	const query = `
		SELECT id, name, active, last_accepted_scan_at, created_at
		FROM machines
		WHERE NOT $1 OR active
		ORDER BY name, id`
	rows, err := s.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var out []models.Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMaintenance inserts a maintenance record.
func (s *Store) CreateMaintenance(ctx context.Context, record models.MaintenanceRecord) (models.MaintenanceRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO maintenances (id, machine_id, date, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, machine_id, date, notes, created_at`
	created, err := scanMaintenance(s.pool.QueryRow(ctx, query, record.ID, record.MachineID, record.Date, record.Notes))
	if err != nil {
		switch pgCode(err) {
		case codeForeignKeyViolation:
			return models.MaintenanceRecord{}, storage.ErrNotFound
		case codeUniqueViolation:
			return models.MaintenanceRecord{}, storage.ErrAlreadyExists
		}
		return models.MaintenanceRecord{}, err
	}
	return created, nil
}

// ListMaintenance returns the records of the given machines ordered by date.
func (s *Store) ListMaintenance(ctx context.Context, machineIDs []string) ([]models.MaintenanceRecord, error) {
	const query = `
		SELECT id, machine_id, date, notes, created_at
		FROM maintenances
		WHERE machine_id = ANY($1)
		ORDER BY date, id`
	rows, err := s.pool.Query(ctx, query, machineIDs)
	if err != nil {
		return nil, fmt.Errorf("list maintenance: %w", err)
	}
	defer rows.Close()

	out := []models.MaintenanceRecord{}
	for rows.Next() {
		r, err := scanMaintenance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AdmitScan applies an accepted scan in one transaction: the conditional
// machine timestamp move, the user credit and the scan credit record.
func (s *Store) AdmitScan(ctx context.Context, a models.ScanAdmission) (models.ScanCredit, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.ScanCredit{}, fmt.Errorf("begin scan: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE machines SET last_accepted_scan_at = $2
		WHERE id = $1 AND last_accepted_scan_at IS NOT DISTINCT FROM $3`,
		a.MachineID, a.AcceptedAt, a.PrevScanAt)
	if err != nil {
		return models.ScanCredit{}, fmt.Errorf("advance machine: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ScanCredit{}, s.missingOrConflict(ctx, `SELECT EXISTS (SELECT 1 FROM machines WHERE id = $1)`, a.MachineID)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE users SET
			lifetime_points = lifetime_points + $2,
			redeemable_points = redeemable_points + $2,
			monthly_points = monthly_points + $2,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1`, a.UserID, a.Points)
	if err != nil {
		return models.ScanCredit{}, fmt.Errorf("credit user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ScanCredit{}, storage.ErrNotFound
	}

	id := a.CreditID
	if id == "" {
		id = uuid.NewString()
	}
	credit, err := scanCredit(tx.QueryRow(ctx, `
		INSERT INTO scan_credits (id, machine_id, user_id, points, accepted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, machine_id, user_id, points, accepted_at`,
		id, a.MachineID, a.UserID, a.Points, a.AcceptedAt))
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return models.ScanCredit{}, storage.ErrAlreadyExists
		case codeForeignKeyViolation:
			return models.ScanCredit{}, storage.ErrNotFound
		}
		return models.ScanCredit{}, fmt.Errorf("record scan: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ScanCredit{}, fmt.Errorf("commit scan: %w", err)
	}
	return credit, nil
}

// ListScans returns the user's most recent scans first.
func (s *Store) ListScans(ctx context.Context, userID string, limit int) ([]models.ScanCredit, error) {
	const query = `
		SELECT id, machine_id, user_id, points, accepted_at
		FROM scan_credits
		WHERE user_id = $1
		ORDER BY accepted_at DESC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []models.ScanCredit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCohort projects the users matching cohort, in signup order.
func (s *Store) ListCohort(ctx context.Context, cohort models.Cohort) ([]models.CohortMember, error) {
	var (
		where string
		args  []any
	)
	switch cohort.Kind {
	case models.CohortGlobal:
		where = "TRUE"
	case models.CohortCity:
		where, args = "city = $1", []any{cohort.Value}
	case models.CohortNeighbourhood:
		where, args = "neighbourhood = $1", []any{cohort.Value}
	case models.CohortBirthYear:
		year, err := strconv.Atoi(cohort.Value)
		if err != nil {
			return nil, fmt.Errorf("birth year %q: %w", cohort.Value, err)
		}
		where, args = "birth_date BETWEEN make_date($1, 1, 1) AND make_date($1, 12, 31)", []any{year}
	case models.CohortCommunity:
		where, args = "$1 = ANY(communities)", []any{cohort.Value}
	default:
		return nil, fmt.Errorf("unknown cohort kind %q", cohort.Kind)
	}

	query := `SELECT id, username, monthly_points FROM users WHERE ` + where + ` ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cohort: %w", err)
	}
	defer rows.Close()

	var out []models.CohortMember
	for rows.Next() {
		var m models.CohortMember
		if err := rows.Scan(&m.UserID, &m.Username, &m.MonthlyPoints); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateCommunity inserts the community and adds the owner as a member.
func (s *Store) CreateCommunity(ctx context.Context, c models.Community) (models.Community, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Community{}, fmt.Errorf("begin community: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanCommunity(tx.QueryRow(ctx, `
		INSERT INTO communities (id, owner_user_id, name, join_code)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_user_id, name, join_code, created_at`,
		c.ID, c.OwnerUserID, c.Name, c.JoinCode))
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return models.Community{}, storage.ErrAlreadyExists
		case codeForeignKeyViolation:
			return models.Community{}, storage.ErrNotFound
		}
		return models.Community{}, fmt.Errorf("insert community: %w", err)
	}

	if _, err := tx.Exec(ctx, addMembershipSQL, c.OwnerUserID, created.ID); err != nil {
		return models.Community{}, fmt.Errorf("add owner membership: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Community{}, fmt.Errorf("commit community: %w", err)
	}
	return created, nil
}

const addMembershipSQL = `
	UPDATE users SET
		communities = array_append(communities, $2),
		version = version + 1,
		updated_at = NOW()
	WHERE id = $1 AND NOT ($2 = ANY(communities))`

// GetCommunity fetches a community by id.
func (s *Store) GetCommunity(ctx context.Context, id string) (models.Community, error) {
	const query = `SELECT id, owner_user_id, name, join_code, created_at FROM communities WHERE id = $1`
	return scanCommunity(s.pool.QueryRow(ctx, query, id))
}

// FindCommunityByCode fetches a community by its join code.
func (s *Store) FindCommunityByCode(ctx context.Context, code string) (models.Community, error) {
	const query = `SELECT id, owner_user_id, name, join_code, created_at FROM communities WHERE join_code = $1`
	return scanCommunity(s.pool.QueryRow(ctx, query, code))
}

// ListCommunities returns the communities with the given ids in the order given.
func (s *Store) ListCommunities(ctx context.Context, ids []string) ([]models.Community, error) {
	if len(ids) == 0 {
		return []models.Community{}, nil
	}
	const query = `
		SELECT id, owner_user_id, name, join_code, created_at
		FROM communities
		WHERE id = ANY($1)
		ORDER BY array_position($1, id)`
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	defer rows.Close()

	out := make([]models.Community, 0, len(ids))
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddMembership adds communityID to the user's memberships.
func (s *Store) AddMembership(ctx context.Context, userID, communityID string) error {
	if _, err := s.GetCommunity(ctx, communityID); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, addMembershipSQL, userID, communityID)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// Either already a member or no such user.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}

// CreateVoucher inserts a catalog voucher.
func (s *Store) CreateVoucher(ctx context.Context, v models.Voucher) (models.Voucher, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO vouchers (id, title, point_cost, expiry, promo_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, title, point_cost, expiry, promo_code, created_at`
	created, err := scanVoucher(s.pool.QueryRow(ctx, query, v.ID, v.Title, v.PointCost, v.Expiry, v.PromoCode))
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return models.Voucher{}, storage.ErrAlreadyExists
		}
		return models.Voucher{}, err
	}
	return created, nil
}

// GetVoucher fetches a voucher by id.
func (s *Store) GetVoucher(ctx context.Context, id string) (models.Voucher, error) {
	const query = `SELECT id, title, point_cost, expiry, promo_code, created_at FROM vouchers WHERE id = $1`
	return scanVoucher(s.pool.QueryRow(ctx, query, id))
}

// ListVouchers returns the catalog ordered by point cost.
func (s *Store) ListVouchers(ctx context.Context) ([]models.Voucher, error) {
	const query = `SELECT id, title, point_cost, expiry, promo_code, created_at FROM vouchers ORDER BY point_cost, id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	var out []models.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ResetMonthlyPoints zeroes monthly points in a single statement, so each
// row is reset atomically with respect to concurrent credits.
func (s *Store) ResetMonthlyPoints(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET monthly_points = 0, updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("reset monthly points: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ResetForPeriod records the period and sweeps in one transaction.
func (s *Store) ResetForPeriod(ctx context.Context, period models.ResetPeriod) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	resetAt := period.ResetAt
	if resetAt.IsZero() {
		resetAt = time.Now().UTC()
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO reset_periods (period, reset_at) VALUES ($1, $2)
		ON CONFLICT (period) DO NOTHING`, period.Period, resetAt)
	if err != nil {
		return 0, fmt.Errorf("claim reset period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, storage.ErrAlreadyExists
	}

	tag, err = tx.Exec(ctx, `UPDATE users SET monthly_points = 0, updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("reset monthly points: %w", err)
	}
	n := tag.RowsAffected()
	if _, err := tx.Exec(ctx, `UPDATE reset_periods SET users_reset = $2 WHERE period = $1`, period.Period, n); err != nil {
		return 0, fmt.Errorf("record reset: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit reset: %w", err)
	}
	return n, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Phone, &user.PasswordHash,
		&user.City, &user.Neighbourhood, &user.BirthDate,
		&user.LifetimePoints, &user.RedeemablePoints, &user.MonthlyPoints, &user.WalletBalance,
		&user.BankAccountRef, &user.PayoutPending, &user.RedeemedVoucherIDs, &user.Communities,
		&user.Version, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func scanMachine(row pgx.Row) (models.Machine, error) {
	var m models.Machine
	if err := row.Scan(&m.ID, &m.Name, &m.Active, &m.LastAcceptedScanAt, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Machine{}, storage.ErrNotFound
		}
		return models.Machine{}, err
	}
	return m, nil
}

func scanMaintenance(row pgx.Row) (models.MaintenanceRecord, error) {
	var r models.MaintenanceRecord
	if err := row.Scan(&r.ID, &r.MachineID, &r.Date, &r.Notes, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MaintenanceRecord{}, storage.ErrNotFound
		}
		return models.MaintenanceRecord{}, err
	}
	return r, nil
}

func scanCredit(row pgx.Row) (models.ScanCredit, error) {
	var c models.ScanCredit
	if err := row.Scan(&c.ID, &c.MachineID, &c.UserID, &c.Points, &c.AcceptedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ScanCredit{}, storage.ErrNotFound
		}
		return models.ScanCredit{}, err
	}
	return c, nil
}

func scanCommunity(row pgx.Row) (models.Community, error) {
	var c models.Community
	if err := row.Scan(&c.ID, &c.OwnerUserID, &c.Name, &c.JoinCode, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Community{}, storage.ErrNotFound
		}
		return models.Community{}, err
	}
	return c, nil
}

func scanVoucher(row pgx.Row) (models.Voucher, error) {
	var v models.Voucher
	if err := row.Scan(&v.ID, &v.Title, &v.PointCost, &v.Expiry, &v.PromoCode, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Voucher{}, storage.ErrNotFound
		}
		return models.Voucher{}, err
	}
	return v, nil
}
