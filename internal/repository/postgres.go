// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/cardkeeper/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProfileNotFound возвращается, если профиль не найден или принадлежит другому пользователю.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrCardNotFound возвращается, если карта не найдена или принадлежит другому пользователю.
	ErrCardNotFound = errors.New("card not found")
	// ErrCardClosed возвращается при попытке закрыть уже закрытую карту.
	ErrCardClosed = errors.New("card already closed")
	// ErrBenefitNotFound возвращается, если бенефит не найден.
	ErrBenefitNotFound = errors.New("benefit not found")
	// ErrBonusNotFound возвращается, если бонус не найден.
	ErrBonusNotFound = errors.New("bonus not found")
	// ErrBonusResolved возвращается при повторном разрешении бонуса: earned и missed терминальны.
	ErrBonusResolved = errors.New("bonus already resolved")
	// ErrEventNotFound возвращается, если событие не найдено.
	ErrEventNotFound = errors.New("event not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраим только ошибки сериализации и дедлоки: остальное отдаём наверх.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// CreateProfile создаёт профиль держателя карт для пользователя.
func (r *PostgresRepository) CreateProfile(ctx context.Context, userID int64, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO profiles (user_id, name) VALUES ($1, $2) RETURNING id`,
		userID, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create profile: %w", err)
	}
	return id, nil
}

// GetProfilesByUser возвращает профили пользователя.
func (r *PostgresRepository) GetProfilesByUser(ctx context.Context, userID int64) ([]model.Profile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, name, created_at FROM profiles WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return profiles, nil
}

// GetProfile возвращает профиль пользователя по идентификатору с проверкой владения.
func (r *PostgresRepository) GetProfile(ctx context.Context, profileID, userID int64) (*model.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, name, created_at FROM profiles WHERE id = $1 AND user_id = $2`,
		profileID, userID,
	)

	var p model.Profile
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

const cardColumns = `id, profile_id, card_name, last_digits, issuer, card_type, status,
	open_date, close_date, annual_fee, annual_fee_date, credit_limit, created_at`

func scanCard(row pgx.Row) (*model.Card, error) {
	var c model.Card
	err := row.Scan(&c.ID, &c.ProfileID, &c.CardName, &c.LastDigits, &c.Issuer, &c.CardType,
		&c.Status, &c.OpenDate, &c.CloseDate, &c.AnnualFee, &c.AnnualFeeDate, &c.CreditLimit, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCard создаёт карту и, если задана дата открытия, событие "opened" в одной транзакции.
func (r *PostgresRepository) CreateCard(ctx context.Context, card model.Card) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO cards (profile_id, card_name, last_digits, issuer, card_type, status,
			open_date, close_date, annual_fee, annual_fee_date, credit_limit)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		card.ProfileID, card.CardName, card.LastDigits, card.Issuer, card.CardType, card.Status,
		card.OpenDate, card.CloseDate, card.AnnualFee, card.AnnualFeeDate, card.CreditLimit,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert card: %w", err)
	}

	if card.OpenDate != nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO card_events (card_id, event_type, event_date, description)
			 VALUES ($1, $2, $3, $4)`,
			id, string(model.EventOpened), *card.OpenDate, fmt.Sprintf("Opened %s", card.CardName),
		)
		if err != nil {
			return 0, fmt.Errorf("insert opened event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// GetCard возвращает карту по идентификатору с проверкой владения через профиль.
func (r *PostgresRepository) GetCard(ctx context.Context, cardID, userID int64) (*model.Card, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT c.id, c.profile_id, c.card_name, c.last_digits, c.issuer, c.card_type, c.status,
			c.open_date, c.close_date, c.annual_fee, c.annual_fee_date, c.credit_limit, c.created_at
		 FROM cards c
		 JOIN profiles p ON p.id = c.profile_id
		 WHERE c.id = $1 AND p.user_id = $2`,
		cardID, userID,
	)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("get card: %w", err)
	}

	return card, nil
}

// GetCardsByProfile возвращает карты профиля в порядке открытия.
func (r *PostgresRepository) GetCardsByProfile(ctx context.Context, profileID int64) ([]model.Card, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+cardColumns+`
		 FROM cards
		 WHERE profile_id = $1
		 ORDER BY open_date NULLS LAST, id`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cards: %w", err)
	}
	defer rows.Close()

	var cards []model.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, *card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cards, nil
}

// CloseCard переводит карту в статус closed и создаёт событие "closed".
// Строка карты блокируется для сериализации конкурентных переходов статуса.
func (r *PostgresRepository) CloseCard(ctx context.Context, cardID int64, closeDate time.Time) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var status string
		var cardName string
		err = tx.QueryRow(ctx,
			`SELECT status, card_name FROM cards WHERE id = $1 FOR UPDATE`,
			cardID,
		).Scan(&status, &cardName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCardNotFound
			}
			return fmt.Errorf("lock card: %w", err)
		}

		if model.CardStatus(status) == model.CardStatusClosed {
			return ErrCardClosed
		}

		_, err = tx.Exec(ctx,
			`UPDATE cards SET status = $2, close_date = $3 WHERE id = $1`,
			cardID, string(model.CardStatusClosed), closeDate,
		)
		if err != nil {
			return fmt.Errorf("update card: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO card_events (card_id, event_type, event_date, description)
			 VALUES ($1, $2, $3, $4)`,
			cardID, string(model.EventClosed), closeDate, fmt.Sprintf("Closed %s", cardName),
		)
		if err != nil {
			return fmt.Errorf("insert closed event: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// CreateBenefit добавляет бенефит карте.
func (r *PostgresRepository) CreateBenefit(ctx context.Context, b model.Benefit) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO card_benefits (card_id, benefit_name, benefit_amount, amount_used, frequency, reset_type, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		b.CardID, b.BenefitName, b.BenefitAmount, b.AmountUsed, string(b.Frequency), string(b.ResetType), b.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert benefit: %w", err)
	}
	return id, nil
}

// GetBenefitsByCard возвращает бенефиты карты.
func (r *PostgresRepository) GetBenefitsByCard(ctx context.Context, cardID int64) ([]model.Benefit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, card_id, benefit_name, benefit_amount, amount_used, frequency, reset_type, notes, created_at
		 FROM card_benefits
		 WHERE card_id = $1
		 ORDER BY id`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("select benefits: %w", err)
	}
	defer rows.Close()

	var benefits []model.Benefit
	for rows.Next() {
		var b model.Benefit
		if err := rows.Scan(&b.ID, &b.CardID, &b.BenefitName, &b.BenefitAmount, &b.AmountUsed,
			&b.Frequency, &b.ResetType, &b.Notes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan benefit: %w", err)
		}
		benefits = append(benefits, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return benefits, nil
}

// UpdateBenefitUsage обновляет израсходованную сумму бенефита. Сброс цикла —
// тоже обновление записи вызывающей стороной: движок проекций границы только сообщает.
func (r *PostgresRepository) UpdateBenefitUsage(ctx context.Context, benefitID, amountUsed int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE card_benefits SET amount_used = $2 WHERE id = $1`,
		benefitID, amountUsed,
	)
	if err != nil {
		return fmt.Errorf("update benefit: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBenefitNotFound
	}
	return nil
}

// CreateBonus добавляет бонус карте.
func (r *PostgresRepository) CreateBonus(ctx context.Context, b model.Bonus) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO card_bonuses (card_id, event_id, bonus_source, bonus_amount, spend_requirement,
			spend_deadline, bonus_earned, bonus_missed, reminder_enabled, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		b.CardID, b.EventID, string(b.BonusSource), b.BonusAmount, b.SpendRequirement,
		b.SpendDeadline, b.BonusEarned, b.BonusMissed, b.ReminderEnabled, b.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert bonus: %w", err)
	}
	return id, nil
}

const bonusColumns = `id, card_id, event_id, bonus_source, bonus_amount, spend_requirement,
	spend_deadline, bonus_earned, bonus_missed, reminder_enabled, description, created_at`

func scanBonus(row pgx.Row) (*model.Bonus, error) {
	var b model.Bonus
	err := row.Scan(&b.ID, &b.CardID, &b.EventID, &b.BonusSource, &b.BonusAmount, &b.SpendRequirement,
		&b.SpendDeadline, &b.BonusEarned, &b.BonusMissed, &b.ReminderEnabled, &b.Description, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBonusesByCard возвращает бонусы карты.
func (r *PostgresRepository) GetBonusesByCard(ctx context.Context, cardID int64) ([]model.Bonus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bonusColumns+` FROM card_bonuses WHERE card_id = $1 ORDER BY id`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bonuses: %w", err)
	}
	defer rows.Close()

	var bonuses []model.Bonus
	for rows.Next() {
		b, err := scanBonus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bonus: %w", err)
		}
		bonuses = append(bonuses, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return bonuses, nil
}

// GetBonusesByProfile возвращает бонусы всех карт профиля, сгруппированные по картам.
func (r *PostgresRepository) GetBonusesByProfile(ctx context.Context, profileID int64) (map[int64][]model.Bonus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.id, b.card_id, b.event_id, b.bonus_source, b.bonus_amount, b.spend_requirement,
			b.spend_deadline, b.bonus_earned, b.bonus_missed, b.reminder_enabled, b.description, b.created_at
		 FROM card_bonuses b
		 JOIN cards c ON c.id = b.card_id
		 WHERE c.profile_id = $1
		 ORDER BY b.id`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("select profile bonuses: %w", err)
	}
	defer rows.Close()

	bonuses := make(map[int64][]model.Bonus)
	for rows.Next() {
		b, err := scanBonus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bonus: %w", err)
		}
		bonuses[b.CardID] = append(bonuses[b.CardID], *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return bonuses, nil
}

// ResolveBonus переводит бонус в терминальное состояние earned либо missed.
// Переход выполняется под блокировкой строки: терминальные состояния необратимы.
func (r *PostgresRepository) ResolveBonus(ctx context.Context, bonusID int64, earned bool) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var isEarned, isMissed bool
		err = tx.QueryRow(ctx,
			`SELECT bonus_earned, bonus_missed FROM card_bonuses WHERE id = $1 FOR UPDATE`,
			bonusID,
		).Scan(&isEarned, &isMissed)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrBonusNotFound
			}
			return fmt.Errorf("lock bonus: %w", err)
		}

		if isEarned || isMissed {
			return ErrBonusResolved
		}

		_, err = tx.Exec(ctx,
			`UPDATE card_bonuses
			 SET bonus_earned = $2, bonus_missed = $3, reminder_enabled = FALSE
			 WHERE id = $1`,
			bonusID, earned, !earned,
		)
		if err != nil {
			return fmt.Errorf("update bonus: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// CreateRetentionOffer создаёт событие retention_offer и связанный с ним
// бонус в одной транзакции. Бонус ссылается на событие через event_id.
func (r *PostgresRepository) CreateRetentionOffer(ctx context.Context, e model.Event, b model.Bonus) (int64, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var eventID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO card_events (card_id, event_type, event_date, description, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.CardID, string(e.EventType), e.EventDate, e.Description, e.Metadata,
	).Scan(&eventID)
	if err != nil {
		return 0, 0, fmt.Errorf("insert retention event: %w", err)
	}

	var bonusID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO card_bonuses (card_id, event_id, bonus_source, bonus_amount, spend_requirement,
			spend_deadline, bonus_earned, bonus_missed, reminder_enabled, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		b.CardID, eventID, string(b.BonusSource), b.BonusAmount, b.SpendRequirement,
		b.SpendDeadline, b.BonusEarned, b.BonusMissed, b.ReminderEnabled, b.Description,
	).Scan(&bonusID)
	if err != nil {
		return 0, 0, fmt.Errorf("insert retention bonus: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit tx: %w", err)
	}

	return eventID, bonusID, nil
}

// CreateEvent добавляет событие в историю карты.
func (r *PostgresRepository) CreateEvent(ctx context.Context, e model.Event) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO card_events (card_id, event_type, event_date, description, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.CardID, string(e.EventType), e.EventDate, e.Description, e.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// GetEventsByCard возвращает события карты, новые первыми.
func (r *PostgresRepository) GetEventsByCard(ctx context.Context, cardID int64) ([]model.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, card_id, event_type, event_date, description, metadata, created_at
		 FROM card_events
		 WHERE card_id = $1
		 ORDER BY event_date DESC, id DESC`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsByProfile возвращает страницу истории профиля: новые первыми,
// limit/offset листают историю назад. Страница короче limit означает конец истории.
func (r *PostgresRepository) GetEventsByProfile(ctx context.Context, profileID int64, limit, offset int) ([]model.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.card_id, e.event_type, e.event_date, e.description, e.metadata, e.created_at
		 FROM card_events e
		 JOIN cards c ON c.id = e.card_id
		 WHERE c.profile_id = $1
		 ORDER BY e.event_date DESC, e.id DESC
		 LIMIT $2 OFFSET $3`,
		profileID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select profile events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.CardID, &e.EventType, &e.EventDate, &e.Description, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

// UpsertTemplate сохраняет либо обновляет шаблон карты из внешнего каталога.
func (r *PostgresRepository) UpsertTemplate(ctx context.Context, t model.CardTemplate) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO card_templates (template_id, card_name, issuer, annual_fee, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (template_id)
		 DO UPDATE SET card_name = EXCLUDED.card_name, issuer = EXCLUDED.issuer,
			annual_fee = EXCLUDED.annual_fee, updated_at = NOW()`,
		t.TemplateID, t.CardName, t.Issuer, t.AnnualFee,
	)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

// ListTemplates возвращает все шаблоны карт.
func (r *PostgresRepository) ListTemplates(ctx context.Context) ([]model.CardTemplate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT template_id, card_name, issuer, annual_fee, updated_at
		 FROM card_templates
		 ORDER BY template_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select templates: %w", err)
	}
	defer rows.Close()

	var templates []model.CardTemplate
	for rows.Next() {
		var t model.CardTemplate
		if err := rows.Scan(&t.TemplateID, &t.CardName, &t.Issuer, &t.AnnualFee, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return templates, nil
}
