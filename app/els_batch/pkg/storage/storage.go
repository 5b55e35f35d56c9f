// Package storage 产品草稿及其标的、波动率、提前偿还日的持久化。
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/config"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
)

const dateLayout = "2006-01-02"

// Storage 基于 database/sql 的存储，postgres 用于生产，sqlite 用于本地与测试
type Storage struct {
	db      *sql.DB
	dialect string
}

// NewStorage 按配置打开数据库并初始化表结构
func NewStorage(cfg config.DBConfig) (*Storage, error) {
	switch cfg.Driver {
	case "", "postgres":
		connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
		return Open("postgres", connStr)
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		return Open("sqlite", path)
	default:
		return nil, fmt.Errorf("unknown db driver: %s", cfg.Driver)
	}
}

// Open 打开数据库连接
func Open(driver, dsn string) (*Storage, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if driver == "sqlite" {
		// 内存库每个连接都是独立的数据库
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db, dialect: driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close 关闭数据库连接
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	id := "BIGSERIAL PRIMARY KEY"
	date := "DATE"
	if s.dialect == "sqlite" {
		id = "INTEGER PRIMARY KEY AUTOINCREMENT"
		date = "TEXT"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id ` + id + `,
			issuer TEXT NOT NULL,
			name TEXT NOT NULL UNIQUE,
			equities TEXT,
			equity_count INTEGER,
			issued_date ` + date + `,
			maturity_date ` + date + `,
			maturity_evaluation_date ` + date + `,
			maturity_evaluation_date_type TEXT NOT NULL,
			initial_base_price_evaluation_date ` + date + `,
			yield_if_conditions_met NUMERIC,
			maximum_loss_rate NUMERIC,
			subscription_start_date ` + date + `,
			subscription_end_date ` + date + `,
			product_full_info TEXT,
			product_info TEXT,
			knock_in INTEGER,
			product_type TEXT NOT NULL,
			product_state TEXT NOT NULL,
			summary_investment_prospectus_link TEXT,
			early_repayment_evaluation_dates TEXT,
			volatilities TEXT,
			link TEXT,
			remarks TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS ticker_symbols (
			id ` + id + `,
			ticker_symbol TEXT NOT NULL,
			equity_name TEXT NOT NULL,
			UNIQUE (equity_name, ticker_symbol)
		)`,
		`CREATE TABLE IF NOT EXISTS product_ticker_symbols (
			id ` + id + `,
			product_id BIGINT NOT NULL REFERENCES products(id),
			ticker_symbol_id BIGINT NOT NULL REFERENCES ticker_symbols(id)
		)`,
		`CREATE TABLE IF NOT EXISTS product_equity_volatilities (
			id ` + id + `,
			product_ticker_symbol_id BIGINT NOT NULL REFERENCES product_ticker_symbols(id),
			volatility NUMERIC NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS early_repayment_evaluation_dates (
			id ` + id + `,
			product_id BIGINT NOT NULL REFERENCES products(id),
			round TEXT NOT NULL,
			evaluation_date ` + date + ` NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}
	return nil
}

// rebind 把 ? 占位符改写为 postgres 的 $N
func (s *Storage) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ProductExists 同名产品是否已经存在（不区分状态）
func (s *Storage) ProductExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(1) FROM products WHERE name = ?`), name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query product %s: %w", name, err)
	}
	return n > 0, nil
}

// FindTicker 按标的名查找代码，优先返回非占位记录；不存在时返回 nil
func (s *Storage) FindTicker(ctx context.Context, underlying string) (*model.Ticker, error) {
	t := &model.Ticker{}
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, ticker_symbol, equity_name FROM ticker_symbols
		WHERE equity_name = ?
		ORDER BY CASE WHEN ticker_symbol = ? THEN 1 ELSE 0 END, id
		LIMIT 1`), underlying, model.PlaceholderTicker).Scan(&t.ID, &t.Symbol, &t.Underlying)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ticker %s: %w", underlying, err)
	}
	return t, nil
}

// SaveTicker 写入标的代码，已存在时返回现有记录
func (s *Storage) SaveTicker(ctx context.Context, symbol, underlying string) (*model.Ticker, error) {
	return ensureTicker(ctx, s.db, s.rebind, symbol, underlying)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func ensureTicker(ctx context.Context, q execer, rebind func(string) string, symbol, underlying string) (*model.Ticker, error) {
	_, err := q.ExecContext(ctx, rebind(`
		INSERT INTO ticker_symbols (ticker_symbol, equity_name) VALUES (?, ?)
		ON CONFLICT (equity_name, ticker_symbol) DO NOTHING`), symbol, underlying)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ticker %s: %w", underlying, err)
	}

	t := &model.Ticker{Symbol: symbol, Underlying: underlying}
	err = q.QueryRowContext(ctx, rebind(`
		SELECT id FROM ticker_symbols WHERE equity_name = ? AND ticker_symbol = ?`),
		underlying, symbol).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticker %s: %w", underlying, err)
	}
	return t, nil
}

// SaveProduct 在一个事务中写入产品、标的关联、波动率与提前偿还日。
// 没有真实代码的标的会关联到（必要时新建的）占位代码。
func (s *Storage) SaveProduct(ctx context.Context, p *model.ProductDraft) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var productID int64
	err = tx.QueryRowContext(ctx, s.rebind(`
		INSERT INTO products (
			issuer, name, equities, equity_count, issued_date, maturity_date,
			maturity_evaluation_date, maturity_evaluation_date_type, initial_base_price_evaluation_date,
			yield_if_conditions_met, maximum_loss_rate, subscription_start_date, subscription_end_date,
			product_full_info, product_info, knock_in, product_type, product_state,
			summary_investment_prospectus_link, early_repayment_evaluation_dates, volatilities, link, remarks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		p.Issuer, p.Name, strings.Join(p.Underlyings, " / "), len(p.Underlyings),
		dateArg(p.IssuedDate), dateArg(p.MaturityDate),
		datePtrArg(p.MaturityEvaluationDate), string(p.MaturityEvaluationKind), datePtrArg(p.InitialFixingDate),
		p.Yield, p.MaximumLossRate, dateArg(p.SubscriptionStart), dateArg(p.SubscriptionEnd),
		p.FullTerms, p.PayoffLadder, p.KnockIn, string(p.ProductType), string(p.State),
		p.FilingLink, redemptionLabels(p.EarlyRedemptionDates), p.Volatility, p.Link, p.Remarks,
	).Scan(&productID)
	if err != nil {
		return fmt.Errorf("failed to insert product %s: %w", p.Name, err)
	}

	for i := range p.Links {
		link := &p.Links[i]
		if link.Ticker.IsPlaceholder() {
			t, err := ensureTicker(ctx, tx, s.rebind, model.PlaceholderTicker, link.Underlying)
			if err != nil {
				return err
			}
			link.Ticker = t
		}

		var linkID int64
		err = tx.QueryRowContext(ctx, s.rebind(`
			INSERT INTO product_ticker_symbols (product_id, ticker_symbol_id)
			VALUES (?, ?)
			RETURNING id`), productID, link.Ticker.ID).Scan(&linkID)
		if err != nil {
			return fmt.Errorf("failed to link ticker %s: %w", link.Underlying, err)
		}

		if link.Volatility != nil {
			_, err = tx.ExecContext(ctx, s.rebind(`
				INSERT INTO product_equity_volatilities (product_ticker_symbol_id, volatility)
				VALUES (?, ?)`), linkID, *link.Volatility)
			if err != nil {
				return fmt.Errorf("failed to insert volatility %s: %w", link.Underlying, err)
			}
		}
	}

	for _, r := range p.EarlyRedemptionDates {
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO early_repayment_evaluation_dates (product_id, round, evaluation_date)
			VALUES (?, ?, ?)`), productID, r.Round, r.Date.Format(dateLayout))
		if err != nil {
			return fmt.Errorf("failed to insert early repayment date: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	p.ID = productID
	return nil
}

// StoredProduct 已提交产品的摘要，供 show 命令与核对使用
type StoredProduct struct {
	ID                     int64                        `json:"id"`
	Name                   string                       `json:"name"`
	State                  model.ProductState           `json:"state"`
	MaturityEvaluationDate string                       `json:"maturityEvaluationDate,omitempty"`
	MaturityEvaluationKind model.MaturityEvaluationKind `json:"maturityEvaluationKind"`
	Tickers                []string                     `json:"tickers,omitempty"`
	Volatilities           []float64                    `json:"volatilities,omitempty"`
	EarlyRedemptionRounds  []string                     `json:"earlyRedemptionRounds,omitempty"`
}

// FindProduct 按名称读取产品摘要，不存在时返回 nil
func (s *Storage) FindProduct(ctx context.Context, name string) (*StoredProduct, error) {
	p := &StoredProduct{Name: name}
	var maturity sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, product_state, CAST(maturity_evaluation_date AS TEXT), maturity_evaluation_date_type
		FROM products WHERE name = ?`), name).Scan(&p.ID, &p.State, &maturity, &p.MaturityEvaluationKind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", name, err)
	}
	p.MaturityEvaluationDate = maturity.String

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT t.ticker_symbol, v.volatility
		FROM product_ticker_symbols pt
		JOIN ticker_symbols t ON t.id = pt.ticker_symbol_id
		LEFT JOIN product_equity_volatilities v ON v.product_ticker_symbol_id = pt.id
		WHERE pt.product_id = ?
		ORDER BY pt.id`), p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers of %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var symbol string
		var vol sql.NullFloat64
		if err := rows.Scan(&symbol, &vol); err != nil {
			return nil, err
		}
		p.Tickers = append(p.Tickers, symbol)
		if vol.Valid {
			p.Volatilities = append(p.Volatilities, vol.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rounds, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT round FROM early_repayment_evaluation_dates WHERE product_id = ? ORDER BY id`), p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query early repayment dates of %s: %w", name, err)
	}
	defer rounds.Close()
	for rounds.Next() {
		var round string
		if err := rounds.Scan(&round); err != nil {
			return nil, err
		}
		p.EarlyRedemptionRounds = append(p.EarlyRedemptionRounds, round)
	}
	return p, rounds.Err()
}

// CountProducts 产品总数，parse 结束后记录到日志
func (s *Storage) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func dateArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func datePtrArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dateArg(*t)
}

func redemptionLabels(dates []model.EarlyRedemptionDate) any {
	if len(dates) == 0 {
		return nil
	}
	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = d.Round + ": " + d.Date.Format(dateLayout)
	}
	return strings.Join(labels, ", ")
}
