package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	pkgch "SignalForge/pkg/clickhouse"
	applogger "SignalForge/pkg/logger"
)

const dateLayout = "2006-01-02"

// CHSignalStore keeps signals in a ReplacingMergeTree keyed by
// (category, date, time_slot). The newest version wins on merge and reads
// use FINAL, so re-running a slot overwrites it.
type CHSignalStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
	now      func() time.Time
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)

func NewCHSignalStore(ch *pkgch.Client, database string) *CHSignalStore {
	return &CHSignalStore{db: ch.DB(), database: database, l: applogger.Nop(), now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSignalStore) table(name string) string { return s.database + "." + name }

func (s *CHSignalStore) Init(ctx context.Context) error {
	for _, stmt := range SchemaStatements(s.database) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *CHSignalStore) Save(ctx context.Context, sig *models.Signal) error {
	day, err := time.Parse(dateLayout, sig.Date)
	if err != nil {
		return fmt.Errorf("save signal: date %q: %w", sig.Date, err)
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = s.now().UTC()
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("save signal: encode: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s (category, date, time_slot, bias, confidence, importance, notify,
        summary, llm_status, llm_provider, prompt_version, payload, created_at, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table(TableSignals))
	_, err = s.db.ExecContext(ctx, q,
		string(sig.Category), day, sig.TimeSlot, string(sig.Bias.Bias),
		clampUInt8(sig.Bias.Confidence), clampUInt8(sig.Importance), boolToUInt8(sig.Notify),
		sig.Summary.Summary, string(sig.Summary.Status), sig.Summary.Provider, uint16(sig.Summary.PromptVersion),
		string(payload), sig.CreatedAt, uint64(sig.CreatedAt.UnixNano()),
	)
	if err != nil {
		s.l.Error("clickhouse insert signal error", applogger.String("key", signalKey(sig)), applogger.Error(err))
		return fmt.Errorf("save signal: %w", err)
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE category = ? AND date = ? AND time_slot = ?", s.table(TableSignalAssets))
	if _, err := s.db.ExecContext(ctx, del, string(sig.Category), day, sig.TimeSlot); err != nil {
		return fmt.Errorf("save signal: clear assets: %w", err)
	}

	if q, args := assetInsert(s.table(TableSignalAssets), sig, day); q != "" {
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert assets error", applogger.String("key", signalKey(sig)), applogger.Error(err))
			return fmt.Errorf("save signal: assets: %w", err)
		}
	}
	return nil
}

// assetInsert builds one multi-row insert for the signal's assets, or ""
// when there are none.
func assetInsert(table string, sig *models.Signal, day time.Time) (string, []interface{}) {
	if len(sig.Bias.Assets) == 0 {
		return "", nil
	}
	values := make([]string, 0, len(sig.Bias.Assets))
	args := make([]interface{}, 0, len(sig.Bias.Assets)*9)
	for _, a := range sig.Bias.Assets {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			string(sig.Category), day, sig.TimeSlot, a.Ticker, a.Price,
			string(a.Bias), a.Confluence, a.Reasoning, sig.CreatedAt,
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (category, date, time_slot, ticker, price, bias, confluence, reasoning, created_at) VALUES %s",
		table, strings.Join(values, ", "))
	return q, args
}

func (s *CHSignalStore) Previous(ctx context.Context, category models.Category, date, timeSlot string) (*models.SignalSnapshot, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("previous signal: date %q: %w", date, err)
	}

	q := fmt.Sprintf(`SELECT date, time_slot, bias FROM %s FINAL
        WHERE category = ? AND (date < ? OR (date = ? AND time_slot < ?))
        ORDER BY date DESC, time_slot DESC
        LIMIT 1`, s.table(TableSignals))
	var (
		prevDay time.Time
		snap    = models.SignalSnapshot{Category: category, Assets: map[string]models.AssetSnapshot{}}
		bias    string
	)
	err = s.db.QueryRowContext(ctx, q, string(category), day, day, timeSlot).Scan(&prevDay, &snap.TimeSlot, &bias)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous signal: %w", err)
	}
	snap.Date = prevDay.Format(dateLayout)
	snap.Bias = models.Bias(bias)

	aq := fmt.Sprintf("SELECT ticker, price, bias FROM %s WHERE category = ? AND date = ? AND time_slot = ?", s.table(TableSignalAssets))
	rows, err := s.db.QueryContext(ctx, aq, string(category), prevDay, snap.TimeSlot)
	if err != nil {
		return nil, fmt.Errorf("previous assets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ticker, b string
			price     float64
		)
		if err := rows.Scan(&ticker, &price, &b); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		snap.Assets[ticker] = models.AssetSnapshot{Price: price, Bias: models.Bias(b)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return &snap, nil
}

func (s *CHSignalStore) Latest(ctx context.Context, category models.Category) (*models.Signal, error) {
	q := fmt.Sprintf(`SELECT payload FROM %s FINAL WHERE category = ?
        ORDER BY date DESC, time_slot DESC LIMIT 1`, s.table(TableSignals))
	var payload string
	err := s.db.QueryRowContext(ctx, q, string(category)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest signal: %w", err)
	}
	return decodeSignal(payload)
}

func decodeSignal(payload string) (*models.Signal, error) {
	var sig models.Signal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		return nil, fmt.Errorf("decode signal: %w", err)
	}
	return &sig, nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSignalStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}

func signalKey(sig *models.Signal) string {
	return fmt.Sprintf("%s:%s:%s", sig.Category, sig.Date, sig.TimeSlot)
}

// clampUInt8 bounds a score to its UInt8 column. The payload keeps the
// exact value.
func clampUInt8(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint8:
		return math.MaxUint8
	}
	return uint8(v)
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
