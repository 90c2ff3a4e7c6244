// Package postgres is the durable Store backend. Each kind lives in its own
// table as a JSONB document next to the columns used for filtering, locking
// and uniqueness.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/db"
	"github.com/bwise1/sosedi/internal/geo"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"
)

// maxAttempts bounds retries of an Update that lost a serialization race.
const maxAttempts = 3

var baseColumns = []string{"id", "owner_id", "lng", "lat", "is_active", "is_deleted", "created_at", "updated_at"}

type table[T model.Record[T]] struct {
	db    *db.DB
	kind  string
	name  string
	extra []string
	// extraValues returns values for the extra columns, in order.
	extraValues func(T) []any

	insertSQL string
	updateSQL string
}

func newTable[T model.Record[T]](database *db.DB, kind, name string, extra []string, extraValues func(T) []any) *table[T] {
	t := &table[T]{db: database, kind: kind, name: name, extra: extra, extraValues: extraValues}

	cols := append(append(append([]string{}, baseColumns...), extra...), "doc")
	params := make([]string, len(cols))
	sets := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
		if i > 0 {
			sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
		}
	}
	t.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(cols, ", "), strings.Join(params, ", "))
	t.updateSQL = fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", name, strings.Join(sets, ", "))
	return t
}

func (t *table[T]) args(v T) ([]any, error) {
	h := v.Header()
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "encode %s", t.kind)
	}

	var owner *string
	if h.OwnerID != uuid.Nil {
		s := h.OwnerID.String()
		owner = &s
	}
	var lng, lat *float64
	if h.Location != nil {
		lng, lat = &h.Location.Lng, &h.Location.Lat
	}

	args := []any{h.ID.String(), owner, lng, lat, h.Active, h.Deleted, h.CreatedAt, h.UpdatedAt}
	if t.extraValues != nil {
		args = append(args, t.extraValues(v)...)
	}
	return append(args, doc), nil
}

func (t *table[T]) decode(raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, pkgerrors.Wrapf(err, "decode %s", t.kind)
	}
	return v, nil
}

func (t *table[T]) notFound(id uuid.UUID) error {
	return apperr.E(apperr.NotFound, "%s %s not found", t.kind, id)
}

func (t *table[T]) Insert(ctx context.Context, v T) error {
	args, err := t.args(v)
	if err != nil {
		return err
	}
	_, err = t.db.Pool().Exec(ctx, t.insertSQL, args...)
	return t.classify(err)
}

func (t *table[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	return t.one(ctx, "SELECT doc FROM "+t.name+" WHERE id = $1", id.String())
}

func (t *table[T]) one(ctx context.Context, query string, args ...any) (T, error) {
	var raw []byte
	err := t.db.Pool().QueryRow(ctx, query, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, apperr.E(apperr.NotFound, "%s not found", t.kind)
	}
	if err != nil {
		var zero T
		return zero, pkgerrors.Wrapf(err, "load %s", t.kind)
	}
	return t.decode(raw)
}

func (t *table[T]) many(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := t.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "query %s", t.name)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := t.decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (t *table[T]) GetMany(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	found, err := t.many(ctx, "SELECT doc FROM "+t.name+" WHERE id = ANY($1::uuid[])", strs)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]T, len(found))
	for _, v := range found {
		byID[v.Header().ID] = v
	}
	out := make([]T, 0, len(found))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Update locks the row with SELECT ... FOR UPDATE. fn may run more than once
// when the transaction is retried, so it must only touch the record it is given.
func (t *table[T]) Update(ctx context.Context, id uuid.UUID, fn func(*T) error) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		out, err := t.updateOnce(ctx, id, fn)
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return zero, t.classify(err)
		}
		if attempt == maxAttempts {
			return zero, apperr.Wrap(apperr.Conflict, err, fmt.Sprintf("%s is busy, try again", t.kind))
		}
	}
}

func (t *table[T]) updateOnce(ctx context.Context, id uuid.UUID, fn func(*T) error) (T, error) {
	var out T
	err := t.db.RunInTx(ctx, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, "SELECT doc FROM "+t.name+" WHERE id = $1 FOR UPDATE", id.String()).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return t.notFound(id)
		}
		if err != nil {
			return err
		}
		v, err := t.decode(raw)
		if err != nil {
			return err
		}
		if err := fn(&v); err != nil {
			return err
		}
		if v.Header().ID != id {
			return apperr.E(apperr.InvalidInput, "%s id cannot change", t.kind)
		}
		args, err := t.args(v)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, t.updateSQL, args...); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (t *table[T]) Each(ctx context.Context, fn func(T) error) error {
	rows, err := t.db.Pool().Query(ctx, "SELECT doc FROM "+t.name)
	if err != nil {
		return pkgerrors.Wrapf(err, "scan %s", t.name)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		v, err := t.decode(raw)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Near narrows candidates to the bounding box in SQL and keeps those within
// radius by great-circle distance, the same test geo.Index applies.
func (t *table[T]) Near(ctx context.Context, center geo.Point, radius float64) ([]uuid.UUID, error) {
	if radius <= 0 || math.IsNaN(radius) || center.Validate() != nil {
		return nil, nil
	}
	box, allLng := geo.Bounds(center, radius)

	query := "SELECT id::text, lng, lat FROM " + t.name + `
		WHERE NOT is_deleted AND is_active AND lng IS NOT NULL
		AND lat BETWEEN $1 AND $2`
	args := []any{box.MinLat, box.MaxLat}
	switch {
	case allLng:
	case box.MinLng <= box.MaxLng:
		query += " AND lng BETWEEN $3 AND $4"
		args = append(args, box.MinLng, box.MaxLng)
	default:
		query += " AND (lng >= $3 OR lng <= $4)"
		args = append(args, box.MinLng, box.MaxLng)
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := t.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "near %s", t.name)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var (
			raw string
			p   geo.Point
		)
		if err := rows.Scan(&raw, &p.Lng, &p.Lat); err != nil {
			return nil, err
		}
		if geo.Distance(center, p) > radius {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "near %s", t.name)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *table[T]) classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Wrap(apperr.AlreadyExists, err, t.kind+" already exists")
	}
	return err
}

// retryable reports serialization failures and deadlocks.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type users struct{ *table[model.User] }

func (u users) GetByAuthUID(ctx context.Context, uid string) (model.User, error) {
	return u.one(ctx, "SELECT doc FROM users WHERE auth_uid = $1", uid)
}

type chats struct{ *table[model.Chat] }

func (c chats) GetByPairKey(ctx context.Context, key string) (model.Chat, error) {
	return c.one(ctx, "SELECT doc FROM chats WHERE pair_key = $1", key)
}

func (c chats) GetGroupChat(ctx context.Context, groupID uuid.UUID) (model.Chat, error) {
	return c.one(ctx, "SELECT doc FROM chats WHERE group_id = $1", groupID.String())
}

func (c chats) ListForParticipant(ctx context.Context, userID uuid.UUID) ([]model.Chat, error) {
	return c.many(ctx, `SELECT doc FROM chats
		WHERE $1::uuid = ANY(participant_ids) AND NOT is_deleted
		ORDER BY updated_at DESC`, userID.String())
}

type Store struct {
	db     *db.DB
	users  users
	posts  *table[model.Post]
	groups *table[model.Group]
	ads    *table[model.Advertisement]
	events *table[model.Event]
	chats  chats
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Locator = (*table[model.Post])(nil)
	_ store.Locator = users{}
)

// New wraps an open database. The schema must already be migrated.
func New(database *db.DB) *Store {
	return &Store{
		db: database,
		users: users{newTable(database, "user", "users", []string{"auth_uid", "phone"},
			func(u model.User) []any { return []any{nullable(u.AuthUID), nullable(u.PhoneNumber)} })},
		posts:  newTable[model.Post](database, "post", "posts", nil, nil),
		groups: newTable[model.Group](database, "group", "groups", nil, nil),
		ads:    newTable[model.Advertisement](database, "advertisement", "advertisements", nil, nil),
		events: newTable[model.Event](database, "event", "events", nil, nil),
		chats: chats{newTable(database, "chat", "chats", []string{"pair_key", "group_id", "participant_ids"},
			func(c model.Chat) []any {
				var group *string
				pair := nullable(c.PairKey)
				if c.IsDeleted {
					pair = nil
				} else if c.GroupID != nil {
					s := c.GroupID.String()
					group = &s
				}
				ids := make([]string, len(c.Participants))
				for i, m := range c.Participants {
					ids[i] = m.UserID.String()
				}
				return []any{pair, group, ids}
			})},
	}
}

func (s *Store) Users() store.UserStore                                { return s.users }
func (s *Store) Posts() store.Collection[model.Post]                   { return s.posts }
func (s *Store) Groups() store.Collection[model.Group]                 { return s.groups }
func (s *Store) Advertisements() store.Collection[model.Advertisement] { return s.ads }
func (s *Store) Events() store.Collection[model.Event]                 { return s.events }
func (s *Store) Chats() store.ChatStore                                { return s.chats }

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
