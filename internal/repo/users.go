package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"remindline/internal/domain"
)

type userRow struct {
	ID         string `db:"id"`
	FullName   string `db:"full_name"`
	Role       string `db:"role"`
	Department string `db:"department"`
	Active     bool   `db:"active"`
	Registered bool   `db:"registered"`
	CreatedAt  string `db:"created_at"`
}

func (r userRow) toDomain() (domain.User, error) {
	created, err := parseTS(r.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:         r.ID,
		FullName:   r.FullName,
		Role:       domain.Role(r.Role),
		Department: r.Department,
		Active:     r.Active,
		Registered: r.Registered,
		CreatedAt:  created,
	}, nil
}

const userColumns = `id,full_name,role,department,active,registered,created_at`

func (r Repo) InsertUser(ctx context.Context, q sqlx.ExecerContext, u domain.User) error {
	_, err := q.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.FullName, string(u.Role), u.Department, u.Active, u.Registered, ts(u.CreatedAt))
	return err
}

// UpdateUser rewrites the mutable profile fields.
func (r Repo) UpdateUser(ctx context.Context, q sqlx.ExecerContext, u domain.User) error {
	res, err := q.ExecContext(ctx, `UPDATE users SET full_name=?, role=?, department=?, active=?, registered=? WHERE id=?`,
		u.FullName, string(u.Role), u.Department, u.Active, u.Registered, u.ID)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.NotFoundError{Kind: "user", ID: u.ID}
	}
	return nil
}

func (r Repo) GetUser(ctx context.Context, q sqlx.QueryerContext, id string) (domain.User, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+userColumns+` FROM users WHERE id=?`, id); err != nil {
		return domain.User{}, notFound(err, "user", id)
	}
	return row.toDomain()
}

type UserFilters struct {
	Role       string
	Department string
	ActiveOnly bool
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	return r.FindUsers(ctx, UserFilters{})
}

func (r Repo) FindUsers(ctx context.Context, f UserFilters) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	var args []any
	if f.Role != "" {
		query += ` AND role=?`
		args = append(args, f.Role)
	}
	if f.Department != "" {
		query += ` AND department=?`
		args = append(args, f.Department)
	}
	if f.ActiveOnly {
		query += ` AND active=1`
	}
	query += ` ORDER BY full_name, id`
	var rows []userRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		u, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, nil
}

type linkRow struct {
	ManagerID     string `db:"manager_id"`
	SubordinateID string `db:"subordinate_id"`
	CreatedAt     string `db:"created_at"`
}

func (r Repo) ListManagerLinks(ctx context.Context) ([]domain.ManagerLink, error) {
	return r.listLinks(ctx, r.DB)
}

// ListManagerLinksTx reads the graph inside a transaction so cycle checks see the
// same state the insert will commit against.
func (r Repo) ListManagerLinksTx(ctx context.Context, q sqlx.QueryerContext) ([]domain.ManagerLink, error) {
	return r.listLinks(ctx, q)
}

func (r Repo) listLinks(ctx context.Context, q sqlx.QueryerContext) ([]domain.ManagerLink, error) {
	var rows []linkRow
	if err := sqlx.SelectContext(ctx, q, &rows, `SELECT manager_id,subordinate_id,created_at FROM manager_links ORDER BY created_at, manager_id, subordinate_id`); err != nil {
		return nil, err
	}
	res := make([]domain.ManagerLink, 0, len(rows))
	for _, row := range rows {
		created, err := parseTS(row.CreatedAt)
		if err != nil {
			return nil, err
		}
		res = append(res, domain.ManagerLink{ManagerID: row.ManagerID, SubordinateID: row.SubordinateID, CreatedAt: created})
	}
	return res, nil
}

func (r Repo) InsertManagerLink(ctx context.Context, q sqlx.ExecerContext, l domain.ManagerLink) error {
	_, err := q.ExecContext(ctx, `INSERT INTO manager_links(manager_id,subordinate_id,created_at) VALUES (?,?,?)`,
		l.ManagerID, l.SubordinateID, ts(l.CreatedAt))
	return err
}

func (r Repo) DeleteManagerLink(ctx context.Context, q sqlx.ExecerContext, managerID, subordinateID string) (bool, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM manager_links WHERE manager_id=? AND subordinate_id=?`, managerID, subordinateID)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// DeleteLinksOf drops every link where the user is either side.
func (r Repo) DeleteLinksOf(ctx context.Context, q sqlx.ExecerContext, userID string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM manager_links WHERE manager_id=? OR subordinate_id=?`, userID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
