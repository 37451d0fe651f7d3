package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type Repository interface {
	StoreConnection(ctx context.Context, userId int, c Connection) (Connection, error)
	GetConnection(ctx context.Context, userId int, id int) (Connection, error)
	GetConnections(ctx context.Context, userId int) ([]Connection, error)
	UpdateToken(ctx context.Context, userId int, id int, token *oauth2.Token) error
	DeleteConnection(ctx context.Context, userId int, id int) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const connectionColumns = `id, provider, calendar_id, calendar_name, calendar_url, username, password,
	access_token, refresh_token, token_type, token_expiry, enabled`

func (r *RepositoryImpl) StoreConnection(ctx context.Context, userId int, c Connection) (Connection, error) {
	accessToken, refreshToken, tokenType, expiry := tokenColumns(c.Token)
	query := `INSERT INTO calendar_connection (user_id, provider, calendar_id, calendar_name, calendar_url, username,
				password, access_token, refresh_token, token_type, token_expiry, enabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`
	err := r.db.QueryRow(ctx, query, userId, c.Provider, c.CalendarId, c.CalendarName, c.CalendarURL, c.Username,
		c.Password, accessToken, refreshToken, tokenType, expiry, c.Enabled).Scan(&c.Id)
	if err != nil {
		err := fmt.Errorf("could not store calendar connection: %w", err)
		log.Error(err)
		return Connection{}, err
	}
	return c, nil
}

func (r *RepositoryImpl) GetConnection(ctx context.Context, userId int, id int) (Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connection WHERE user_id = $1 AND id = $2`
	c, err := scanConnection(r.db.QueryRow(ctx, query, userId, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Connection{}, ErrConnectionNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not get calendar connection %d: %w", id, err)
		log.Error(err)
		return Connection{}, err
	}
	return c, nil
}

func (r *RepositoryImpl) GetConnections(ctx context.Context, userId int) ([]Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connection WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, userId)
	if err != nil {
		err := fmt.Errorf("could not query calendar connections: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	connections := make([]Connection, 0)
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			err := fmt.Errorf("could not scan calendar connection: %w", err)
			log.Error(err)
			return nil, err
		}
		connections = append(connections, c)
	}
	return connections, rows.Err()
}

func (r *RepositoryImpl) UpdateToken(ctx context.Context, userId int, id int, token *oauth2.Token) error {
	accessToken, refreshToken, tokenType, expiry := tokenColumns(token)
	query := `UPDATE calendar_connection
			SET access_token = $1, refresh_token = COALESCE(NULLIF($2, ''), refresh_token), token_type = $3, token_expiry = $4
			WHERE user_id = $5 AND id = $6`
	tag, err := r.db.Exec(ctx, query, accessToken, refreshToken, tokenType, expiry, userId, id)
	if err != nil {
		err := fmt.Errorf("could not update token of connection %d: %w", id, err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func (r *RepositoryImpl) DeleteConnection(ctx context.Context, userId int, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM calendar_connection WHERE user_id = $1 AND id = $2`, userId, id)
	if err != nil {
		err := fmt.Errorf("could not delete calendar connection %d: %w", id, err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func tokenColumns(token *oauth2.Token) (string, string, string, sql.NullTime) {
	if token == nil {
		return "", "", "", sql.NullTime{}
	}
	expiry := sql.NullTime{Time: token.Expiry, Valid: !token.Expiry.IsZero()}
	return token.AccessToken, token.RefreshToken, token.TokenType, expiry
}

func scanConnection(row pgx.Row) (Connection, error) {
	var c Connection
	var accessToken, refreshToken, tokenType string
	var expiry sql.NullTime
	err := row.Scan(&c.Id, &c.Provider, &c.CalendarId, &c.CalendarName, &c.CalendarURL, &c.Username, &c.Password,
		&accessToken, &refreshToken, &tokenType, &expiry, &c.Enabled)
	if err != nil {
		return Connection{}, err
	}
	if accessToken != "" || refreshToken != "" {
		c.Token = &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: tokenType}
		if expiry.Valid {
			c.Token.Expiry = expiry.Time
		}
	}
	return c, nil
}
