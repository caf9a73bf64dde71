// Package quotestore archives crawl results in sqlite so successive
// crawls of the same site can be compared later.
package quotestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"quotecrawl/lib/quotestore/db"
	"quotecrawl/lib/scrapers/quotes"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// OpenDB opens (creating if necessary) the archive database at path and
// applies the schema.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return nil, err
		}
	}

	sqlite, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite misbehaves under concurrent writers
	sqlite.SetMaxOpenConns(1)

	_, err = sqlite.Exec("pragma journal_mode = wal;")
	if err != nil {
		sqlite.Close()
		return nil, err
	}
	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		sqlite.Close()
		return nil, err
	}
	return sqlite, nil
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

type CrawlResult struct {
	BaseURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	Quotes     []quotes.Quote
	Authors    []quotes.Author
}

// Push archives one finished crawl in a single transaction and returns
// its crawl id.
func (s Store) Push(ctx context.Context, result CrawlResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		`insert into crawls (base_url, started_at, finished_at) values (?, ?, ?)`,
		result.BaseURL,
		result.StartedAt.Unix(),
		result.FinishedAt.Unix(),
	)
	if err != nil {
		return 0, err
	}
	crawlId, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, quote := range result.Quotes {
		tags, err := json.Marshal(quote.Tags)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(
			ctx,
			`insert into quotes (crawl_id, text, author, author_url, tags) values (?, ?, ?, ?, ?)`,
			crawlId,
			quote.Text,
			quote.Author,
			nullableString(quote.AuthorURL),
			string(tags),
		)
		if err != nil {
			return 0, err
		}
	}

	for _, author := range result.Authors {
		_, err = tx.ExecContext(
			ctx,
			`insert into authors (crawl_id, fullname, birth_date, birth_place, bio) values (?, ?, ?, ?, ?)`,
			crawlId,
			author.Fullname,
			nullableString(author.BirthDate),
			author.BirthPlace,
			author.Bio,
		)
		if err != nil {
			return 0, err
		}
	}

	return crawlId, tx.Commit()
}

func (s Store) PullQuotes(ctx context.Context, crawlId int64) ([]quotes.Quote, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select text, author, author_url, tags from quotes where crawl_id = ? order by id`,
		crawlId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quotes.Quote
	for rows.Next() {
		var quote quotes.Quote
		var authorUrl sql.NullString
		var tags string
		err = rows.Scan(&quote.Text, &quote.Author, &authorUrl, &tags)
		if err != nil {
			return nil, err
		}
		if authorUrl.Valid {
			quote.AuthorURL = &authorUrl.String
		}
		err = json.Unmarshal([]byte(tags), &quote.Tags)
		if err != nil {
			slog.WarnContext(ctx, "failed to unmarshal db tags", "err", err)
			quote.Tags = []string{}
		}
		out = append(out, quote)
	}
	return out, rows.Err()
}

func (s Store) PullAuthors(ctx context.Context, crawlId int64) ([]quotes.Author, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select fullname, birth_date, birth_place, bio from authors where crawl_id = ? order by id`,
		crawlId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quotes.Author
	for rows.Next() {
		var author quotes.Author
		var birthDate sql.NullString
		err = rows.Scan(&author.Fullname, &birthDate, &author.BirthPlace, &author.Bio)
		if err != nil {
			return nil, err
		}
		if birthDate.Valid {
			author.BirthDate = &birthDate.String
		}
		out = append(out, author)
	}
	return out, rows.Err()
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
