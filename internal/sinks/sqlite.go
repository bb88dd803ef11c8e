package sinks

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink 把记录写入 articles 表,(run_id, link) 相同时覆盖
type SQLiteSink struct {
	path string
	db   *sql.DB
}

// NewSQLiteSink 打开数据库并建表
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	s := &SQLiteSink{path: path, db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据库表失败: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		run_id TEXT NOT NULL,
		profile TEXT NOT NULL,
		link TEXT NOT NULL,
		title TEXT,
		published_at TEXT,
		body TEXT,
		error TEXT,
		detail TEXT,
		crawled_at TEXT NOT NULL,
		PRIMARY KEY (run_id, link)
	);

	CREATE INDEX IF NOT EXISTS idx_articles_link ON articles(link);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Name 实现 Sink
func (s *SQLiteSink) Name() string {
	return FormatSQLite
}

// Write 在一个事务中写入一次运行的全部记录
func (s *SQLiteSink) Write(ctx context.Context, run *models.CrawlRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (
			run_id, profile, link, title, published_at, body, error, detail, crawled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, link) DO UPDATE SET
			title = excluded.title,
			published_at = excluded.published_at,
			body = excluded.body,
			error = excluded.error,
			detail = excluded.detail,
			crawled_at = excluded.crawled_at
	`)
	if err != nil {
		return fmt.Errorf("准备写入语句失败: %w", err)
	}
	defer stmt.Close()

	crawledAt := run.StartedAt.UTC().Format(models.PublishedAtLayout)
	for _, rec := range run.Records {
		var published *string
		if rec.PublishedAt != nil {
			v := rec.PublishedAt.Format(models.PublishedAtLayout)
			published = &v
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID,
			run.Profile,
			rec.Link,
			rec.Title,
			published,
			rec.Body,
			string(rec.Error),
			rec.Detail,
			crawledAt,
		); err != nil {
			return fmt.Errorf("写入记录失败 [%s]: %w", rec.Link, err)
		}
	}

	return tx.Commit()
}

// Close 实现 Sink
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
