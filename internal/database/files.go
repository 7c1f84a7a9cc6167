package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ewbrowntech/atto-host/internal/models"
)

var ErrFileNotFound = errors.New("file not found")

type CreateFileParams struct {
	ID         string
	Filename   string
	SizeBytes  int64
	MimeType   string
	UploaderID int64
}

func (q *Queries) CreateFile(ctx context.Context, params CreateFileParams) (*models.FileAsset, error) {
	query := `
		INSERT INTO files (id, filename, size_bytes, mime_type, uploader_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, filename, size_bytes, mime_type, uploader_id, created_at
	`
	var file models.FileAsset

	err := q.db.QueryRow(ctx, query,
		params.ID,
		params.Filename,
		params.SizeBytes,
		params.MimeType,
		params.UploaderID,
	).Scan(
		&file.ID,
		&file.Filename,
		&file.SizeBytes,
		&file.MimeType,
		&file.UploaderID,
		&file.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return &file, nil
}

func (q *Queries) GetFileByID(ctx context.Context, id string) (*models.FileAsset, error) {
	query := `
		SELECT id, filename, size_bytes, mime_type, uploader_id, created_at
		FROM files
		WHERE id = $1
	`
	var file models.FileAsset

	err := q.db.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.Filename,
		&file.SizeBytes,
		&file.MimeType,
		&file.UploaderID,
		&file.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &file, nil
}

func (q *Queries) FileExists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM files WHERE id = $1)`

	var exists bool
	if err := q.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (q *Queries) ListFiles(ctx context.Context) ([]models.FileAsset, error) {
	query := `
		SELECT id, filename, size_bytes, mime_type, uploader_id, created_at
		FROM files
		ORDER BY created_at DESC
	`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []models.FileAsset{}
	for rows.Next() {
		var file models.FileAsset
		err := rows.Scan(
			&file.ID,
			&file.Filename,
			&file.SizeBytes,
			&file.MimeType,
			&file.UploaderID,
			&file.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

// ListFileIDs returns the ids of every metadata record. Used by the orphan
// cleanup to decide which blobs still have a backing record.
func (q *Queries) ListFileIDs(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM files`

	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// DeleteFileByID removes a single metadata record. It exists for the upload
// compensation path: a record whose blob rename failed must not survive.
func (q *Queries) DeleteFileByID(ctx context.Context, id string) error {
	query := `DELETE FROM files WHERE id = $1`

	_, err := q.db.Exec(ctx, query, id)
	return err
}

// DeleteAllFiles removes every metadata record and reports what was removed.
// Running it against an empty table succeeds with a zero count.
func (q *Queries) DeleteAllFiles(ctx context.Context) ([]string, int64, error) {
	query := `DELETE FROM files RETURNING id`

	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return ids, int64(len(ids)), nil
}
