package repo

import (
	"context"

	"contentfactory/internal/domain"
	"contentfactory/internal/infra"
	"contentfactory/internal/sqlinline"
)

// MediaRepositoryPG implements domain.MediaRepository.
type MediaRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewMediaRepository(sql infra.SQLExecutor) *MediaRepositoryPG {
	return &MediaRepositoryPG{sql: sql}
}

func (r *MediaRepositoryPG) Register(ctx context.Context, file domain.MediaFile) (*domain.MediaFile, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertMedia,
		file.SessionID,
		file.FileKey,
		file.FileName,
		file.FileType,
		file.MimeType,
		file.FileSize,
		file.Source,
		file.Metadata.Bytes(),
	)
	var out domain.MediaFile
	var metadata []byte
	if err := row.Scan(
		&out.ID,
		&out.SessionID,
		&out.FileKey,
		&out.FileName,
		&out.FileType,
		&out.MimeType,
		&out.FileSize,
		&out.Source,
		&metadata,
		&out.CreatedAt,
	); err != nil {
		return nil, classify("register media", err)
	}
	out.Metadata = domain.Document(metadata)
	return &out, nil
}

var _ domain.MediaRepository = (*MediaRepositoryPG)(nil)
