package repo

import (
	"context"

	"contentfactory/internal/infra"
	"contentfactory/internal/sqlinline"
)

// StorePinger checks the ledger store with a trivial query.
type StorePinger struct {
	sql infra.SQLExecutor
}

func NewStorePinger(sql infra.SQLExecutor) *StorePinger {
	return &StorePinger{sql: sql}
}

// Ping satisfies infra.Pinger.
func (p *StorePinger) Ping(ctx context.Context) error {
	var one int
	return classify("ping", p.sql.QueryRow(ctx, sqlinline.QPing).Scan(&one))
}
