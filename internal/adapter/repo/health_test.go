package repo

import (
	"context"
	"errors"
	"net"
	"testing"

	"contentfactory/internal/domain"
	"contentfactory/internal/sqlinline"
)

func TestStorePingerOK(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QPing, valueRow{values: []any{1}})
	if err := NewStorePinger(sql).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestStorePingerConnectionFailure(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QPing, valueRow{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}})
	err := NewStorePinger(sql).Ping(context.Background())
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}
