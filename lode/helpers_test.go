package lode

import (
	"context"
	"errors"
	"io"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/rawzeo/record"
)

// sharedFactory returns a StoreFactory that always returns the given store,
// so write and read datasets share the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

// FailingStore is a lode.Store that returns configurable errors.
type FailingStore struct {
	PutErr    error
	GetErr    error
	ExistsErr error
	ListErr   error
	DeleteErr error

	PutCalls int
}

func (s *FailingStore) Put(_ context.Context, _ string, _ io.Reader) error {
	s.PutCalls++
	return s.PutErr
}

func (s *FailingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, s.GetErr
}

func (s *FailingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, s.ExistsErr
}

func (s *FailingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, s.ListErr
}

func (s *FailingStore) Delete(_ context.Context, _ string) error {
	return s.DeleteErr
}

func (s *FailingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*FailingStore)(nil)

func testConfig(session string) Config {
	return Config{
		Dataset:   "rawzeo",
		Device:    "bedside",
		Day:       "2026-10-14",
		SessionID: session,
		Profile:   "zeo",
	}
}

func envelope(kind record.Kind, offset int64, data map[string]any) record.Envelope {
	return record.Envelope{Kind: kind, Offset: offset, Tag: 0x9D, Version: '4', Data: data}
}
