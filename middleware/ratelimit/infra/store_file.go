package infra

import (
	"context"
	"time"

	"visitor-tracker/internal/jsonfile"
	"visitor-tracker/middleware/ratelimit/domain"
)

// FileStore persiste o State inteiro em um arquivo JSON.
//
// O lock do jsonfile cobre load → prune/check → append → persist, então
// requisições concorrentes não conseguem ultrapassar o limite.
// Em rejeição o arquivo não é regravado.
type FileStore struct {
	file *jsonfile.File
}

func NewFileStore(path string) *FileStore {
	return &FileStore{file: jsonfile.New(path)}
}

func (s *FileStore) Path() string { return s.file.Path() }

// Admit implementa domain.WindowStore.
func (s *FileStore) Admit(_ context.Context, key domain.Key, now time.Time, p domain.Policy) (domain.Decision, error) {
	var dec domain.Decision
	err := jsonfile.Update(s.file, func(st *domain.State) (bool, error) {
		if *st == nil {
			*st = domain.State{}
		}
		dec = (*st).Admit(key, now, p)
		return dec.Allowed, nil
	})
	return dec, err
}

// Peek devolve os timestamps ainda dentro da janela para key.
func (s *FileStore) Peek(_ context.Context, key domain.Key, now time.Time, p domain.Policy) ([]int64, error) {
	st, err := jsonfile.Read[domain.State](s.file)
	if err != nil {
		return nil, err
	}
	return domain.Window(st[key], p.Cutoff(now)), nil
}

// Reset remove key do arquivo.
func (s *FileStore) Reset(_ context.Context, key domain.Key) error {
	return jsonfile.Update(s.file, func(st *domain.State) (bool, error) {
		if _, ok := (*st)[key]; !ok {
			return false, nil
		}
		delete(*st, key)
		return true, nil
	})
}
