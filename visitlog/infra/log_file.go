package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"visitor-tracker/internal/jsonfile"
	"visitor-tracker/visitlog/domain"
)

// FileLog guarda todas as visitas em um array JSON, regravado a cada Append.
// Um topo que não é array é tratado como log vazio. Elementos existentes são
// regravados como estão, mesmo os que não decodificam em domain.Record.
type FileLog struct {
	file *jsonfile.File
}

func NewFileLog(path string) *FileLog {
	return &FileLog{file: jsonfile.New(path)}
}

func (l *FileLog) Path() string { return l.file.Path() }

func (l *FileLog) Append(_ context.Context, rec domain.Record) error {
	raw, err := jsonfile.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode visit: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	return jsonfile.Update(l.file, func(elems *[]json.RawMessage) (bool, error) {
		*elems = append(*elems, raw)
		return true, nil
	})
}

// All devolve as visitas em ordem de inserção, pulando elementos ilegíveis.
func (l *FileLog) All(_ context.Context) ([]domain.Record, error) {
	elems, err := jsonfile.Read[[]json.RawMessage](l.file)
	if err != nil {
		return nil, err
	}

	recs := make([]domain.Record, 0, len(elems))
	for _, e := range elems {
		var rec domain.Record
		if err := json.Unmarshal(e, &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
