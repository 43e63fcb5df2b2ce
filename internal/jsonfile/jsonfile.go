// Package jsonfile persiste um documento JSON inteiro por escrita (read-modify-write),
// com lock exclusivo cobrindo load → mutação → persistência.
//
// O lock combina um mutex do processo com um flock advisory no arquivo "<path>.lock",
// então escritores em processos diferentes também são serializados (em plataformas unix).
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File é um documento JSON no disco.
type File struct {
	path string
	mu   sync.Mutex
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Update carrega o documento em um T, chama fn e grava o resultado se fn pedir.
//
// Arquivo ausente, vazio ou com conteúdo que não decodifica em T chega em fn
// como o valor zero de T (falha de leitura nunca é erro).
// Erros de escrita são sempre retornados.
func Update[T any](f *File, fn func(v *T) (save bool, err error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", f.path, err)
	}

	unlock, err := lockFile(f.path + ".lock")
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer unlock()

	v := load[T](f.path)
	save, err := fn(&v)
	if err != nil || !save {
		return err
	}
	return write(f.path, v)
}

// Read devolve o documento atual, com a mesma regra de fallback de Update.
// Arquivo ausente devolve o valor zero sem criar diretório nem lock.
func Read[T any](f *File) (T, error) {
	var zero T

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.path); errors.Is(err, fs.ErrNotExist) {
		return zero, nil
	}

	unlock, err := lockFile(f.path + ".lock")
	if err != nil {
		return zero, fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer unlock()

	return load[T](f.path), nil
}

func load[T any](path string) T {
	var zero T

	data, err := os.ReadFile(path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return zero
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero
	}
	return v
}

// Marshal serializa no formato persistido: indentado e sem escapar '/', '<', '>' e '&'.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// write grava em arquivo temporário e faz rename, para que leitores nunca vejam escrita parcial.
func write(path string, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
