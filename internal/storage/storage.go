// Package storage prepara o diretório onde ficam os arquivos do tracker.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AccessFile é o marcador que instrui o servidor web (Apache) a negar acesso direto ao diretório.
const AccessFile = ".htaccess"

const accessContent = "Order allow,deny\nDeny from all"

// Prepare cria o diretório (0755) e o marcador de acesso, se ainda não existirem.
// Um marcador existente nunca é sobrescrito.
func Prepare(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, AccessFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(accessContent), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
