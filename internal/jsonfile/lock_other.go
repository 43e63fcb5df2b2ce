//go:build !unix

package jsonfile

// sem flock fora de unix: só o mutex do processo protege o arquivo.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
