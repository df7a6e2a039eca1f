package password

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Blacklist es la deny-list de passwords comunes.
// El match es por substring case-insensitive: "MyPassword123!" cae por
// contener "password".
type Blacklist struct {
	mu      sync.RWMutex
	entries []string
}

// defaultDeny son los passwords más comunes. Una instalación puede
// extender la lista con un archivo (una entrada por línea, # comenta).
var defaultDeny = []string{
	"password", "passw0rd", "contraseña", "qwerty", "123456", "12345678",
	"111111", "abc123", "letmein", "welcome", "admin", "iloveyou",
	"monkey", "dragon", "football", "master", "login", "sunshine",
}

// DefaultBlacklist retorna la deny-list embebida.
func DefaultBlacklist() *Blacklist {
	return &Blacklist{entries: defaultDeny}
}

// LoadBlacklist carga la deny-list embebida más las entradas del archivo.
// Path vacío = solo la embebida.
func LoadBlacklist(path string) (*Blacklist, error) {
	bl := DefaultBlacklist()
	if strings.TrimSpace(path) == "" {
		return bl, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	extra := make([]string, 0, 64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(strings.ToLower(sc.Text()))
		if s != "" && !strings.HasPrefix(s, "#") {
			extra = append(extra, s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	bl.entries = append(append([]string{}, bl.entries...), extra...)
	return bl, nil
}

// MatchesSubstring indica si el password contiene alguna entrada de la lista.
func (b *Blacklist) MatchesSubstring(pwd string) bool {
	if b == nil {
		return false
	}
	p := strings.ToLower(pwd)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.entries {
		if strings.Contains(p, e) {
			return true
		}
	}
	return false
}
