package password

import "github.com/talentdock/authcore/internal/domain/repository"

// WasRecentlyUsed compara el candidato contra el hash vivo Y contra cada
// entrada del historial. Ambos chequeos son necesarios: según el orden de
// llamada en el caller, el historial puede ir un paso atrás del hash vivo
// y chequear uno solo habilita un bypass de reuso conocido.
//
// CPU-bound (un Verify de argon2 por entrada): los callers no deberían
// invocarlo en paths donde el lockout ya aplica.
func WasRecentlyUsed(acc *repository.Account, candidate string) bool {
	if acc == nil {
		return false
	}
	if acc.PasswordHash != "" && Verify(candidate, acc.PasswordHash) {
		return true
	}
	for _, h := range acc.PasswordHistory {
		if Verify(candidate, h) {
			return true
		}
	}
	return false
}
