package password

import (
	"strings"
	"testing"

	"github.com/talentdock/authcore/internal/domain/repository"
)

// parámetros livianos: el costo de producción no aporta nada acá
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := Hash(testParams, plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return h
}

func TestHashVerify_RoundTrip(t *testing.T) {
	h := mustHash(t, "Secreta9!")
	if !Verify("Secreta9!", h) {
		t.Fatal("el password correcto no verifica")
	}
	if Verify("Secreta8!", h) {
		t.Fatal("un password incorrecto verifica")
	}
}

func TestVerify_ParametrosDelPropioHash(t *testing.T) {
	// Un hash generado con otros parámetros sigue verificando: los
	// parámetros se leen del PHC string, no de Default.
	other := Params{Memory: 16 * 1024, Time: 2, Parallelism: 2, KeyLen: 32}
	h, err := Hash(other, "Secreta9!")
	if err != nil {
		t.Fatal(err)
	}
	if !Verify("Secreta9!", h) {
		t.Fatal("hash con parámetros distintos no verifica")
	}
}

func TestVerify_RechazaBasura(t *testing.T) {
	for _, phc := range []string{
		"",
		"no-es-phc",
		"$argon2id$v=18$m=8,t=1,p=1$aaaa$bbbb", // versión desconocida
		"$argon2i$v=19$m=8,t=1,p=1$aaaa$bbbb",  // variante incorrecta
		"$argon2id$v=19$m=8,t=1,p=1$aaaa",      // faltan segmentos
		"$argon2id$v=19$m=8,t=1,p=1$aaaa$bbbb$cccc",
		"$argon2id$v=19$m=8,p=1$aaaa$bbbb", // parámetros incompletos
		"$argon2id$v=19$m=8,t=1,p=1$!!$bbbb",
	} {
		if Verify("lo que sea", phc) {
			t.Fatalf("verificó contra %q", phc)
		}
	}
}

func TestVerify_ParseaLosSeisSegmentos(t *testing.T) {
	// El PHC entero tiene que parsear: salt y derived key son segmentos
	// separados por '$' y el parser no puede comerse los dos juntos.
	h := mustHash(t, "Tr3menda!Clave")
	if parts := strings.Split(h, "$"); len(parts) != 6 || parts[1] != "argon2id" {
		t.Fatalf("formato PHC inesperado: %q", h)
	}
	if !Verify("Tr3menda!Clave", h) {
		t.Fatalf("Verify rechaza el password correcto para %q", h)
	}
}

func TestWasRecentlyUsed_HashVivo(t *testing.T) {
	acc := &repository.Account{PasswordHash: mustHash(t, "Actual12!")}
	if !WasRecentlyUsed(acc, "Actual12!") {
		t.Fatal("el hash vivo cuenta como reciente")
	}
	if WasRecentlyUsed(acc, "Nuevo123!") {
		t.Fatal("un password nunca usado no es reciente")
	}
}

func TestWasRecentlyUsed_Historial(t *testing.T) {
	acc := &repository.Account{
		PasswordHash: mustHash(t, "Actual12!"),
		PasswordHistory: []string{
			mustHash(t, "Viejo123!"),
			mustHash(t, "MasViejo1!"),
		},
	}
	for _, used := range []string{"Actual12!", "Viejo123!", "MasViejo1!"} {
		if !WasRecentlyUsed(acc, used) {
			t.Fatalf("%q debería ser reciente", used)
		}
	}
	if WasRecentlyUsed(acc, "Fresco99!") {
		t.Fatal("falso positivo")
	}
}

func TestWasRecentlyUsed_NilAccount(t *testing.T) {
	if WasRecentlyUsed(nil, "x") {
		t.Fatal("cuenta nil no puede tener historial")
	}
}

func TestPushPasswordHistory_Limite(t *testing.T) {
	acc := &repository.Account{}
	for i := 0; i < repository.PasswordHistoryLimit+3; i++ {
		acc.PushPasswordHistory(string(rune('a' + i)))
	}
	if len(acc.PasswordHistory) != repository.PasswordHistoryLimit {
		t.Fatalf("historial de %d entradas, esperaba %d", len(acc.PasswordHistory), repository.PasswordHistoryLimit)
	}
	// más reciente primero
	if acc.PasswordHistory[0] != string(rune('a'+repository.PasswordHistoryLimit+2)) {
		t.Fatalf("orden incorrecto: %v", acc.PasswordHistory)
	}
}

func TestPushPasswordHistory_IgnoraVacio(t *testing.T) {
	acc := &repository.Account{}
	acc.PushPasswordHistory("")
	if len(acc.PasswordHistory) != 0 {
		t.Fatal("el hash vacío (cuenta nueva) no entra al historial")
	}
}
