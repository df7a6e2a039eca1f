package lockout

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryTracker_UmbralDeBloqueo(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()

	// CLEAN → WARNING(1..4): todavía sin bloqueo
	for i := 1; i < Threshold; i++ {
		st, err := tr.RecordFailure(ctx, "ana@example.com")
		if err != nil {
			t.Fatal(err)
		}
		if st.Locked || st.JustLocked {
			t.Fatalf("fallo %d no debería bloquear", i)
		}
		if st.Count != i {
			t.Fatalf("count %d, esperaba %d", st.Count, i)
		}
	}

	// El fallo Threshold cruza el umbral exactamente una vez
	st, err := tr.RecordFailure(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Locked || !st.JustLocked {
		t.Fatalf("el fallo %d debe disparar el bloqueo: %+v", Threshold, st)
	}
	if st.RetryAfter != LockWindow {
		t.Fatalf("RetryAfter %v, esperaba %v", st.RetryAfter, LockWindow)
	}

	// Bloqueada: más fallos no re-disparan JustLocked ni extienden nada
	st, err = tr.RecordFailure(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Locked || st.JustLocked {
		t.Fatalf("fallo durante el bloqueo: %+v", st)
	}

	status, err := tr.Status(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !status.Locked || status.RetryAfter <= 0 {
		t.Fatalf("status: %+v", status)
	}
}

func TestMemoryTracker_IdentificadorNormalizado(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()

	for i := 0; i < Threshold; i++ {
		if _, err := tr.RecordFailure(ctx, "  Ana@Example.COM "); err != nil {
			t.Fatal(err)
		}
	}
	st, err := tr.Status(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Locked {
		t.Fatal("el identificador debe normalizarse (case + espacios)")
	}
}

func TestMemoryTracker_ExpiracionDelBloqueo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewMemoryTracker().WithClock(func() time.Time { return now })

	for i := 0; i < Threshold; i++ {
		if _, err := tr.RecordFailure(ctx, "ana@example.com"); err != nil {
			t.Fatal(err)
		}
	}
	if st, _ := tr.Status(ctx, "ana@example.com"); !st.Locked {
		t.Fatal("debería estar bloqueada")
	}

	// Avanza el reloj más allá de la ventana
	now = now.Add(LockWindow + time.Second)
	st, err := tr.Status(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if st.Locked {
		t.Fatal("el bloqueo debe vencer solo")
	}

	// Y el contador arranca de cero: un fallo nuevo no re-bloquea
	rec, err := tr.RecordFailure(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Locked || rec.Count != 1 {
		t.Fatalf("post-vencimiento: %+v", rec)
	}
}

func TestMemoryTracker_Reset(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()

	for i := 0; i < Threshold-1; i++ {
		if _, err := tr.RecordFailure(ctx, "ana@example.com"); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.Reset(ctx, "ana@example.com"); err != nil {
		t.Fatal(err)
	}
	st, err := tr.RecordFailure(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if st.Count != 1 {
		t.Fatalf("después del reset el contador arranca en 1, got %d", st.Count)
	}
}

func TestMemoryTracker_IncrementoAtomico(t *testing.T) {
	// N goroutines registrando fallos en paralelo: sin lost updates, el
	// bloqueo se dispara exactamente una vez.
	ctx := context.Background()
	tr := NewMemoryTracker()

	const n = 50
	var wg sync.WaitGroup
	justLocked := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := tr.RecordFailure(ctx, "ana@example.com")
			if err != nil {
				t.Error(err)
				return
			}
			if st.JustLocked {
				justLocked <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(justLocked)

	count := 0
	for range justLocked {
		count++
	}
	if count != 1 {
		t.Fatalf("JustLocked %d veces, esperaba exactamente 1", count)
	}
	if st, _ := tr.Status(ctx, "ana@example.com"); !st.Locked {
		t.Fatal("debería quedar bloqueada")
	}
}

func TestRetryAfterMinutes(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{-time.Minute, 0},
		{30 * time.Second, 1},
		{time.Minute, 1},
		{9*time.Minute + time.Second, 10},
		{10 * time.Minute, 10},
	}
	for _, c := range cases {
		if got := RetryAfterMinutes(c.d); got != c.want {
			t.Fatalf("RetryAfterMinutes(%v) = %d, esperaba %d", c.d, got, c.want)
		}
	}
}

func TestMemoryTracker_LimitesConfigurables(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker().WithLimits(Limits{Threshold: 2, LockWindow: 3 * time.Minute})

	st, err := tr.RecordFailure(ctx, "bea@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if st.Locked {
		t.Fatalf("primer fallo no debería bloquear: %+v", st)
	}

	st, err = tr.RecordFailure(ctx, "bea@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Locked || !st.JustLocked {
		t.Fatalf("con umbral 2 el segundo fallo bloquea: %+v", st)
	}
	if st.RetryAfter != 3*time.Minute {
		t.Fatalf("RetryAfter %v, esperaba la ventana configurada de 3m", st.RetryAfter)
	}

	// Zero values caen en los defaults del paquete.
	def := Limits{}.normalized()
	if def.Threshold != Threshold || def.LockWindow != LockWindow || def.IdleTTL != IdleTTL {
		t.Fatalf("límites por defecto: %+v", def)
	}
}
