package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_FixedWindow(t *testing.T) {
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return current })

	// limit=3: tres permitidos, el cuarto bloqueado.
	r1 := l.Allow("ip:1.2.3.4", 3, time.Second)
	assert.True(t, r1.Allowed)
	assert.Equal(t, 2, r1.Remaining)

	r2 := l.Allow("ip:1.2.3.4", 3, time.Second)
	assert.True(t, r2.Allowed)
	assert.Equal(t, 1, r2.Remaining)

	r3 := l.Allow("ip:1.2.3.4", 3, time.Second)
	assert.True(t, r3.Allowed)
	assert.Equal(t, 0, r3.Remaining)

	r4 := l.Allow("ip:1.2.3.4", 3, time.Second)
	assert.False(t, r4.Allowed)
	assert.Equal(t, 0, r4.Remaining)
	assert.Equal(t, current.Add(time.Second), r4.Reset)

	// Pasada la ventana el contador se reinicia.
	current = current.Add(1100 * time.Millisecond)
	r5 := l.Allow("ip:1.2.3.4", 3, time.Second)
	assert.True(t, r5.Allowed)
	assert.Equal(t, 2, r5.Remaining)
}

func TestAllow_IndependentKeys(t *testing.T) {
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return current })

	r := l.Allow("a", 1, time.Minute)
	assert.True(t, r.Allowed)
	r = l.Allow("a", 1, time.Minute)
	assert.False(t, r.Allowed)

	// Otra clave no se ve afectada.
	r = l.Allow("b", 1, time.Minute)
	assert.True(t, r.Allowed)
}

func TestAllow_SweepsExpiredEntries(t *testing.T) {
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return current })

	for i := 0; i < 100; i++ {
		l.Allow(string(rune('a'+i%26))+string(rune('0'+i%10)), 5, time.Second)
	}
	assert.NotEmpty(t, l.entries)

	// Todas las ventanas expiran; la siguiente llamada las barre.
	current = current.Add(2 * time.Second)
	l.Allow("fresh", 5, time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.entries, 1)
}

func TestAllow_BlockedDoesNotExtendWindow(t *testing.T) {
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return current })

	l.Allow("k", 1, time.Second)
	first := l.Allow("k", 1, time.Second)
	assert.False(t, first.Allowed)

	// Los intentos bloqueados no alargan la ventana.
	current = current.Add(900 * time.Millisecond)
	blocked := l.Allow("k", 1, time.Second)
	assert.False(t, blocked.Allowed)
	assert.Equal(t, first.Reset, blocked.Reset)

	current = current.Add(200 * time.Millisecond)
	after := l.Allow("k", 1, time.Second)
	assert.True(t, after.Allowed)
}
