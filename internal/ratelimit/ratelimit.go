// Package ratelimit implementa un limitador de ventana fija por clave
// arbitraria (IP, email o compuesta). El estado es local al proceso: en un
// despliegue multi-instancia el límite es solo orientativo.
package ratelimit

import (
	"sync"
	"time"
)

type entry struct {
	count     int
	windowEnd time.Time
}

// Result es el veredicto de una llamada a Allow.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter mantiene un contador por clave dentro de una ventana fija.
// Las entradas expiradas se barren en cada llamada para acotar el mapa.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// NewWithClock permite inyectar el reloj. Solo para tests.
func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     now,
	}
}

// Allow registra un intento para key y decide si se permite.
// La primera llamada abre una ventana de duración window con count=1;
// dentro de la ventana se incrementa hasta limit; al expirar se reinicia.
func (l *Limiter) Allow(key string, limit int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, e := range l.entries {
		if !e.windowEnd.After(now) {
			delete(l.entries, k)
		}
	}

	e, ok := l.entries[key]
	if !ok || !e.windowEnd.After(now) {
		e = &entry{count: 1, windowEnd: now.Add(window)}
		l.entries[key] = e
		return Result{Allowed: true, Remaining: limit - 1, Reset: e.windowEnd}
	}

	if e.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: e.windowEnd}
	}
	e.count++
	return Result{Allowed: true, Remaining: limit - e.count, Reset: e.windowEnd}
}

// Reset vacía todas las ventanas. Solo para tests.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry)
}

// Default es el limitador compartido del proceso.
var Default = New()

// Allow usa el limitador compartido.
func Allow(key string, limit int, window time.Duration) Result {
	return Default.Allow(key, limit, window)
}
