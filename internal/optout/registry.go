// Package optout mantiene la lista de exclusión de comunicaciones masivas:
// un único documento JSON en el bucket privado, leído y reescrito completo
// en cada cambio. Las escrituras son acciones esporádicas de admin o de
// usuario; no hay control de concurrencia sobre el documento.
package optout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"orientia/backend/internal/filestorage"
	orilog "orientia/backend/pkg/log"

	"go.uber.org/zap"
)

// ObjectName es la ruta del documento dentro del bucket.
const ObjectName = "system/communications-unsubscribed.json"

// Entry es una entrada de la lista de exclusión. Email siempre normalizado
// a minúsculas; como máximo una entrada por email.
type Entry struct {
	Email     string    `json:"email"`
	Reason    string    `json:"reason,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func provider() (filestorage.Provider, error) {
	if filestorage.DefaultProvider == nil {
		return nil, fmt.Errorf("file storage provider not initialized")
	}
	return filestorage.DefaultProvider, nil
}

func loadEntries(ctx context.Context, p filestorage.Provider) ([]Entry, error) {
	data, err := p.ReadObject(ctx, ObjectName)
	if err != nil {
		if errors.Is(err, filestorage.ErrObjectNotFound) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read opt-out list: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Un documento corrupto no debe tumbar las comunicaciones; se loguea
		// y se trata como lista vacía para que el siguiente write lo repare.
		orilog.L.Error("Opt-out list is corrupt, treating as empty", zap.Error(err))
		return []Entry{}, nil
	}
	return entries, nil
}

func saveEntries(ctx context.Context, p filestorage.Provider, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal opt-out list: %w", err)
	}
	if err := p.WriteObject(ctx, ObjectName, data); err != nil {
		return fmt.Errorf("failed to write opt-out list: %w", err)
	}
	return nil
}

// GetOptOutEmailSet devuelve el conjunto de emails excluidos, normalizados.
func GetOptOutEmailSet(ctx context.Context) (map[string]bool, error) {
	p, err := provider()
	if err != nil {
		return nil, err
	}
	entries, err := loadEntries(ctx, p)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[normalizeEmail(e.Email)] = true
	}
	return set, nil
}

// AddOptOutEmail añade un email a la lista. Idempotente: si ya estaba,
// devuelve alreadyExisted=true sin error.
func AddOptOutEmail(ctx context.Context, email, reason, source string) (alreadyExisted bool, err error) {
	p, err := provider()
	if err != nil {
		return false, err
	}
	email = normalizeEmail(email)
	if email == "" {
		return false, fmt.Errorf("email cannot be empty")
	}

	entries, err := loadEntries(ctx, p)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if normalizeEmail(e.Email) == email {
			return true, nil
		}
	}

	entries = append(entries, Entry{
		Email:     email,
		Reason:    reason,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	})
	if err := saveEntries(ctx, p, entries); err != nil {
		return false, err
	}
	orilog.L.Info("Email added to opt-out list", zap.String("source", source))
	return false, nil
}

// RemoveOptOutEmail elimina un email de la lista. Devuelve removed=false si
// no estaba.
func RemoveOptOutEmail(ctx context.Context, email string) (removed bool, err error) {
	p, err := provider()
	if err != nil {
		return false, err
	}
	email = normalizeEmail(email)

	entries, err := loadEntries(ctx, p)
	if err != nil {
		return false, err
	}
	kept := entries[:0]
	for _, e := range entries {
		if normalizeEmail(e.Email) == email {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return false, nil
	}
	if err := saveEntries(ctx, p, kept); err != nil {
		return false, err
	}
	return true, nil
}
