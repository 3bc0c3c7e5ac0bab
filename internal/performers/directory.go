package performers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
)

// Performer is a tip beneficiary. Credentials maps a processor name to the
// account reference used to route funds (a paypal handle, a merchant id).
type Performer struct {
	ID          string
	Name        string
	Email       string
	Active      bool
	Credentials map[string]string
	Settings    Settings
	Stats       Stats
	CreatedAt   time.Time
}

// Settings are per-performer tip constraints.
type Settings struct {
	MinTipAmount int64
	Currency     string
}

// Stats accumulate settled tips.
type Stats struct {
	TipCount    int
	TotalAmount int64
}

func (p *Performer) clone() *Performer {
	dup := *p
	dup.Credentials = make(map[string]string, len(p.Credentials))
	for k, v := range p.Credentials {
		dup.Credentials[k] = v
	}
	return &dup
}

// Credential returns the account reference for a processor.
func (p *Performer) Credential(processor string) (string, bool) {
	cred, ok := p.Credentials[strings.ToLower(processor)]
	return cred, ok && cred != ""
}

// Directory is the in-memory performer registry.
type Directory struct {
	mu         sync.RWMutex
	performers map[string]*Performer
}

func NewDirectory() *Directory {
	return &Directory{performers: make(map[string]*Performer)}
}

// SeedDefault registers the configured default performer so the system is
// usable without a provisioning step.
func (d *Directory) SeedDefault(ctx context.Context, cfg config.PerformerConfig) (*Performer, error) {
	return d.Create(ctx, CreateInput{
		Name:  cfg.DefaultName,
		Email: cfg.DefaultEmail,
		Credentials: map[string]string{
			"paypal": cfg.DefaultPayPalEmail,
		},
		Settings: Settings{
			MinTipAmount: cfg.MinTipAmount,
			Currency:     cfg.Currency,
		},
	})
}

// CreateInput carries the data needed to register a performer.
type CreateInput struct {
	Name        string
	Email       string
	Credentials map[string]string
	Settings    Settings
}

func (d *Directory) Create(ctx context.Context, input CreateInput) (*Performer, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "performer name is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "performer email is required")
	}

	performer := &Performer{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(input.Name),
		Email:       strings.TrimSpace(input.Email),
		Active:      true,
		Credentials: make(map[string]string, len(input.Credentials)),
		Settings:    input.Settings,
		CreatedAt:   time.Now().UTC(),
	}
	for processor, cred := range input.Credentials {
		if cred != "" {
			performer.Credentials[strings.ToLower(processor)] = cred
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.performers[performer.ID] = performer
	return performer.clone(), nil
}

func (d *Directory) Get(ctx context.Context, id string) (*Performer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	performer, ok := d.performers[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "performer not found")
	}
	return performer.clone(), nil
}

func (d *Directory) List(ctx context.Context) ([]*Performer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Performer, 0, len(d.performers))
	for _, performer := range d.performers {
		out = append(out, performer.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SetActive flips the performer's availability for new tips.
func (d *Directory) SetActive(ctx context.Context, id string, active bool) (*Performer, error) {
	return d.mutate(id, func(p *Performer) error {
		p.Active = active
		return nil
	})
}

// UpdateSettings replaces the performer's tip constraints.
func (d *Directory) UpdateSettings(ctx context.Context, id string, settings Settings) (*Performer, error) {
	if settings.MinTipAmount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum tip amount cannot be negative")
	}
	return d.mutate(id, func(p *Performer) error {
		p.Settings = settings
		return nil
	})
}

// SetCredential stores a processor account reference. Empty removes it.
func (d *Directory) SetCredential(ctx context.Context, id, processor, credential string) (*Performer, error) {
	name := strings.ToLower(strings.TrimSpace(processor))
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processor name is required")
	}
	return d.mutate(id, func(p *Performer) error {
		if credential == "" {
			delete(p.Credentials, name)
			return nil
		}
		p.Credentials[name] = credential
		return nil
	})
}

// RecordSettled folds one completed tip into the performer's stats.
func (d *Directory) RecordSettled(ctx context.Context, id string, netAmount int64) error {
	_, err := d.mutate(id, func(p *Performer) error {
		p.Stats.TipCount++
		p.Stats.TotalAmount += netAmount
		return nil
	})
	return err
}

func (d *Directory) mutate(id string, fn func(*Performer) error) (*Performer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	performer, ok := d.performers[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "performer not found")
	}
	working := performer.clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	d.performers[id] = working
	return working.clone(), nil
}
