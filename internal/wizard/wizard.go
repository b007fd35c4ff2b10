// Package wizard implements the three step character creation flow:
// style, then avatar, then name, ending in a single creation request.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"ai-companion-demo/companion/internal/events"
	"ai-companion-demo/companion/internal/models"
	"ai-companion-demo/companion/internal/store"
	"ai-companion-demo/companion/pkg/logger"

	"github.com/lithammer/shortuuid/v4"
)

var (
	// ErrBusy is returned while a generation or submission runs for the same draft
	ErrBusy = errors.New("wizard is busy")
	// ErrStyleRequired means the draft has no style yet
	ErrStyleRequired = errors.New("style must be selected first")
	// ErrAvatarRequired means no avatar candidate was selected
	ErrAvatarRequired = errors.New("avatar must be selected first")
	// ErrNoCandidates means avatars have not been generated
	ErrNoCandidates = errors.New("no avatar candidates generated")
)

// Backend is the part of the backend API the wizard needs
type Backend interface {
	GenerateAvatar(ctx context.Context, req models.GenerateAvatarRequest) ([]string, error)
	CreateCharacter(ctx context.Context, req models.CreateCharacterRequest) (*models.Character, error)
}

// Config tunes wizard behaviour
type Config struct {
	// DemoFallback substitutes placeholder avatars when generation fails and
	// reports a demo character when creation fails.
	DemoFallback bool
	// RedirectAfter is how long the success screen stays before moving on
	RedirectAfter time.Duration
	// CandidateCount is how many avatars one generation produces
	CandidateCount int
}

// Key scopes a draft to one user's browser tab
type Key struct {
	UserID string
	TabID  string
}

func (k Key) String() string {
	tab := k.TabID
	if tab == "" {
		tab = "default"
	}
	return k.UserID + ":" + tab
}

// Result is the outcome of a submission
type Result struct {
	Character     *models.Character `json:"character"`
	RedirectAfter time.Duration     `json:"-"`
	Demo          bool              `json:"demo"`
}

// Service hands out wizards bound to draft keys
type Service struct {
	backend Backend
	drafts  store.DraftStore
	events  events.Publisher
	log     *logger.Logger
	cfg     Config

	mu   sync.Mutex
	busy map[string]struct{}

	seed func() int64
	now  func() time.Time
}

// NewService creates a wizard service
func NewService(backend Backend, drafts store.DraftStore, pub events.Publisher, log *logger.Logger, cfg Config) *Service {
	if cfg.CandidateCount <= 0 {
		cfg.CandidateCount = 4
	}
	if pub == nil {
		pub = events.Discard
	}
	return &Service{
		backend: backend,
		drafts:  drafts,
		events:  pub,
		log:     log.WithComponent("wizard"),
		cfg:     cfg,
		busy:    make(map[string]struct{}),
		seed:    rand.Int64,
		now:     time.Now,
	}
}

// Open returns the wizard for key, starting a fresh draft if none exists
func (s *Service) Open(ctx context.Context, key Key) (*Wizard, error) {
	w := &Wizard{svc: s, key: key}
	if _, err := w.load(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.busy[key]; ok {
		return false
	}
	s.busy[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	delete(s.busy, key)
	s.mu.Unlock()
}

// Wizard is one draft's state machine
type Wizard struct {
	svc *Service
	key Key
}

// Key returns the draft key
func (w *Wizard) Key() Key {
	return w.key
}

// Draft returns the current draft
func (w *Wizard) Draft(ctx context.Context) (*models.WizardDraft, error) {
	return w.load(ctx)
}

// SelectStyle stores the style, moves to avatar selection and generates candidates
func (w *Wizard) SelectStyle(ctx context.Context, style string) (*models.WizardDraft, error) {
	parsed, err := models.ParseStyle(style)
	if err != nil {
		return nil, &models.ValidationError{Field: "style", Message: "must be one of anime, cyberpunk, fantasy"}
	}

	return w.guarded(ctx, func(d *models.WizardDraft) error {
		if d.Style != parsed {
			d.AvatarCandidates = nil
			d.ClearSelection()
		}
		d.Style = parsed
		d.Step = models.StepSelectAvatar
		if err := w.save(ctx, d); err != nil {
			return err
		}
		w.publishStep(ctx, d)
		return w.generate(ctx, d)
	})
}

// SetAppearance stores the optional free text description used for generation
func (w *Wizard) SetAppearance(ctx context.Context, text string) (*models.WizardDraft, error) {
	appearance, err := models.ValidateAppearance(text)
	if err != nil {
		return nil, err
	}
	return w.guarded(ctx, func(d *models.WizardDraft) error {
		d.Appearance = appearance
		return w.save(ctx, d)
	})
}

// GenerateAvatars replaces the candidate list and clears the selection
func (w *Wizard) GenerateAvatars(ctx context.Context) (*models.WizardDraft, error) {
	return w.guarded(ctx, func(d *models.WizardDraft) error {
		if !d.HasStyle() {
			return ErrStyleRequired
		}
		return w.generate(ctx, d)
	})
}

// Regenerate is GenerateAvatars with a new seed
func (w *Wizard) Regenerate(ctx context.Context) (*models.WizardDraft, error) {
	return w.GenerateAvatars(ctx)
}

// SelectAvatar picks a candidate and moves to naming
func (w *Wizard) SelectAvatar(ctx context.Context, index int) (*models.WizardDraft, error) {
	return w.guarded(ctx, func(d *models.WizardDraft) error {
		if !d.HasStyle() {
			return ErrStyleRequired
		}
		if len(d.AvatarCandidates) == 0 {
			return ErrNoCandidates
		}
		if index < 0 || index >= len(d.AvatarCandidates) {
			return &models.ValidationError{
				Field:   "index",
				Message: fmt.Sprintf("must be between 0 and %d", len(d.AvatarCandidates)-1),
			}
		}
		d.SelectedAvatarIndex = &index
		d.AvatarURL = d.AvatarCandidates[index]
		d.Step = models.StepNameCharacter
		if err := w.save(ctx, d); err != nil {
			return err
		}
		w.publishStep(ctx, d)
		return nil
	})
}

// EnterNaming checks that the naming step may be shown. A draft without a
// style is sent back to the first step and ErrStyleRequired is returned.
func (w *Wizard) EnterNaming(ctx context.Context) (*models.WizardDraft, error) {
	d, err := w.load(ctx)
	if err != nil {
		return nil, err
	}
	if !d.HasStyle() {
		d = models.NewWizardDraft()
		if err := w.save(ctx, d); err != nil {
			return nil, err
		}
		w.publishStep(ctx, d)
		return d, ErrStyleRequired
	}
	return d, nil
}

// Submit validates every step and issues exactly one creation request
func (w *Wizard) Submit(ctx context.Context, name string) (*Result, error) {
	s := w.svc
	k := w.key.String()

	clean, err := models.ValidateCharacterName(name)
	if err != nil {
		return nil, err
	}

	// The draft is read under the busy flag. A submit that follows a
	// successful one finds the draft gone and stops at the style guard.
	if !s.acquire(k) {
		return nil, ErrBusy
	}
	defer s.release(k)

	d, err := w.load(ctx)
	if err != nil {
		return nil, err
	}
	if !d.HasStyle() {
		return nil, ErrStyleRequired
	}
	if !d.HasAvatar() {
		return nil, ErrAvatarRequired
	}

	d.Name = clean
	d.Step = models.StepSubmitting
	if err := w.save(ctx, d); err != nil {
		return nil, err
	}
	w.publishStep(ctx, d)

	req := models.CreateCharacterRequest{Name: d.Name, Style: d.Style, AvatarURL: d.AvatarURL}
	character, err := s.backend.CreateCharacter(ctx, req)
	if err != nil {
		if !s.cfg.DemoFallback {
			d.Step = models.StepFailed
			if saveErr := w.save(ctx, d); saveErr != nil {
				s.log.LogError(saveErr, "Failed to persist failed draft", "key", k)
			}
			w.publishStep(ctx, d)
			return nil, fmt.Errorf("create character: %w", err)
		}
		s.log.Warn("Character creation failed, continuing with demo character", "key", k, "error", err)
		character = w.demoCharacter(req)
		return w.finish(ctx, d, character, true)
	}

	s.log.Info("Character created", "key", k, "character_id", character.ID, "style", character.Style)
	return w.finish(ctx, d, character, false)
}

// Reset discards the draft and starts over
func (w *Wizard) Reset(ctx context.Context) (*models.WizardDraft, error) {
	k := w.key.String()
	if !w.svc.acquire(k) {
		return nil, ErrBusy
	}
	defer w.svc.release(k)

	if err := w.svc.drafts.Delete(ctx, k); err != nil {
		return nil, fmt.Errorf("reset draft: %w", err)
	}
	d := models.NewWizardDraft()
	w.publishStep(ctx, d)
	return d, nil
}

func (w *Wizard) finish(ctx context.Context, d *models.WizardDraft, c *models.Character, demo bool) (*Result, error) {
	if err := w.svc.drafts.Delete(ctx, w.key.String()); err != nil {
		w.svc.log.LogError(err, "Failed to clear draft", "key", w.key.String())
	}
	d.Step = models.StepSuccess
	w.publishStep(ctx, d)
	return &Result{Character: c, RedirectAfter: w.svc.cfg.RedirectAfter, Demo: demo}, nil
}

func (w *Wizard) demoCharacter(req models.CreateCharacterRequest) *models.Character {
	c := models.Character{
		ID:        "demo-" + shortuuid.New(),
		UserID:    w.key.UserID,
		Name:      req.Name,
		Style:     req.Style,
		AvatarURL: req.AvatarURL,
		CreatedAt: w.svc.now().UTC(),
	}.WithParams(models.DefaultParams())
	return &c
}

// generate runs one avatar generation into d and persists it. d is left
// untouched when generation fails and no fallback applies.
func (w *Wizard) generate(ctx context.Context, d *models.WizardDraft) error {
	s := w.svc
	req := models.GenerateAvatarRequest{Style: d.Style, Appearance: d.Appearance, Seed: s.seed()}

	images, err := s.backend.GenerateAvatar(ctx, req)
	if err == nil && len(images) == 0 {
		err = ErrNoCandidates
	}
	if err != nil {
		if !s.cfg.DemoFallback {
			return fmt.Errorf("generate avatars: %w", err)
		}
		s.log.Warn("Avatar generation failed, using placeholders", "style", d.Style, "error", err)
		images = PlaceholderAvatars(d.Style, s.cfg.CandidateCount)
	}

	d.AvatarCandidates = images
	d.ClearSelection()
	d.Step = models.StepSelectAvatar
	if err := w.save(ctx, d); err != nil {
		return err
	}

	w.publish(ctx, events.WizardAvatars, map[string]any{
		"tab_id":     w.key.TabID,
		"candidates": images,
	})
	return nil
}

// guarded runs fn on the current draft while holding the busy flag
func (w *Wizard) guarded(ctx context.Context, fn func(d *models.WizardDraft) error) (*models.WizardDraft, error) {
	k := w.key.String()
	if !w.svc.acquire(k) {
		return nil, ErrBusy
	}
	defer w.svc.release(k)

	d, err := w.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (w *Wizard) load(ctx context.Context) (*models.WizardDraft, error) {
	d, err := w.svc.drafts.Load(ctx, w.key.String())
	if errors.Is(err, store.ErrNotFound) {
		d = models.NewWizardDraft()
		if err := w.save(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return d, nil
}

func (w *Wizard) save(ctx context.Context, d *models.WizardDraft) error {
	d.UpdatedAt = w.svc.now().UTC()
	if err := w.svc.drafts.Save(ctx, w.key.String(), d); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (w *Wizard) publishStep(ctx context.Context, d *models.WizardDraft) {
	w.publish(ctx, events.WizardStep, map[string]any{
		"tab_id": w.key.TabID,
		"step":   d.Step,
	})
}

// publish keys wizard events by user and tab so only the owning tab hears them
func (w *Wizard) publish(ctx context.Context, typ events.Type, payload any) {
	if err := w.svc.events.Publish(ctx, events.New(typ, w.key.String(), payload)); err != nil {
		w.svc.log.Warn("Failed to publish event", "type", typ, "key", w.key.String(), "error", err)
	}
}
