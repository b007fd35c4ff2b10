// Package session owns one character's companion screen: its parameters,
// the chat transcript, the NTG balance and the mission catalog.
//
// Chat is optimistic: the user's message is shown before the backend answers
// and a canned reply keeps the conversation going when it does not. Missions
// are conservative: the balance only changes once the backend confirms.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-companion-demo/companion/internal/events"
	"ai-companion-demo/companion/internal/models"
	"ai-companion-demo/companion/pkg/logger"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrBusy is returned while another message or mission is in flight
	ErrBusy = errors.New("another request is in progress")
	// ErrNotLoaded is returned when an operation needs Load to have run
	ErrNotLoaded = errors.New("session not loaded")
	// ErrNoCharacter means the user has not created a character yet
	ErrNoCharacter = errors.New("no character")
	// ErrMissionNotFound means the mission is not in the catalog
	ErrMissionNotFound = errors.New("mission not found")
	// ErrMissionInactive means the mission exists but is disabled
	ErrMissionInactive = errors.New("mission is not active")
	// ErrInsufficientBalance means the balance does not cover the mission cost
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrMissionRejected means the backend answered but refused the mission
	ErrMissionRejected = errors.New("mission rejected")
)

// Backend is the part of the backend API the session needs
type Backend interface {
	ListCharacters(ctx context.Context) ([]models.Character, error)
	GetChatHistory(ctx context.Context, characterID string, page, pageSize int) (*models.HistoryPage, error)
	SendMessage(ctx context.Context, characterID string, req models.SendMessageRequest) (*models.SendMessageResponse, error)
	ListMissions(ctx context.Context) ([]models.Mission, error)
	ExecuteMission(ctx context.Context, missionID string, req models.ExecuteMissionRequest) (*models.ExecuteMissionResponse, error)
	ListCompletedMissions(ctx context.Context) ([]models.CompletedMission, error)
	GetBalance(ctx context.Context) (int, error)
}

// Config tunes the controller
type Config struct {
	// FallbackDelay is how long a synthesized reply waits, mimicking a real one
	FallbackDelay time.Duration
	// HistoryPageSize is the number of messages fetched per history page
	HistoryPageSize int
	// DemoFallback shows the demo character when the session cannot be loaded
	DemoFallback bool
	// Replies is the canned reply pool. DefaultReplies when empty.
	Replies []string
	// Greeting opens the demo transcript. DefaultGreeting when empty.
	Greeting string
}

// Controller mediates every interaction with one user's companion
type Controller struct {
	key     string
	backend Backend
	events  events.Publisher
	log     *logger.Logger
	cfg     Config
	now     func() time.Time

	mu    sync.Mutex
	state State
}

// Option customises a Controller
type Option func(*Controller)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller for the user identified by key
func NewController(key string, backend Backend, pub events.Publisher, log *logger.Logger, cfg Config, opts ...Option) *Controller {
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 50
	}
	if len(cfg.Replies) == 0 {
		cfg.Replies = DefaultReplies
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if pub == nil {
		pub = events.Discard
	}
	c := &Controller{
		key:     key,
		backend: backend,
		events:  pub,
		log:     log.WithComponent("session").WithUserID(key),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Demo reports whether the session runs on the built-in demo character
func (c *Controller) Demo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Demo
}

// Load selects the user's first character and its latest history page, and
// fetches the mission catalog, completion records and balance concurrently.
// A failed character or history fetch falls back to the demo character when
// DemoFallback is set. Catalog and balance failures leave them empty.
func (c *Controller) Load(ctx context.Context) (State, error) {
	// A reload would drop the optimistic message of a send in flight
	c.mu.Lock()
	if c.state.Busy {
		c.mu.Unlock()
		return State{}, ErrBusy
	}
	c.state.Busy = true
	c.mu.Unlock()

	var (
		character models.Character
		history   historyWindow
		demo      bool
		missions  []models.Mission
		completed []models.CompletedMission
		balance   int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		character, history, err = c.loadCharacter(gctx)
		if err == nil || errors.Is(err, ErrNoCharacter) || !c.cfg.DemoFallback {
			return err
		}
		c.log.Warn("Session load failed, using demo character", "error", err)
		demo = true
		return nil
	})
	g.Go(func() error {
		var err error
		if missions, err = c.backend.ListMissions(gctx); err != nil {
			c.log.Warn("Failed to load missions", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if completed, err = c.backend.ListCompletedMissions(gctx); err != nil {
			c.log.Warn("Failed to load completed missions", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if balance, err = c.backend.GetBalance(gctx); err != nil {
			c.log.Warn("Failed to load balance", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		c.mu.Lock()
		c.state.Busy = false
		c.mu.Unlock()
		return State{}, err
	}

	now := c.now().UTC()
	next := State{
		Loaded:    true,
		Demo:      demo,
		Balance:   balance,
		Missions:  missions,
		Completed: completed,
		LoadedAt:  now,
	}
	if demo {
		next.Character = DemoCharacter(now)
		next.Messages = []models.ChatMessage{{
			ID:          "demo-greeting",
			CharacterID: DemoCharacterID,
			Role:        models.RoleAssistant,
			Content:     c.cfg.Greeting,
			Emotion:     models.EmotionHappy,
			CreatedAt:   now,
			Local:       true,
		}}
	} else {
		next.Character = character.WithParams(character.Params)
		next.Messages = history.Items
		next.HistoryPage = history.Page
		next.HasMoreHistory = history.Page > 1
	}

	c.mu.Lock()
	c.state = next
	snap := c.state.clone()
	c.mu.Unlock()

	c.log.Info("Session loaded",
		"character_id", snap.Character.ID,
		"demo", snap.Demo,
		"messages", len(snap.Messages),
		"missions", len(snap.Missions),
	)
	c.publish(ctx, events.SessionLoaded, snap)
	return snap, nil
}

// historyWindow is the contiguous run of history pages held in the transcript.
// Page is the oldest page it contains.
type historyWindow struct {
	Items []models.ChatMessage
	Page  int
}

func (c *Controller) loadCharacter(ctx context.Context) (models.Character, historyWindow, error) {
	chars, err := c.backend.ListCharacters(ctx)
	if err != nil {
		return models.Character{}, historyWindow{}, fmt.Errorf("list characters: %w", err)
	}
	if len(chars) == 0 {
		return models.Character{}, historyWindow{}, ErrNoCharacter
	}
	character := chars[0]

	window, err := c.latestHistory(ctx, character.ID)
	if err != nil {
		return models.Character{}, historyWindow{}, fmt.Errorf("chat history: %w", err)
	}
	return character, window, nil
}

// latestHistory returns the newest page of history. Page 1 is fetched first
// to learn the page count. A short last page is topped up with the page
// before it so the transcript opens with at least a page of messages.
func (c *Controller) latestHistory(ctx context.Context, characterID string) (historyWindow, error) {
	size := c.cfg.HistoryPageSize
	pages := make(map[int]*models.HistoryPage, 3)

	fetch := func(page int) (*models.HistoryPage, error) {
		if p, ok := pages[page]; ok {
			return p, nil
		}
		p, err := c.backend.GetChatHistory(ctx, characterID, page, size)
		if err != nil {
			return nil, err
		}
		if p == nil {
			p = &models.HistoryPage{Page: page}
		}
		pages[page] = p
		return p, nil
	}

	first, err := fetch(1)
	if err != nil {
		return historyWindow{}, err
	}
	last := first.LastPage()
	latest, err := fetch(last)
	if err != nil {
		return historyWindow{}, err
	}

	window := historyWindow{Items: append([]models.ChatMessage(nil), latest.Items...), Page: last}
	if last > 1 && len(latest.Items) < size {
		prev, err := fetch(last - 1)
		if err != nil {
			return historyWindow{}, err
		}
		window.Items = append(append([]models.ChatMessage(nil), prev.Items...), window.Items...)
		window.Page = last - 1
	}
	return window, nil
}

// LoadOlderHistory prepends the next older history page and returns how many
// messages were added. It is a no-op once page 1 is in the transcript.
func (c *Controller) LoadOlderHistory(ctx context.Context) (int, error) {
	c.mu.Lock()
	if !c.state.Loaded {
		c.mu.Unlock()
		return 0, ErrNotLoaded
	}
	if c.state.Demo || c.state.HistoryPage <= 1 {
		c.mu.Unlock()
		return 0, nil
	}
	characterID := c.state.Character.ID
	page := c.state.HistoryPage - 1
	c.mu.Unlock()

	history, err := c.backend.GetChatHistory(ctx, characterID, page, c.cfg.HistoryPageSize)
	if err != nil {
		return 0, fmt.Errorf("chat history: %w", err)
	}
	if history == nil {
		history = &models.HistoryPage{Page: page}
	}

	c.mu.Lock()
	// A reload in between makes this page stale
	if c.state.Character.ID != characterID || c.state.HistoryPage != page+1 {
		c.mu.Unlock()
		return 0, nil
	}
	c.state.Messages = append(append([]models.ChatMessage(nil), history.Items...), c.state.Messages...)
	c.state.HistoryPage = page
	c.state.HasMoreHistory = page > 1
	c.mu.Unlock()

	return len(history.Items), nil
}

// SendMessage appends the user's message right away, then the character's
// reply. When the backend fails the reply is synthesized after FallbackDelay
// and a small fixed delta is applied instead of the server's.
func (c *Controller) SendMessage(ctx context.Context, text string) (*Reply, error) {
	content, err := models.ValidateMessage(text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if !c.state.Loaded {
		c.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if c.state.Busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state.Busy = true
	c.state.AwaitingReply = true
	c.state.UserMessages++
	userMsg := models.ChatMessage{
		ID:          "local-" + shortuuid.New(),
		CharacterID: c.state.Character.ID,
		Role:        models.RoleUser,
		Content:     content,
		CreatedAt:   c.now().UTC(),
		Local:       true,
	}
	c.state.Messages = append(c.state.Messages, userMsg)
	characterID := c.state.Character.ID
	sessionID := c.state.SessionID
	count := c.state.UserMessages
	demo := c.state.Demo
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state.Busy = false
		c.state.AwaitingReply = false
		c.mu.Unlock()
	}()

	c.publish(ctx, events.MessageAppended, userMsg)
	c.publish(ctx, events.ReplyPending, map[string]any{"character_id": characterID})

	// The demo character does not exist on the backend
	var sendErr error = errDemoSession
	var resp *models.SendMessageResponse
	if !demo {
		resp, sendErr = c.backend.SendMessage(ctx, characterID, models.SendMessageRequest{
			Content:   content,
			SessionID: sessionID,
		})
	}
	if sendErr == nil {
		return c.applyReply(ctx, userMsg, resp), nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !demo {
		c.log.Warn("Chat request failed, synthesizing reply", "character_id", characterID, "error", sendErr)
	}

	timer := time.NewTimer(c.cfg.FallbackDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.applyFallback(ctx, userMsg, count), nil
}

var errDemoSession = errors.New("demo session")

func (c *Controller) applyReply(ctx context.Context, userMsg models.ChatMessage, resp *models.SendMessageResponse) *Reply {
	msg := resp.Message
	if msg.Role == "" {
		msg.Role = models.RoleAssistant
	}
	if msg.CharacterID == "" {
		msg.CharacterID = userMsg.CharacterID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = c.now().UTC()
	}

	reply := &Reply{UserMessage: userMsg, Delta: resp.Delta()}
	if r := resp.CharacterReaction; r != nil {
		reply.Emotion = r.Emotion
		reply.Animation = r.Animation
		if msg.Emotion == "" {
			msg.Emotion = r.Emotion
		}
	}
	reply.Message = msg

	c.mu.Lock()
	c.state.Messages = append(c.state.Messages, msg)
	c.state.Character = c.state.Character.WithParams(c.state.Character.Params.Apply(reply.Delta))
	if resp.SessionID != "" {
		c.state.SessionID = resp.SessionID
	}
	reply.Params = c.state.Character.Params
	c.mu.Unlock()

	c.publish(ctx, events.MessageAppended, msg)
	if !reply.Delta.IsZero() {
		c.publish(ctx, events.ParamsUpdated, reply.Params)
	}
	return reply
}

func (c *Controller) applyFallback(ctx context.Context, userMsg models.ChatMessage, count int) *Reply {
	delta := fallbackDelta(count)
	msg := models.ChatMessage{
		ID:          "local-" + shortuuid.New(),
		CharacterID: userMsg.CharacterID,
		Role:        models.RoleAssistant,
		Content:     c.cfg.Replies[(count-1)%len(c.cfg.Replies)],
		Emotion:     models.EmotionHappy,
		CreatedAt:   c.now().UTC(),
		Local:       true,
	}

	c.mu.Lock()
	c.state.Messages = append(c.state.Messages, msg)
	c.state.Character = c.state.Character.WithParams(c.state.Character.Params.Apply(delta))
	params := c.state.Character.Params
	c.mu.Unlock()

	c.publish(ctx, events.MessageAppended, msg)
	c.publish(ctx, events.ParamsUpdated, params)

	return &Reply{
		UserMessage: userMsg,
		Message:     msg,
		Params:      params,
		Delta:       delta,
		Emotion:     msg.Emotion,
		Fallback:    true,
	}
}

// ExecuteMission runs a mission for the current character. The balance is
// checked locally first and no request is sent when it does not cover the
// cost. The balance, params and completion record returned by the backend
// are applied together.
func (c *Controller) ExecuteMission(ctx context.Context, missionID string) (*MissionResult, error) {
	c.mu.Lock()
	if !c.state.Loaded {
		c.mu.Unlock()
		return nil, ErrNotLoaded
	}
	mission, ok := findMission(c.state.Missions, missionID)
	if !ok {
		c.mu.Unlock()
		return nil, ErrMissionNotFound
	}
	if !mission.IsActive {
		c.mu.Unlock()
		return nil, ErrMissionInactive
	}
	if !mission.Affordable(c.state.Balance) {
		balance := c.state.Balance
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: balance %d, cost %d", ErrInsufficientBalance, balance, mission.CostNTG)
	}
	if c.state.Busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state.Busy = true
	characterID := c.state.Character.ID
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state.Busy = false
		c.mu.Unlock()
	}()

	resp, err := c.backend.ExecuteMission(ctx, missionID, models.ExecuteMissionRequest{CharacterID: characterID})
	if err != nil {
		c.log.Warn("Mission execution failed", "mission_id", missionID, "error", err)
		return nil, fmt.Errorf("execute mission: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrMissionRejected, resp.Message)
	}

	var record *models.CompletedMission
	if resp.CompletedMission != nil {
		cm := *resp.CompletedMission
		if cm.MissionID == "" {
			cm.MissionID = missionID
		}
		if cm.Mission == nil {
			m := mission
			cm.Mission = &m
		}
		if cm.CompletedAt.IsZero() {
			cm.CompletedAt = c.now().UTC()
		}
		record = &cm
	}

	c.mu.Lock()
	c.state.Balance = resp.NewBalance
	if resp.CharacterParams != nil {
		c.state.Character = c.state.Character.WithParams(*resp.CharacterParams)
	}
	if record != nil {
		c.state.Completed = append(c.state.Completed, *record)
	}
	result := &MissionResult{
		Message:   resp.Message,
		Balance:   c.state.Balance,
		Params:    c.state.Character.Params,
		Completed: record,
	}
	c.mu.Unlock()

	c.log.Info("Mission completed", "mission_id", missionID, "character_id", characterID, "balance", result.Balance)
	c.publish(ctx, events.MissionCompleted, result)
	return result, nil
}

// Cooldowns derives the remaining cooldown of every catalog mission at now
func (c *Controller) Cooldowns(now time.Time) []models.MissionCooldown {
	c.mu.Lock()
	missions := append([]models.Mission(nil), c.state.Missions...)
	completed := append([]models.CompletedMission(nil), c.state.Completed...)
	c.mu.Unlock()

	last := make(map[string]models.CompletedMission, len(completed))
	for _, cm := range completed {
		if prev, ok := last[cm.MissionID]; !ok || cm.CompletedAt.After(prev.CompletedAt) {
			last[cm.MissionID] = cm
		}
	}

	out := make([]models.MissionCooldown, 0, len(missions))
	for _, m := range missions {
		cd := models.MissionCooldown{MissionID: m.ID, CanRepeat: true}
		if cm, ok := last[m.ID]; ok {
			at := cm.CompletedAt
			cd.LastCompletedAt = &at
			cd.RemainingSeconds = models.CooldownSecondsRemaining(now, cm.CompletedAt, m.CooldownSecs())
			cd.CanRepeat = models.CooldownRemaining(now, cm.CompletedAt, m.CooldownSecs()) == 0
		}
		out = append(out, cd)
	}
	return out
}

func findMission(missions []models.Mission, id string) (models.Mission, bool) {
	for _, m := range missions {
		if m.ID == id {
			return m, true
		}
	}
	return models.Mission{}, false
}

func (c *Controller) publish(ctx context.Context, typ events.Type, payload any) {
	if err := c.events.Publish(ctx, events.New(typ, c.key, payload)); err != nil {
		c.log.Warn("Failed to publish event", "type", typ, "error", err)
	}
}
