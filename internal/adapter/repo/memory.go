package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"contentfactory/internal/domain"
)

// MemoryLedger is an in-process ledger that applies the same rules as the
// PostgreSQL statements. It backs service tests and local demos.
type MemoryLedger struct {
	mu          sync.Mutex
	now         func() time.Time
	unavailable bool

	nextID   int64
	sessions map[int64]domain.Session
	steps    map[stepKey]domain.Step
	costs    []domain.CostEntry
	media    []domain.MediaFile
	errs     []domain.WorkflowError
}

type stepKey struct {
	sessionID int64
	name      string
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[int64]domain.Session),
		steps:    make(map[stepKey]domain.Step),
	}
}

// Ledger exposes the memory store through the domain interfaces.
func (m *MemoryLedger) Ledger() domain.Ledger {
	return domain.Ledger{
		Sessions: memorySessions{m},
		Steps:    memorySteps{m},
		Costs:    memoryCosts{m},
		Media:    memoryMedia{m},
		Errors:   memoryErrors{m},
	}
}

// SetUnavailable makes every call fail with domain.ErrStorageUnavailable.
func (m *MemoryLedger) SetUnavailable(down bool) {
	m.mu.Lock()
	m.unavailable = down
	m.mu.Unlock()
}

// Ping satisfies infra.Pinger.
func (m *MemoryLedger) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check()
}

// PutSession stores s verbatim, assigning an id when s.ID is zero.
func (m *MemoryLedger) PutSession(s domain.Session) domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		m.nextID++
		s.ID = m.nextID
	} else if s.ID > m.nextID {
		m.nextID = s.ID
	}
	m.sessions[s.ID] = s
	return s
}

func (m *MemoryLedger) check() error {
	if m.unavailable {
		return fmt.Errorf("memory ledger: %w", domain.ErrStorageUnavailable)
	}
	return nil
}

func (m *MemoryLedger) allocID() int64 {
	m.nextID++
	return m.nextID
}

type memorySessions struct{ m *MemoryLedger }

func (s memorySessions) Create(_ context.Context, attrs domain.NewSession) (*domain.Session, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	now := m.now()
	session := domain.Session{
		ID:                 m.allocID(),
		Source:             attrs.Source,
		Status:             domain.SessionStatusCreated,
		IdeaID:             attrs.IdeaID,
		VoiceScriptID:      attrs.VoiceScriptID,
		VideoPromptID:      attrs.VideoPromptID,
		ProductName:        attrs.ProductName,
		ProductArticles:    attrs.ProductArticles,
		ProductDescription: attrs.ProductDescription,
		Marketplace:        attrs.Marketplace,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.sessions[session.ID] = session
	return &session, nil
}

func (s memorySessions) Get(_ context.Context, id int64) (*domain.Session, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get session %d: %w", id, domain.ErrNotFound)
	}
	return &session, nil
}

func (s memorySessions) List(_ context.Context, filter domain.SessionFilter) ([]domain.Session, int, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, 0, err
	}
	f := filter.Normalize()
	matched := make([]domain.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		if f.Status != "" && string(session.Status) != f.Status {
			continue
		}
		if f.Marketplace != "" && session.Marketplace != f.Marketplace {
			continue
		}
		if f.Source != "" && session.Source != f.Source {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(session.ProductName), strings.ToLower(f.Search)) {
			continue
		}
		matched = append(matched, session)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if f.Order == "DESC" {
			return sessionLess(matched[j], matched[i], f.Sort)
		}
		return sessionLess(matched[i], matched[j], f.Sort)
	})
	total := len(matched)
	if f.Offset >= total {
		return []domain.Session{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func sessionLess(a, b domain.Session, column string) bool {
	switch column {
	case "id":
		return a.ID < b.ID
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt)
	case "product_name":
		return a.ProductName < b.ProductName
	case "status":
		return a.Status < b.Status
	default:
		if a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.ID < b.ID
		}
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
}

func (s memorySessions) Transition(_ context.Context, id int64, status domain.SessionStatus, extra domain.TransitionExtra) (*domain.Session, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	current, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("transition session %d: %w", id, domain.ErrNotFound)
	}
	if err := domain.CheckTransition(current.Status, status); err != nil {
		return nil, err
	}
	updated := domain.ApplyTransition(current, status, extra, m.now())
	m.sessions[id] = updated
	return &updated, nil
}

func (s memorySessions) ApplyUpdate(_ context.Context, update domain.SessionUpdate) (*domain.Session, bool, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, false, err
	}
	current, ok := m.sessions[update.SessionID]
	if !ok {
		return nil, false, fmt.Errorf("apply session update %d: %w", update.SessionID, domain.ErrNotFound)
	}
	updated, applied := domain.ApplySessionUpdate(current, update, m.now())
	if applied {
		m.sessions[update.SessionID] = updated
	}
	return &updated, applied, nil
}

type memorySteps struct{ m *MemoryLedger }

func (s memorySteps) Upsert(_ context.Context, update domain.StepUpdate, effects domain.StepEffects) (*domain.Step, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	session, ok := m.sessions[update.SessionID]
	if !ok {
		return nil, fmt.Errorf("upsert step: session does not exist: %w", domain.ErrNotFound)
	}
	now := m.now()
	key := stepKey{sessionID: update.SessionID, name: update.StepName}
	var existing *domain.Step
	if prev, ok := m.steps[key]; ok {
		existing = &prev
	}
	step := domain.ApplyStepUpdate(existing, update, now)
	if existing == nil {
		step.ID = m.allocID()
	}
	m.steps[key] = step
	if effects.MirrorCurrentStep && !session.Status.Terminal() {
		name := update.StepName
		session.CurrentStep = &name
		session.UpdatedAt = now
		m.sessions[session.ID] = session
	}
	return &step, nil
}

func (s memorySteps) ListBySession(_ context.Context, sessionID int64) ([]domain.Step, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	steps := []domain.Step{}
	for key, step := range m.steps {
		if key.sessionID == sessionID {
			steps = append(steps, step)
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].StepOrder == steps[j].StepOrder {
			return steps[i].ID < steps[j].ID
		}
		return steps[i].StepOrder < steps[j].StepOrder
	})
	return steps, nil
}

type memoryCosts struct{ m *MemoryLedger }

func (s memoryCosts) Append(_ context.Context, entry domain.CostEntry) (*domain.CostEntry, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	if entry.SessionID != nil {
		if _, ok := m.sessions[*entry.SessionID]; !ok {
			return nil, fmt.Errorf("append cost: session does not exist: %w", domain.ErrNotFound)
		}
	}
	entry.ID = m.allocID()
	entry.CreatedAt = m.now()
	m.costs = append(m.costs, entry)
	return &entry, nil
}

func (s memoryCosts) ListBySession(_ context.Context, sessionID int64) ([]domain.CostEntry, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	out := []domain.CostEntry{}
	for _, entry := range m.costs {
		if entry.SessionID != nil && *entry.SessionID == sessionID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type memoryMedia struct{ m *MemoryLedger }

func (s memoryMedia) Register(_ context.Context, file domain.MediaFile) (*domain.MediaFile, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	if file.SessionID != nil {
		if _, ok := m.sessions[*file.SessionID]; !ok {
			return nil, fmt.Errorf("register media: session does not exist: %w", domain.ErrNotFound)
		}
	}
	file.ID = m.allocID()
	file.CreatedAt = m.now()
	m.media = append(m.media, file)
	return &file, nil
}

type memoryErrors struct{ m *MemoryLedger }

func (s memoryErrors) Append(_ context.Context, record domain.WorkflowError) (*domain.WorkflowError, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	record.ID = m.allocID()
	record.CreatedAt = m.now()
	m.errs = append(m.errs, record)
	return &record, nil
}

func (s memoryErrors) List(_ context.Context, filter domain.ErrorFilter) ([]domain.WorkflowError, int, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, 0, err
	}
	f := filter.Normalize()
	matched := []domain.WorkflowError{}
	for i := len(m.errs) - 1; i >= 0; i-- {
		rec := m.errs[i]
		if f.Workflow != "" && rec.WorkflowName != f.Workflow {
			continue
		}
		matched = append(matched, rec)
	}
	total := len(matched)
	if f.Offset >= total {
		return []domain.WorkflowError{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}
