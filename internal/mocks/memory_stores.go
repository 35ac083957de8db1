package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/store"
)

// memoryData is the state guarded by MemoryStores.mu. It is cloned to take
// transaction snapshots.
type memoryData struct {
	users         map[uuid.UUID]domain.User
	goals         map[uuid.UUID]domain.Goal
	plans         []domain.Plan
	tasks         map[uuid.UUID]domain.Task
	instances     map[uuid.UUID]domain.TaskInstance
	interactions  []domain.AIInteraction
	outputs       []domain.AIOutput
	notifications map[uuid.UUID]domain.Notification
}

func newMemoryData() memoryData {
	return memoryData{
		users:         make(map[uuid.UUID]domain.User),
		goals:         make(map[uuid.UUID]domain.Goal),
		tasks:         make(map[uuid.UUID]domain.Task),
		instances:     make(map[uuid.UUID]domain.TaskInstance),
		notifications: make(map[uuid.UUID]domain.Notification),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d memoryData) clone() memoryData {
	plans := make([]domain.Plan, len(d.plans))
	for i, p := range d.plans {
		p.Milestones = append([]domain.Milestone(nil), p.Milestones...)
		plans[i] = p
	}
	return memoryData{
		users:         cloneMap(d.users),
		goals:         cloneMap(d.goals),
		plans:         plans,
		tasks:         cloneMap(d.tasks),
		instances:     cloneMap(d.instances),
		interactions:  append([]domain.AIInteraction(nil), d.interactions...),
		outputs:       append([]domain.AIOutput(nil), d.outputs...),
		notifications: cloneMap(d.notifications),
	}
}

// MemoryStores implements every store contract and store.Transactor in
// memory. Transactions are serialized and roll back by restoring a
// snapshot.
type MemoryStores struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data memoryData

	failures map[string]error
}

var _ store.Transactor = (*MemoryStores)(nil)

// NewMemoryStores creates empty stores.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{data: newMemoryData(), failures: make(map[string]error)}
}

// Stores returns the store bundle backed by m.
func (m *MemoryStores) Stores() store.Stores {
	return store.Stores{
		Users:         memUsers{m},
		Goals:         memGoals{m},
		Plans:         memPlans{m},
		Tasks:         memTasks{m},
		Interactions:  memInteractions{m},
		Notifications: memNotifications{m},
	}
}

// WithinTx implements store.Transactor.
func (m *MemoryStores) WithinTx(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	if err := fn(ctx, m.Stores()); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// FailOn makes the named operation (for example "Plans.Create") return err
// until cleared with a nil err.
func (m *MemoryStores) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// fail returns the injected error for op. Callers hold m.mu.
func (m *MemoryStores) fail(op string) error {
	return m.failures[op]
}

// Seeding and inspection helpers.

// AddUser stores a user.
func (m *MemoryStores) AddUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.users[u.ID] = u
}

// AddGoal stores a goal.
func (m *MemoryStores) AddGoal(g domain.Goal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.goals[g.ID] = g
}

// AddPlan stores a plan as is.
func (m *MemoryStores) AddPlan(p domain.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.plans = append(m.data.plans, p)
}

// AddTaskInstance stores an instance and, when set, its task.
func (m *MemoryStores) AddTaskInstance(in domain.TaskInstance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.Task != nil {
		m.data.tasks[in.Task.ID] = *in.Task
		in.TaskID = in.Task.ID
		in.Task = nil
	}
	m.data.instances[in.ID] = in
}

// AddInteraction stores an interaction as is.
func (m *MemoryStores) AddInteraction(i domain.AIInteraction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.interactions = append(m.data.interactions, i)
}

// AddNotification stores a notification.
func (m *MemoryStores) AddNotification(n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.notifications[n.ID] = n
}

// User returns a copy of a stored user.
func (m *MemoryStores) User(id uuid.UUID) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.data.users[id]
	return u, ok
}

// Goal returns a copy of a stored goal.
func (m *MemoryStores) Goal(id uuid.UUID) (domain.Goal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.data.goals[id]
	return g, ok
}

// Plans returns the goal's plans in insertion order.
func (m *MemoryStores) Plans(goalID uuid.UUID) []domain.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Plan
	for _, p := range m.data.plans {
		if p.GoalID == goalID {
			out = append(out, p)
		}
	}
	return out
}

// Tasks returns every stored task template.
func (m *MemoryStores) Tasks() []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Task, 0, len(m.data.tasks))
	for _, t := range m.data.tasks {
		out = append(out, t)
	}
	return out
}

// Instances returns the goal's task instances ordered by date.
func (m *MemoryStores) Instances(goalID uuid.UUID) []domain.TaskInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instancesLocked(func(in domain.TaskInstance) bool { return in.GoalID == goalID })
}

// Instance returns one stored task instance.
func (m *MemoryStores) Instance(id uuid.UUID) (domain.TaskInstance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.data.instances[id]
	return in, ok
}

// Interactions returns every stored interaction in insertion order.
func (m *MemoryStores) Interactions() []domain.AIInteraction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AIInteraction(nil), m.data.interactions...)
}

// Outputs returns every stored AI output.
func (m *MemoryStores) Outputs() []domain.AIOutput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AIOutput(nil), m.data.outputs...)
}

// Notifications returns the user's notifications ordered by creation time.
func (m *MemoryStores) Notifications(userID uuid.UUID) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.data.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Channel < out[j].Channel
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// instancesLocked filters instances, joins their task and sorts them by
// date. Callers hold m.mu.
func (m *MemoryStores) instancesLocked(keep func(domain.TaskInstance) bool) []domain.TaskInstance {
	var out []domain.TaskInstance
	for _, in := range m.data.instances {
		if !keep(in) {
			continue
		}
		if t, ok := m.data.tasks[in.TaskID]; ok {
			task := t
			in.Task = &task
		}
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ScheduledDate.Before(out[j].ScheduledDate)
	})
	return out
}

func sameDay(a, b time.Time) bool {
	return domain.DaysBetween(a, b) == 0
}

type memUsers struct{ m *MemoryStores }

func (s memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := s.m.data.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

func (s memUsers) AddTokenUsage(_ context.Context, id uuid.UUID, tokens int, day time.Time) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Users.AddTokenUsage"); err != nil {
		return 0, err
	}
	if tokens < 0 {
		return 0, fmt.Errorf("%w: negative token usage %d", store.ErrInvalidEntity, tokens)
	}
	u, ok := s.m.data.users[id]
	if !ok {
		return 0, store.ErrUserNotFound
	}
	day = domain.StartOfDay(day, time.UTC)
	if u.TokenResetDate.Before(day) {
		u.AITokensUsedToday = 0
		u.TokenResetDate = day
	}
	u.AITokensUsedToday = max(u.AITokensUsedToday, min(u.AITokenBudget, u.AITokensUsedToday+tokens))
	s.m.data.users[id] = u
	return u.AITokensUsedToday, nil
}

func (s memUsers) ResetDailyTokens(_ context.Context, day time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Users.ResetDailyTokens"); err != nil {
		return 0, err
	}
	var n int64
	for id, u := range s.m.data.users {
		if u.TokenResetDate.Before(day) {
			u.AITokensUsedToday = 0
			u.TokenResetDate = day
			s.m.data.users[id] = u
			n++
		}
	}
	return n, nil
}

func (s memUsers) ResetStreak(_ context.Context, id uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Users.ResetStreak"); err != nil {
		return err
	}
	u, ok := s.m.data.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.StreakDays = 0
	s.m.data.users[id] = u
	return nil
}

type memGoals struct{ m *MemoryStores }

func (s memGoals) GetByID(_ context.Context, id uuid.UUID) (*domain.Goal, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Goals.GetByID"); err != nil {
		return nil, err
	}
	g, ok := s.m.data.goals[id]
	if !ok {
		return nil, store.ErrGoalNotFound
	}
	return &g, nil
}

func (s memGoals) UpdateStatus(_ context.Context, id uuid.UUID, status domain.GoalStatus) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Goals.UpdateStatus"); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: goal status %q", domain.ErrInvalidStatus, status)
	}
	g, ok := s.m.data.goals[id]
	if !ok {
		return store.ErrGoalNotFound
	}
	g.Status = status
	if status == domain.GoalStatusActive && g.StartedAt == nil {
		now := time.Now().UTC()
		g.StartedAt = &now
	}
	s.m.data.goals[id] = g
	return nil
}

func (s memGoals) list(keep func(domain.Goal) bool) []domain.Goal {
	var out []domain.Goal
	for _, g := range s.m.data.goals {
		if g.Status == domain.GoalStatusActive && keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s memGoals) ListActive(_ context.Context) ([]domain.Goal, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Goals.ListActive"); err != nil {
		return nil, err
	}
	return s.list(func(domain.Goal) bool { return true }), nil
}

func (s memGoals) ListActiveWithActivitySince(_ context.Context, since time.Time) ([]domain.Goal, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Goals.ListActiveWithActivitySince"); err != nil {
		return nil, err
	}
	return s.list(func(g domain.Goal) bool {
		for _, in := range s.m.data.instances {
			if in.GoalID == g.ID && !in.ScheduledDate.Before(since) {
				return true
			}
		}
		return false
	}), nil
}

type memPlans struct{ m *MemoryStores }

func (s memPlans) LatestVersion(_ context.Context, goalID uuid.UUID) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Plans.LatestVersion"); err != nil {
		return 0, err
	}
	latest := 0
	for _, p := range s.m.data.plans {
		if p.GoalID == goalID && p.Version > latest {
			latest = p.Version
		}
	}
	return latest, nil
}

func (s memPlans) GetCurrent(_ context.Context, goalID uuid.UUID) (*domain.Plan, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Plans.GetCurrent"); err != nil {
		return nil, err
	}
	var current *domain.Plan
	for i := range s.m.data.plans {
		p := &s.m.data.plans[i]
		if p.GoalID == goalID && (current == nil || p.Version > current.Version) {
			current = p
		}
	}
	if current == nil {
		return nil, store.ErrPlanNotFound
	}
	out := *current
	out.Milestones = append([]domain.Milestone(nil), current.Milestones...)
	sort.SliceStable(out.Milestones, func(i, j int) bool {
		return out.Milestones[i].TargetWeek < out.Milestones[j].TargetWeek
	})
	return &out, nil
}

func (s memPlans) Create(_ context.Context, plan *domain.Plan) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Plans.Create"); err != nil {
		return err
	}
	for _, p := range s.m.data.plans {
		if p.GoalID == plan.GoalID && p.Version == plan.Version {
			return store.ErrPlanVersionExists
		}
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	for i := range plan.Milestones {
		if plan.Milestones[i].ID == uuid.Nil {
			plan.Milestones[i].ID = uuid.New()
		}
		plan.Milestones[i].PlanID = plan.ID
	}
	stored := *plan
	stored.Milestones = append([]domain.Milestone(nil), plan.Milestones...)
	s.m.data.plans = append(s.m.data.plans, stored)
	return nil
}

type memTasks struct{ m *MemoryStores }

func (s memTasks) CreateBatch(_ context.Context, tasks []domain.Task, instances []domain.TaskInstance) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Tasks.CreateBatch"); err != nil {
		return err
	}
	for _, t := range tasks {
		if _, ok := s.m.data.tasks[t.ID]; ok {
			return fmt.Errorf("%w: task %s", store.ErrDuplicate, t.ID)
		}
	}
	for _, t := range tasks {
		s.m.data.tasks[t.ID] = t
	}
	for _, in := range instances {
		in.Task = nil
		s.m.data.instances[in.ID] = in
	}
	return nil
}

func (s memTasks) GetInstance(_ context.Context, id uuid.UUID) (*domain.TaskInstance, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Tasks.GetInstance"); err != nil {
		return nil, err
	}
	found := s.m.instancesLocked(func(in domain.TaskInstance) bool { return in.ID == id })
	if len(found) == 0 {
		return nil, store.ErrTaskInstanceNotFound
	}
	return &found[0], nil
}

func (s memTasks) CountInstancesOn(_ context.Context, goalID uuid.UUID, day time.Time) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Tasks.CountInstancesOn"); err != nil {
		return 0, err
	}
	n := 0
	for _, in := range s.m.data.instances {
		if in.GoalID == goalID && sameDay(in.ScheduledDate, day) {
			n++
		}
	}
	return n, nil
}

func (s memTasks) ListInstancesBetween(_ context.Context, goalID uuid.UUID, from, to time.Time) ([]domain.TaskInstance, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Tasks.ListInstancesBetween"); err != nil {
		return nil, err
	}
	return s.m.instancesLocked(func(in domain.TaskInstance) bool {
		return in.GoalID == goalID && !in.ScheduledDate.Before(from) && !in.ScheduledDate.After(to)
	}), nil
}

func (s memTasks) RecentInstances(_ context.Context, goalID uuid.UUID, limit int) ([]domain.TaskInstance, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Tasks.RecentInstances"); err != nil {
		return nil, err
	}
	all := s.m.instancesLocked(func(in domain.TaskInstance) bool { return in.GoalID == goalID })
	out := make([]domain.TaskInstance, 0, len(all))
	for i := len(all) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s memTasks) SaveEvaluation(_ context.Context, id uuid.UUID, score int, feedback string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Tasks.SaveEvaluation"); err != nil {
		return err
	}
	in, ok := s.m.data.instances[id]
	if !ok {
		return store.ErrTaskInstanceNotFound
	}
	in.QualityScore = &score
	in.AIFeedback = feedback
	in.UpdatedAt = time.Now().UTC()
	s.m.data.instances[id] = in
	return nil
}

func (s memTasks) MarkMissed(_ context.Context, day time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Tasks.MarkMissed"); err != nil {
		return 0, err
	}
	var n int64
	for id, in := range s.m.data.instances {
		if in.Status == domain.TaskStatusPending && !in.ScheduledDate.After(day) {
			in.Status = domain.TaskStatusMissed
			s.m.data.instances[id] = in
			n++
		}
	}
	return n, nil
}

func (s memTasks) DailyCompletionByUser(_ context.Context, day time.Time) ([]store.DailyCompletion, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Tasks.DailyCompletionByUser"); err != nil {
		return nil, err
	}
	byUser := make(map[uuid.UUID]*store.DailyCompletion)
	var order []uuid.UUID
	for _, in := range s.m.data.instances {
		if !sameDay(in.ScheduledDate, day) {
			continue
		}
		c, ok := byUser[in.UserID]
		if !ok {
			c = &store.DailyCompletion{UserID: in.UserID}
			byUser[in.UserID] = c
			order = append(order, in.UserID)
		}
		c.Total++
		if in.Status == domain.TaskStatusCompleted {
			c.Completed++
		}
	}
	out := make([]store.DailyCompletion, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out, nil
}

type memInteractions struct{ m *MemoryStores }

func (s memInteractions) Create(_ context.Context, i *domain.AIInteraction) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Interactions.Create"); err != nil {
		return err
	}
	for _, existing := range s.m.data.interactions {
		if i.JobKey != "" && existing.JobKey == i.JobKey && existing.JobRun == i.JobRun && existing.Attempt == i.Attempt {
			return store.ErrInteractionExists
		}
	}
	s.m.data.interactions = append(s.m.data.interactions, *i)
	return nil
}

func (s memInteractions) ListByJobKey(_ context.Context, jobKey string) ([]domain.AIInteraction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Interactions.ListByJobKey"); err != nil {
		return nil, err
	}
	var out []domain.AIInteraction
	for _, i := range s.m.data.interactions {
		if i.JobKey == jobKey {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Attempt < out[b].Attempt })
	return out, nil
}

func (s memInteractions) Close(_ context.Context, i *domain.AIInteraction) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Interactions.Close"); err != nil {
		return err
	}
	if !i.Status.Closed() {
		return fmt.Errorf("%w: close requires a final status, got %s", domain.ErrInvalidStatus, i.Status)
	}
	for idx, existing := range s.m.data.interactions {
		if existing.ID != i.ID {
			continue
		}
		if existing.Status.Closed() {
			return fmt.Errorf("%w: %s", domain.ErrInteractionClosed, i.ID)
		}
		s.m.data.interactions[idx] = *i
		return nil
	}
	return store.ErrInteractionNotFound
}

func (s memInteractions) SaveOutput(_ context.Context, o *domain.AIOutput) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Interactions.SaveOutput"); err != nil {
		return err
	}
	s.m.data.outputs = append(s.m.data.outputs, *o)
	return nil
}

func (s memInteractions) DeleteClosedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Interactions.DeleteClosedBefore"); err != nil {
		return 0, err
	}
	referenced := make(map[uuid.UUID]bool)
	for _, p := range s.m.data.plans {
		if p.InteractionID != nil {
			referenced[*p.InteractionID] = true
		}
	}

	deleted := make(map[uuid.UUID]bool)
	kept := s.m.data.interactions[:0]
	for _, i := range s.m.data.interactions {
		if i.Status.Closed() && i.CreatedAt.Before(cutoff) && !referenced[i.ID] {
			deleted[i.ID] = true
			continue
		}
		kept = append(kept, i)
	}
	s.m.data.interactions = kept

	outputs := s.m.data.outputs[:0]
	for _, o := range s.m.data.outputs {
		if !deleted[o.InteractionID] {
			outputs = append(outputs, o)
		}
	}
	s.m.data.outputs = outputs
	return int64(len(deleted)), nil
}

type memNotifications struct{ m *MemoryStores }

func (s memNotifications) Create(_ context.Context, n *domain.Notification) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Notifications.Create"); err != nil {
		return err
	}
	if _, ok := s.m.data.notifications[n.ID]; ok {
		return fmt.Errorf("%w: notification %s", store.ErrDuplicate, n.ID)
	}
	s.m.data.notifications[n.ID] = *n
	return nil
}

func (s memNotifications) GetByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Notifications.GetByID"); err != nil {
		return nil, err
	}
	n, ok := s.m.data.notifications[id]
	if !ok {
		return nil, store.ErrNotificationNotFound
	}
	return &n, nil
}

func (s memNotifications) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Notifications.MarkSent"); err != nil {
		return err
	}
	n, ok := s.m.data.notifications[id]
	if !ok {
		return store.ErrNotificationNotFound
	}
	at = at.UTC()
	n.Status = domain.NotificationSent
	n.SentAt = &at
	n.ErrorMessage = ""
	s.m.data.notifications[id] = n
	return nil
}

func (s memNotifications) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Notifications.MarkFailed"); err != nil {
		return err
	}
	n, ok := s.m.data.notifications[id]
	if !ok {
		return store.ErrNotificationNotFound
	}
	n.Status = domain.NotificationFailed
	n.ErrorMessage = reason
	s.m.data.notifications[id] = n
	return nil
}

func (s memNotifications) DeleteDeliveredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Notifications.DeleteDeliveredBefore"); err != nil {
		return 0, err
	}
	var n int64
	for id, notif := range s.m.data.notifications {
		delivered := notif.Status == domain.NotificationSent || notif.Status == domain.NotificationRead
		if delivered && notif.CreatedAt.Before(cutoff) {
			delete(s.m.data.notifications, id)
			n++
		}
	}
	return n, nil
}
