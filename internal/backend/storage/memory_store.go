package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/pkg/uuidutil"
)

type memoryData struct {
	owners    map[string]*models.Owner
	monitors  map[string]*models.Monitor
	pings     []*models.PingEvent
	downtimes []*models.Downtime
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		owners:    make(map[string]*models.Owner, len(d.owners)),
		monitors:  make(map[string]*models.Monitor, len(d.monitors)),
		pings:     make([]*models.PingEvent, 0, len(d.pings)),
		downtimes: make([]*models.Downtime, 0, len(d.downtimes)),
	}
	for id, o := range d.owners {
		c.owners[id] = copyOwner(o)
	}
	for id, m := range d.monitors {
		c.monitors[id] = copyMonitor(m)
	}
	for _, p := range d.pings {
		cp := *p
		c.pings = append(c.pings, &cp)
	}
	for _, dt := range d.downtimes {
		c.downtimes = append(c.downtimes, copyDowntime(dt))
	}
	return c
}

// MemoryDatabase хранилище в памяти. Транзакции выполняются последовательно
// под одной блокировкой, ошибка откатывает снимок данных.
type MemoryDatabase struct {
	mu   sync.Mutex
	data *memoryData
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		data: &memoryData{
			owners:   make(map[string]*models.Owner),
			monitors: make(map[string]*models.Monitor),
		},
	}
}

func (d *MemoryDatabase) Repos() Repositories {
	return d.repositories(false)
}

func (d *MemoryDatabase) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := d.data.clone()
	if err := fn(ctx, d.repositories(true)); err != nil {
		d.data = snapshot
		return err
	}

	if err := ctx.Err(); err != nil {
		d.data = snapshot
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (d *MemoryDatabase) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (d *MemoryDatabase) Close() {}

func (d *MemoryDatabase) repositories(inTx bool) Repositories {
	r := &memoryRepo{db: d, inTx: inTx}
	return Repositories{
		Monitors:  &memoryMonitorStore{r},
		Pings:     &memoryPingStore{r},
		Downtimes: &memoryDowntimeStore{r},
		Owners:    &memoryOwnerStore{r},
	}
}

type memoryRepo struct {
	db   *MemoryDatabase
	inTx bool
}

// do выполняет fn под блокировкой, если мы не внутри транзакции
func (r *memoryRepo) do(ctx context.Context, fn func(data *memoryData) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.inTx {
		r.db.mu.Lock()
		defer r.db.mu.Unlock()
	}
	return fn(r.db.data)
}

type memoryMonitorStore struct{ *memoryRepo }

func (s *memoryMonitorStore) Create(ctx context.Context, monitor *models.Monitor) error {
	return s.do(ctx, func(data *memoryData) error {
		if monitor.ID == "" {
			monitor.ID = uuidutil.New()
		}
		if monitor.CreatedAt.IsZero() {
			monitor.CreatedAt = time.Now().UTC()
		}
		monitor.UpdatedAt = monitor.CreatedAt

		if _, ok := data.owners[monitor.OwnerID]; !ok {
			return fmt.Errorf("failed to create monitor: owner %s does not exist", monitor.OwnerID)
		}
		for _, m := range data.monitors {
			if m.Key == monitor.Key {
				return fmt.Errorf("failed to create monitor: duplicate key")
			}
		}

		data.monitors[monitor.ID] = copyMonitor(monitor)
		return nil
	})
}

func (s *memoryMonitorStore) GetByID(ctx context.Context, id string) (*models.Monitor, error) {
	var out *models.Monitor
	err := s.do(ctx, func(data *memoryData) error {
		if m, ok := data.monitors[id]; ok {
			out = copyMonitor(m)
		}
		return nil
	})
	return out, err
}

func (s *memoryMonitorStore) GetByKey(ctx context.Context, key string) (*models.Monitor, error) {
	var out *models.Monitor
	err := s.do(ctx, func(data *memoryData) error {
		for _, m := range data.monitors {
			if m.Key == key {
				out = copyMonitor(m)
				return nil
			}
		}
		return nil
	})
	return out, err
}

// LockByKey транзакция уже держит общую блокировку
func (s *memoryMonitorStore) LockByKey(ctx context.Context, key string) (*models.Monitor, error) {
	return s.GetByKey(ctx, key)
}

func (s *memoryMonitorStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Monitor, error) {
	var out []*models.Monitor
	err := s.do(ctx, func(data *memoryData) error {
		for _, m := range data.monitors {
			if m.OwnerID == ownerID {
				out = append(out, copyMonitor(m))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (s *memoryMonitorStore) UpdateSettings(ctx context.Context, monitor *models.Monitor) error {
	return s.do(ctx, func(data *memoryData) error {
		m, ok := data.monitors[monitor.ID]
		if !ok {
			return fmt.Errorf("monitor %s: %w", monitor.ID, ErrNotFound)
		}
		monitor.UpdatedAt = time.Now().UTC()

		m.Name = monitor.Name
		m.Key = monitor.Key
		m.Secret = copyString(monitor.Secret)
		m.Interval = monitor.Interval
		m.GracePeriod = monitor.GracePeriod
		m.UseSmartGrace = monitor.UseSmartGrace
		m.UpdatedAt = monitor.UpdatedAt
		return nil
	})
}

func (s *memoryMonitorStore) UpdateState(ctx context.Context, id string, status models.MonitorStatus, lastPing *time.Time, gracePeriod int) error {
	return s.do(ctx, func(data *memoryData) error {
		m, ok := data.monitors[id]
		if !ok {
			return fmt.Errorf("monitor %s: %w", id, ErrNotFound)
		}
		m.Status = status
		m.LastPing = copyTime(lastPing)
		m.GracePeriod = gracePeriod
		m.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *memoryMonitorStore) ListUpWithOwnerEmail(ctx context.Context) ([]*models.SweepCandidate, error) {
	var out []*models.SweepCandidate
	err := s.do(ctx, func(data *memoryData) error {
		for _, m := range data.monitors {
			if m.Status != models.MonitorStatusUp {
				continue
			}
			owner, ok := data.owners[m.OwnerID]
			if !ok {
				continue
			}
			out = append(out, &models.SweepCandidate{
				ID:          m.ID,
				Name:        m.Name,
				OwnerID:     m.OwnerID,
				OwnerEmail:  owner.Email,
				LastPing:    copyTime(m.LastPing),
				Interval:    m.Interval,
				GracePeriod: m.GracePeriod,
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *memoryMonitorStore) MarkDown(ctx context.Context, transitions []models.StatusTransition) ([]string, error) {
	var marked []string
	err := s.do(ctx, func(data *memoryData) error {
		now := time.Now().UTC()
		for _, t := range transitions {
			m, ok := data.monitors[t.MonitorID]
			if !ok || m.Status != models.MonitorStatusUp || m.LastPing == nil {
				continue
			}
			if !m.LastPing.Equal(t.ExpectedLastPing) {
				continue
			}
			m.Status = models.MonitorStatusDown
			m.UpdatedAt = now
			marked = append(marked, m.ID)
		}
		return nil
	})
	return marked, err
}

func (s *memoryMonitorStore) Delete(ctx context.Context, id string) error {
	return s.do(ctx, func(data *memoryData) error {
		if _, ok := data.monitors[id]; !ok {
			return fmt.Errorf("monitor %s: %w", id, ErrNotFound)
		}
		delete(data.monitors, id)

		pings := data.pings[:0]
		for _, p := range data.pings {
			if p.MonitorID != id {
				pings = append(pings, p)
			}
		}
		data.pings = pings

		downtimes := data.downtimes[:0]
		for _, d := range data.downtimes {
			if d.MonitorID != id {
				downtimes = append(downtimes, d)
			}
		}
		data.downtimes = downtimes
		return nil
	})
}

type memoryPingStore struct{ *memoryRepo }

func (s *memoryPingStore) Create(ctx context.Context, ping *models.PingEvent) error {
	return s.do(ctx, func(data *memoryData) error {
		if _, ok := data.monitors[ping.MonitorID]; !ok {
			return fmt.Errorf("failed to create ping event: monitor %s does not exist", ping.MonitorID)
		}
		if ping.ID == "" {
			ping.ID = uuidutil.New()
		}
		if ping.CreatedAt.IsZero() {
			ping.CreatedAt = time.Now().UTC()
		}
		cp := *ping
		data.pings = append(data.pings, &cp)
		return nil
	})
}

func (s *memoryPingStore) ListRecent(ctx context.Context, monitorID string, limit int) ([]*models.PingEvent, error) {
	var out []*models.PingEvent
	err := s.do(ctx, func(data *memoryData) error {
		for _, p := range data.pings {
			if p.MonitorID == monitorID {
				cp := *p
				out = append(out, &cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// порядок вставки может не совпадать со временем пинга
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryDowntimeStore struct{ *memoryRepo }

func (s *memoryDowntimeStore) GetOpen(ctx context.Context, monitorID string) (*models.Downtime, error) {
	var out *models.Downtime
	err := s.do(ctx, func(data *memoryData) error {
		out = findOpenDowntime(data, monitorID)
		if out != nil {
			out = copyDowntime(out)
		}
		return nil
	})
	return out, err
}

func (s *memoryDowntimeStore) Open(ctx context.Context, monitorID string, startedAt time.Time) (*models.Downtime, bool, error) {
	var out *models.Downtime
	err := s.do(ctx, func(data *memoryData) error {
		if _, ok := data.monitors[monitorID]; !ok {
			return fmt.Errorf("failed to open downtime: monitor %s does not exist", monitorID)
		}
		if findOpenDowntime(data, monitorID) != nil {
			return nil
		}
		d := &models.Downtime{
			ID:        uuidutil.New(),
			MonitorID: monitorID,
			StartedAt: startedAt,
		}
		data.downtimes = append(data.downtimes, d)
		out = copyDowntime(d)
		return nil
	})
	return out, out != nil, err
}

func (s *memoryDowntimeStore) Close(ctx context.Context, id string, endedAt time.Time, durationMinutes int) error {
	return s.do(ctx, func(data *memoryData) error {
		for _, d := range data.downtimes {
			if d.ID == id && d.EndedAt == nil {
				ended := endedAt
				duration := durationMinutes
				d.EndedAt = &ended
				d.DurationMinutes = &duration
				return nil
			}
		}
		return fmt.Errorf("open downtime %s: %w", id, ErrNotFound)
	})
}

func (s *memoryDowntimeStore) ListRecent(ctx context.Context, monitorID string, limit int) ([]*models.Downtime, error) {
	var out []*models.Downtime
	err := s.do(ctx, func(data *memoryData) error {
		for _, d := range data.downtimes {
			if d.MonitorID == monitorID {
				out = append(out, copyDowntime(d))
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (s *memoryDowntimeStore) ListOverlapping(ctx context.Context, monitorID string, from, to time.Time) ([]*models.Downtime, error) {
	var out []*models.Downtime
	err := s.do(ctx, func(data *memoryData) error {
		for _, d := range data.downtimes {
			if d.MonitorID != monitorID || !d.StartedAt.Before(to) {
				continue
			}
			if d.EndedAt != nil && !d.EndedAt.After(from) {
				continue
			}
			out = append(out, copyDowntime(d))
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, err
}

type memoryOwnerStore struct{ *memoryRepo }

func (s *memoryOwnerStore) Create(ctx context.Context, owner *models.Owner) error {
	return s.do(ctx, func(data *memoryData) error {
		for _, o := range data.owners {
			if o.Email == owner.Email {
				return fmt.Errorf("failed to create owner: duplicate email %s", owner.Email)
			}
		}
		if owner.ID == "" {
			owner.ID = uuidutil.New()
		}
		now := time.Now().UTC()
		owner.CreatedAt = now
		owner.UpdatedAt = now
		data.owners[owner.ID] = copyOwner(owner)
		return nil
	})
}

func (s *memoryOwnerStore) GetByID(ctx context.Context, id string) (*models.Owner, error) {
	return s.find(ctx, func(o *models.Owner) bool { return o.ID == id })
}

func (s *memoryOwnerStore) GetByEmail(ctx context.Context, email string) (*models.Owner, error) {
	return s.find(ctx, func(o *models.Owner) bool { return o.Email == email })
}

func (s *memoryOwnerStore) GetByAPIKeyPrefix(ctx context.Context, prefix string) (*models.Owner, error) {
	if prefix == "" {
		return nil, nil
	}
	return s.find(ctx, func(o *models.Owner) bool { return o.APIKeyPrefix == prefix })
}

func (s *memoryOwnerStore) find(ctx context.Context, match func(o *models.Owner) bool) (*models.Owner, error) {
	var out *models.Owner
	err := s.do(ctx, func(data *memoryData) error {
		for _, o := range data.owners {
			if match(o) {
				out = copyOwner(o)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s *memoryOwnerStore) UpdateAPIKey(ctx context.Context, id, prefix, hash string) error {
	return s.do(ctx, func(data *memoryData) error {
		o, ok := data.owners[id]
		if !ok {
			return fmt.Errorf("owner %s: %w", id, ErrNotFound)
		}
		o.APIKeyPrefix = prefix
		o.APIKeyHash = hash
		o.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *memoryOwnerStore) Delete(ctx context.Context, id string) error {
	return s.do(ctx, func(data *memoryData) error {
		if _, ok := data.owners[id]; !ok {
			return fmt.Errorf("owner %s: %w", id, ErrNotFound)
		}
		delete(data.owners, id)

		owned := make(map[string]bool)
		for monitorID, m := range data.monitors {
			if m.OwnerID == id {
				owned[monitorID] = true
				delete(data.monitors, monitorID)
			}
		}

		pings := data.pings[:0]
		for _, p := range data.pings {
			if !owned[p.MonitorID] {
				pings = append(pings, p)
			}
		}
		data.pings = pings

		downtimes := data.downtimes[:0]
		for _, d := range data.downtimes {
			if !owned[d.MonitorID] {
				downtimes = append(downtimes, d)
			}
		}
		data.downtimes = downtimes
		return nil
	})
}

func findOpenDowntime(data *memoryData, monitorID string) *models.Downtime {
	for _, d := range data.downtimes {
		if d.MonitorID == monitorID && d.EndedAt == nil {
			return d
		}
	}
	return nil
}

func copyMonitor(m *models.Monitor) *models.Monitor {
	cp := *m
	cp.Secret = copyString(m.Secret)
	cp.LastPing = copyTime(m.LastPing)
	return &cp
}

func copyDowntime(d *models.Downtime) *models.Downtime {
	cp := *d
	cp.EndedAt = copyTime(d.EndedAt)
	if d.DurationMinutes != nil {
		v := *d.DurationMinutes
		cp.DurationMinutes = &v
	}
	return &cp
}

func copyOwner(o *models.Owner) *models.Owner {
	cp := *o
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
