package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"CreatorStudio-server/models"
)

// 同步状态标记（只影响 UI 展示，不影响本地写入）
const (
	SyncStatusSynced = "synced"
	SyncStatusSaving = "saving"
	SyncStatusError  = "error"
)

// Syncer 负责单个项目本地/远端副本的最终一致：
// 加载与定时对账用“updatedAt 大者胜”，本地编辑先落库再尽力推远端。
type Syncer struct {
	store  LocalStore
	remote RemoteStore
	now    func() int64 // 毫秒，测试注入

	mu sync.Mutex // 串行化“读取-应用-写回”与对账写回，防止旧副本覆盖新编辑

	statusMu sync.RWMutex
	status   map[string]string
}

func NewSyncer(store LocalStore, remote RemoteStore) *Syncer {
	return &Syncer{
		store:  store,
		remote: remote,
		now:    models.NowMilli,
		status: map[string]string{},
	}
}

// Status 返回项目的同步状态标记，默认 synced
func (s *Syncer) Status(id string) string {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	if st, ok := s.status[id]; ok {
		return st
	}
	return SyncStatusSynced
}

func (s *Syncer) setStatus(id, st string) {
	s.statusMu.Lock()
	s.status[id] = st
	s.statusMu.Unlock()
}

// LoadAndReconcile 两段式加载：先读本地并立即 emit（不等网络），
// 随后与远端对账，仅当远端 updatedAt 严格更大时写回本地并二次 emit。
// 本地与远端都不存在时返回 ErrNotFound；emit 至多被调用两次。
func (s *Syncer) LoadAndReconcile(ctx context.Context, id string, emit func(*models.Project)) error {
	local, err := s.store.GetProject(id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if local != nil {
		emit(local)
	}

	reconciled, changed, err := s.reconcile(ctx, id)
	if err != nil {
		return err
	}
	if reconciled == nil {
		// 本地有副本但远端拉取失败/为空：保持乐观渲染的本地数据
		if local == nil {
			return ErrNotFound
		}
		return nil
	}
	if local == nil || changed {
		emit(reconciled)
	}
	return nil
}

// reconcile 单次对账：取本地与远端，保留 updatedAt 更大的一方；
// 远端胜出时写回本地。网络失败只记状态，不向上抛。
// 比较与写回在 s.mu 内完成：拉取期间落地的新本地编辑不会被旧远端副本覆盖。
func (s *Syncer) reconcile(ctx context.Context, id string) (p *models.Project, changed bool, err error) {
	remote, rerr := s.remote.FetchProject(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	local, lerr := s.store.GetProject(id)
	if lerr != nil && !errors.Is(lerr, models.ErrNotFound) {
		return nil, false, lerr
	}

	if rerr != nil && !errors.Is(rerr, ErrNotFound) {
		log.Printf("[Sync] 拉取远端项目失败 %s: %v", id, rerr)
		s.setStatus(id, SyncStatusError)
		return local, false, nil
	}

	if local == nil && remote == nil {
		return nil, false, ErrNotFound
	}
	if remote != nil && (local == nil || remote.UpdatedAt > local.UpdatedAt) {
		if err := s.store.SaveProject(remote); err != nil {
			return nil, false, err
		}
		s.setStatus(id, SyncStatusSynced)
		return remote, local != nil, nil
	}
	s.setStatus(id, SyncStatusSynced)
	return local, false, nil
}

// PushLocalChange 对本地副本应用纯函数变更：读最新状态、应用、打戳、落库，
// 然后尽力推送远端。本地写入无条件生效；推送失败只把状态标成 error，
// 不回滚、不向调用方抛错。归档项目拒绝任何变更。
func (s *Syncer) PushLocalChange(ctx context.Context, id string, mutate func(*models.Project) error) (*models.Project, error) {
	s.mu.Lock()
	cur, err := s.store.GetProject(id)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if cur.Status == models.ProjectStatusArchived {
		s.mu.Unlock()
		return nil, ErrProjectArchived
	}

	next := cur.Clone()
	if err := mutate(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ts := s.now()
	if ts <= cur.UpdatedAt {
		ts = cur.UpdatedAt + 1 // updatedAt 必须严格递增
	}
	next.UpdatedAt = ts
	if err := s.store.SaveProject(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.setStatus(id, SyncStatusSaving)
	if err := s.remote.PushProject(ctx, next); err != nil {
		log.Printf("[Sync] 推送远端失败 %s: %v", id, err)
		s.setStatus(id, SyncStatusError)
	} else {
		s.setStatus(id, SyncStatusSynced)
	}
	return next, nil
}

// CreateLocal 新建项目：本地落库后尽力推远端（与 PushLocalChange 同一失败语义）
func (s *Syncer) CreateLocal(ctx context.Context, p *models.Project) error {
	s.mu.Lock()
	if err := s.store.SaveProject(p); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.setStatus(p.ID, SyncStatusSaving)
	if err := s.remote.PushProject(ctx, p); err != nil {
		log.Printf("[Sync] 推送远端失败 %s: %v", p.ID, err)
		s.setStatus(p.ID, SyncStatusError)
		return nil
	}
	s.setStatus(p.ID, SyncStatusSynced)
	return nil
}

// Delete 删除本地副本并尽力删除远端副本
func (s *Syncer) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(id); err != nil {
		return err
	}
	if err := s.remote.DeleteProject(ctx, id); err != nil {
		log.Printf("[Sync] 删除远端项目失败 %s: %v", id, err)
	}
	s.statusMu.Lock()
	delete(s.status, id)
	s.statusMu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// 后台同步调度
// ---------------------------------------------------------------------------

// Scheduler 单个项目的后台同步调度器。自持 lastActivityAt 与 busy 判断，
// 时钟可注入，Tick 可被测试直接驱动。
type Scheduler struct {
	syncer *Syncer
	id     string
	isBusy func() bool
	clock  func() time.Time

	initialDelay   time.Duration
	interval       time.Duration
	backoff        time.Duration
	activityWindow time.Duration

	mu             sync.Mutex
	lastActivityAt time.Time
	timer          *time.Timer
	stopped        bool
}

func NewScheduler(syncer *Syncer, id string, isBusy func() bool) *Scheduler {
	return &Scheduler{
		syncer:         syncer,
		id:             id,
		isBusy:         isBusy,
		clock:          time.Now,
		initialDelay:   5 * time.Minute,
		interval:       5 * time.Minute,
		backoff:        2 * time.Minute,
		activityWindow: 30 * time.Second,
	}
}

// MarkActivity 记录一次用户输入（任何编辑类请求都应调用）
func (s *Scheduler) MarkActivity() {
	s.mu.Lock()
	s.lastActivityAt = s.clock()
	s.mu.Unlock()
}

// Tick 执行一次调度检查并返回下次间隔：
// 忙碌或 30 秒内有输入则跳过本轮、短间隔（2 分钟）重试；
// 否则做一次对账并回到常规间隔（5 分钟）。
func (s *Scheduler) Tick(ctx context.Context) time.Duration {
	s.mu.Lock()
	last := s.lastActivityAt
	s.mu.Unlock()

	if s.isBusy != nil && s.isBusy() {
		return s.backoff
	}
	if !last.IsZero() && s.clock().Sub(last) < s.activityWindow {
		return s.backoff
	}

	if _, _, err := s.syncer.reconcile(ctx, s.id); err != nil && !errors.Is(err, ErrNotFound) {
		log.Printf("[Sync] 后台对账失败 %s: %v", s.id, err)
	}
	return s.interval
}

// Start 启动定时循环。首轮延迟 initialDelay（打开项目时已经对账过一次）。
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil || s.stopped {
		return
	}
	s.schedule(s.initialDelay)
}

func (s *Scheduler) schedule(d time.Duration) {
	s.timer = time.AfterFunc(d, func() {
		next := s.Tick(context.Background())
		s.mu.Lock()
		if !s.stopped {
			s.schedule(next)
		}
		s.mu.Unlock()
	})
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
