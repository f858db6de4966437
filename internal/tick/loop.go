// Package tick реализует однопоточный игровой цикл: периодические и
// отложенные задачи выполняются по одной на тик в порядке регистрации,
// внешние вызовы переносятся на горутину цикла через Exec.
package tick

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/annel0/block-gravity/internal/logging"
)

// DefaultInterval — 20 тиков в секунду.
const DefaultInterval = 50 * time.Millisecond

// ErrStopped возвращается Call, если цикл остановлен.
var ErrStopped = errors.New("tick loop stopped")

// job — вызов, переданный в горутину цикла. done закрывается после
// выполнения или при остановке цикла; ran различает эти случаи.
type job struct {
	fn   func()
	done chan struct{}
	ran  bool
}

func (j *job) run() {
	j.fn()
	j.ran = true
	close(j.done)
}

type task struct {
	id        uint64
	fn        func()
	runAt     uint64
	recurring bool
}

// Loop — планировщик тиков. Step выполняет один тик синхронно, Run крутит
// тики по таймеру и выполняет функции, переданные через Exec.
type Loop struct {
	mu       sync.Mutex
	interval time.Duration
	current  uint64
	nextID   uint64
	tasks    map[uint64]*task

	execCh  chan *job
	execMu  sync.RWMutex // держат отправители; Stop берёт на запись
	stopped bool
	closing chan struct{}
	done    chan struct{}
	once    sync.Once

	log *logging.Logger
}

// NewLoop создаёт цикл с указанным интервалом тика.
func NewLoop(interval time.Duration, log *logging.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		interval: interval,
		nextID:   1,
		tasks:    make(map[uint64]*task),
		execCh:   make(chan *job, 256),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Current возвращает номер последнего выполненного тика.
func (l *Loop) Current() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// ScheduleRecurring регистрирует задачу, выполняемую каждый тик начиная со
// следующего. Возвращает дескриптор для Cancel.
func (l *Loop) ScheduleRecurring(fn func()) uint64 {
	return l.schedule(fn, 1, true)
}

// ScheduleDelayed регистрирует однократную задачу через delay тиков.
// delay <= 0 означает «в следующем тике».
func (l *Loop) ScheduleDelayed(delay int, fn func()) uint64 {
	if delay < 1 {
		delay = 1
	}
	return l.schedule(fn, uint64(delay), false)
}

func (l *Loop) schedule(fn func(), delay uint64, recurring bool) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.tasks[id] = &task{id: id, fn: fn, runAt: l.current + delay, recurring: recurring}
	return id
}

// Cancel снимает задачу. Отмена несуществующей задачи — no-op.
func (l *Loop) Cancel(id uint64) {
	l.mu.Lock()
	delete(l.tasks, id)
	l.mu.Unlock()
}

// Pending возвращает число зарегистрированных задач.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Step выполняет один тик: все задачи, срок которых наступил, в порядке
// регистрации. Задачи, добавленные во время тика, выполнятся не раньше
// следующего. Задача, отменённая во время тика, больше не вызывается.
func (l *Loop) Step() {
	l.mu.Lock()
	l.current++
	now := l.current
	due := make([]*task, 0, len(l.tasks))
	for _, t := range l.tasks {
		if t.runAt <= now {
			due = append(due, t)
		}
	}
	l.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })

	for _, t := range due {
		l.mu.Lock()
		_, alive := l.tasks[t.id]
		if alive {
			if t.recurring {
				t.runAt = now + 1
			} else {
				delete(l.tasks, t.id)
			}
		}
		l.mu.Unlock()
		if alive {
			t.fn()
		}
	}
}

// Exec ставит fn в очередь на выполнение в горутине цикла. Возвращаемый
// канал закрывается после выполнения либо при остановке цикла, и тогда fn
// не вызывается.
func (l *Loop) Exec(fn func()) <-chan struct{} {
	return l.submit(fn).done
}

func (l *Loop) submit(fn func()) *job {
	j := &job{fn: fn, done: make(chan struct{})}

	l.execMu.RLock()
	defer l.execMu.RUnlock()
	if l.stopped {
		close(j.done)
		return j
	}
	select {
	case l.execCh <- j:
	case <-l.closing:
		close(j.done)
	}
	return j
}

// Call выполняет fn в горутине цикла и ждёт завершения. Если цикл
// остановился раньше, чем fn выполнилась, возвращает ErrStopped.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	select {
	case <-l.closing:
		return ErrStopped
	default:
	}
	j := l.submit(fn)
	select {
	case <-j.done:
		if !j.ran {
			return ErrStopped
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run крутит цикл до отмены контекста или Stop.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	tc := time.NewTicker(l.interval)
	defer tc.Stop()

	for {
		select {
		case <-tc.C:
			start := time.Now()
			l.Step()
			if elapsed := time.Since(start); elapsed > l.interval {
				l.log.Warn("Тик %d занял %s (интервал %s)", l.Current(), elapsed, l.interval)
			}
		case j := <-l.execCh:
			j.run()
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.closing:
			return
		}
	}
}

// Stop останавливает цикл и отменяет вызовы, которые ещё ждут в очереди.
// Повторный вызов безопасен.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.closing)

		l.execMu.Lock()
		l.stopped = true
		l.execMu.Unlock()

		for {
			select {
			case j := <-l.execCh:
				close(j.done)
			default:
				return
			}
		}
	})
}

// Done закрывается после выхода из Run.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
