package cron

import (
	"sync"
	"time"
)

// SchedulingOptions 任务调度参数。Iterations 为 0 表示无限重复；
// 为 1 即一次性任务：触发后任务被消费并丢弃。
type SchedulingOptions struct {
	Delay      time.Duration
	Interval   time.Duration
	Iterations uint64
}

// Task 一条已入队的延迟任务，Payload 由入队方与消费方约定类型
type Task struct {
	ID      uint64
	Payload interface{}

	opts   SchedulingOptions
	nextAt time.Time
	left   uint64
}

// Scheduler 进程内延迟任务调度器：外部心跳轮询 ReadyTasks 取出到期任务。
// 本身不起协程、不执行任务，只负责到期判定与周期重排。
type Scheduler struct {
	mu     sync.Mutex
	nextID uint64
	tasks  []*Task
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Enqueue 入队一条任务，返回任务 ID
func (s *Scheduler) Enqueue(payload interface{}, opts SchedulingOptions) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.tasks = append(s.tasks, &Task{
		ID:      s.nextID,
		Payload: payload,
		opts:    opts,
		nextAt:  time.Now().Add(opts.Delay),
		left:    opts.Iterations,
	})
	return s.nextID
}

// Cancel 取消任务；任务不存在时返回 false
func (s *Scheduler) Cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// ReadyTasks 取出所有到期任务。一次性任务触发即消费；
// 周期任务按 Interval 重排，剩余次数扣减到 0 后不再出现。
// 返回的是触发时刻的快照，后续重排不影响调用方手里的切片。
func (s *Scheduler) ReadyTasks(now time.Time) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []Task
	remaining := s.tasks[:0]
	for _, t := range s.tasks {
		if t.nextAt.After(now) {
			remaining = append(remaining, t)
			continue
		}
		ready = append(ready, *t)

		if t.opts.Iterations == 0 {
			// 无限重复
			t.nextAt = now.Add(t.opts.Interval)
			remaining = append(remaining, t)
			continue
		}
		if t.left > 1 {
			t.left--
			t.nextAt = now.Add(t.opts.Interval)
			remaining = append(remaining, t)
		}
	}
	s.tasks = remaining
	return ready
}

// Len 返回仍在排队的任务数
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
