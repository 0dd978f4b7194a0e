package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LJTian/ContentRadar/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// startupDelay 启动后延迟执行首轮采集，不跟进程初始化和首批请求抢资源
const startupDelay = 15 * time.Second

// Runner 由采集流水线实现
type Runner interface {
	RunOnce() pipeline.Report
}

// Scheduler 定时与手动两条触发路径共用一个单槽队列：
// 单工作协程顺序消费，任意时刻至多一轮采集在执行；
// 执行期间的新触发至多挂起一轮，更多的触发被合并丢弃。
type Scheduler struct {
	cron   *cron.Cron
	runner Runner

	pending chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup

	running atomic.Bool

	mu         sync.Mutex
	lastReport *pipeline.Report
}

// New 注册定时触发；spec 支持标准五段 cron 与 @every 语法，非法表达式直接报错
func New(spec string, runner Runner) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		pending: make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}

	if _, err := s.cron.AddFunc(spec, func() { s.Trigger() }); err != nil {
		return nil, err
	}
	return s, nil
}

// Start 启动工作协程与定时器，并安排一次延迟的首轮采集
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()

	s.cron.Start()
	time.AfterFunc(startupDelay, func() { s.Trigger() })
}

// Stop 停止调度：不再消费新触发，正在执行的一轮跑完才返回
func (s *Scheduler) Stop() {
	s.cron.Stop()
	close(s.quit)
	s.wg.Wait()
}

// Trigger 请求执行一轮采集。非阻塞，立即返回是否成功入队；
// 已有一轮挂起时本次触发被合并，返回 false
func (s *Scheduler) Trigger() bool {
	select {
	case s.pending <- struct{}{}:
		return true
	default:
		return false
	}
}

// Running 是否有采集正在执行
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// LastReport 最近一轮的汇总；尚未跑过任何一轮时为 nil
func (s *Scheduler) LastReport() *pipeline.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case <-s.pending:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	s.running.Store(true)
	defer s.running.Store(false)

	report := s.runner.RunOnce()

	s.mu.Lock()
	s.lastReport = &report
	s.mu.Unlock()
}
