package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPool 协程池
//
// 用于限制并发协程数量；目前主要承载订阅摘要标注等
// 可丢弃的后台任务，队列满时任务直接被拒绝。
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
	ctx        context.Context // Start 时注入，用于拒绝取消后的提交
	log        *zap.Logger
}

// NewWorkerPool 创建协程池
func NewWorkerPool(maxWorkers, queueSize int, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), queueSize),
		log:        log,
	}
}

// Start 启动协程池
func (p *WorkerPool) Start(ctx context.Context) {
	p.ctx = ctx
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit 提交任务
//
// 如果队列已满，会阻塞直到有空位
func (p *WorkerPool) Submit(task func()) {
	p.taskQueue <- task
}

// TrySubmit 尝试提交任务
//
// 如果队列已满或协程池已取消，立即返回 false
func (p *WorkerPool) TrySubmit(task func()) bool {
	if p.ctx != nil {
		select {
		case <-p.ctx.Done():
			return false
		default:
		}
	}
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Stop 停止协程池，等待在途任务完成
//
// 关闭队列后兜底执行残留任务，保证每个已入队任务的
// 完成回调都会被调用。
func (p *WorkerPool) Stop() {
	close(p.taskQueue)
	p.wg.Wait()
	for task := range p.taskQueue {
		p.run(task)
	}
}

// worker 工作协程
func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

// drain 上下文取消后清空队列
//
// 已入队任务仍会执行（任务内部自行感知取消），否则等待这些
// 任务完成的调用方会永远阻塞。
func (p *WorkerPool) drain() {
	for {
		select {
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task)
		default:
			return
		}
	}
}

// run 执行单个任务并捕获 panic
func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker task panicked", zap.Any("panic", r))
		}
	}()
	task()
}
