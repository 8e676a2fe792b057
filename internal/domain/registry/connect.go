package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] Outbound mailbox of one subscriber channel. The session actor
// writes into it; the transport's writer goroutine drains it.
type Connector interface {
	GetID() uuid.UUID
	Metadata() ConnectMetadata
	Send(env model.Envelope, timeout time.Duration) bool // Thread-safe send with a bounded wait
	Recv() <-chan model.Envelope
	Done() <-chan struct{}
	Dropped() uint64
	Close() // Idempotent
}

// [METADATA] Exported for transport logging.
type ConnectMetadata struct {
	RemoteIP  string
	UserAgent string
}

type connect struct {
	id        uuid.UUID
	metadata  ConnectMetadata
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc
	sendCh    chan model.Envelope
	closeOnce sync.Once // [PROTECTION]
	dropped   atomic.Uint64
}

func NewConnector(ctx context.Context, meta ConnectMetadata, bufferSize int) Connector {
	childCtx, cancel := context.WithCancel(ctx)

	return &connect{
		id:        uuid.New(),
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan model.Envelope, bufferSize),
	}
}

func (c *connect) GetID() uuid.UUID          { return c.id }
func (c *connect) Metadata() ConnectMetadata { return c.metadata }
func (c *connect) Dropped() uint64           { return c.dropped.Load() }

// Send enqueues env, waiting up to timeout for buffer space.
func (c *connect) Send(env model.Envelope, timeout time.Duration) bool {
	// [LIFECYCLE_GATE] Never enqueue into a dead transport.
	if c.ctx.Err() != nil {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- env:
		return true
	case <-timer.C:
		// [BACKPRESSURE_THRESHOLD] Persistent slow consumer.
		c.dropped.Add(1)
		return false
	}
}

// Recv is never closed; readers also watch Done.
func (c *connect) Recv() <-chan model.Envelope { return c.sendCh }

func (c *connect) Done() <-chan struct{} { return c.ctx.Done() }

func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
	})
}
