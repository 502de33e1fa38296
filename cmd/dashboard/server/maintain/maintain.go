package maintain

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sincaw/chred/cmd/dashboard/server/common"
	"github.com/sincaw/chred/cmd/dashboard/server/utils"
)

var (
	logger = utils.Logger()
)

const (
	idleCheckSpec = "@every 30s"
)

// Compactor is the db to compact
type Compactor interface {
	Compact() error
}

// IdleResetter resets a scan session that has been idle too long
type IdleResetter interface {
	ResetIdle(idle time.Duration) bool
}

type Maintainer struct {
	ctx context.Context

	db       Compactor
	sessions IdleResetter
	idle     time.Duration

	cron     *cron.Cron
	notifyCh chan struct{}
}

// New Maintainer instance running compaction and idle session reset by config
func New(ctx context.Context, db Compactor, sessions IdleResetter, config *common.Config) (*Maintainer, error) {
	idle, err := config.Session.IdleDuration()
	if err != nil {
		return nil, err
	}

	m := &Maintainer{
		ctx:      ctx,
		db:       db,
		sessions: sessions,
		idle:     idle,
		cron:     cron.New(),
		notifyCh: make(chan struct{}, 1),
	}

	if config.Maintain.Cron != "" {
		_, err = m.cron.AddFunc(config.Maintain.Cron, m.notify)
		if err != nil {
			return nil, err
		}
	}
	if idle > 0 {
		_, err = m.cron.AddFunc(idleCheckSpec, m.checkIdle)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// notify asks for a compaction, it never blocks the cron goroutine
func (m *Maintainer) notify() {
	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
}

func (m *Maintainer) checkIdle() {
	if m.sessions.ResetIdle(m.idle) {
		logger.Infof("idle session reset after %v", m.idle)
	}
}

func (m *Maintainer) compact() {
	start := time.Now()
	if err := m.db.Compact(); err != nil {
		logger.Error("compact fail ", err)
		return
	}
	logger.Infof("compact done in %v", time.Since(start))
}

// Start runs jobs until ctx is done
func (m *Maintainer) Start() {
	m.cron.Start()
	defer m.cron.Stop()

	for {
		select {
		case <-m.notifyCh:
			m.compact()
		case <-m.ctx.Done():
			return
		}
	}
}
