package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"linguameet/internal/repository"
)

// Archiver 定期將過舊的對話紀錄標記為封存
type Archiver struct {
	conversationRepo repository.ConversationRepository
	after            time.Duration
	cron             *cron.Cron
	now              func() time.Time
}

func NewArchiver(conversationRepo repository.ConversationRepository, after time.Duration, schedule string) (*Archiver, error) {
	a := &Archiver{
		conversationRepo: conversationRepo,
		after:            after,
		now:              time.Now,
	}
	a.cron = cron.New(cron.WithLogger(cronLogger{logger: log.Logger}))
	if _, err := a.cron.AddFunc(schedule, func() {
		if _, err := a.RunOnce(context.Background()); err != nil {
			log.Error().Err(err).Msg("archiving conversations failed")
		}
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// RunOnce 封存早於 after 的紀錄並回傳數量
func (a *Archiver) RunOnce(ctx context.Context) (int64, error) {
	if a.after <= 0 {
		return 0, nil
	}
	n, err := a.conversationRepo.ArchiveBefore(ctx, a.now().Add(-a.after))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("archived conversations")
	}
	return n, nil
}

func (a *Archiver) Start() { a.cron.Start() }

// Stop 停止排程並等待執行中的工作結束
func (a *Archiver) Stop() {
	<-a.cron.Stop().Done()
}

// cronLogger 將 cron 的日誌寫到 zerolog
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
