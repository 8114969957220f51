package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/flextime-hq/flextime-api/internal/dto"
	"github.com/flextime-hq/flextime-api/internal/models"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
)

const statsCacheKey = "stats:admin:overview"

type statsUserReader interface {
	CountAll(ctx context.Context) (int, error)
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type statsFlexDateReader interface {
	CountUpcoming(ctx context.Context, from time.Time) (int, error)
	NextFlexDate(ctx context.Context, from time.Time) (*models.FlexDate, error)
}

type statsSessionReader interface {
	CountOverCapacity(ctx context.Context, from time.Time) (int, error)
	CountEmpty(ctx context.Context, from time.Time) (int, error)
}

type statsRegistrationReader interface {
	CountStudentsWithoutSelection(ctx context.Context, date time.Time) (int, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// StatsService assembles the admin overview, cached in Redis because the
// counts fan out over several tables.
type StatsService struct {
	users         statsUserReader
	flexDates     statsFlexDateReader
	sessions      statsSessionReader
	registrations statsRegistrationReader
	cache         statsCache
	ttl           time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewStatsService builds the service. A nil cache disables caching.
func NewStatsService(
	users statsUserReader,
	flexDates statsFlexDateReader,
	sessions statsSessionReader,
	registrations statsRegistrationReader,
	cache statsCache,
	ttl time.Duration,
	logger *zap.Logger,
) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsService{
		users:         users,
		flexDates:     flexDates,
		sessions:      sessions,
		registrations: registrations,
		cache:         cache,
		ttl:           ttl,
		logger:        logger,
		now:           time.Now,
	}
}

// Overview returns the admin dashboard counters.
func (s *StatsService) Overview(ctx context.Context) (*dto.AdminStats, error) {
	if s.cache != nil {
		var cached dto.AdminStats
		err := s.cache.Get(ctx, statsCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("stats cache read failed", "error", err)
		}
	}

	today := dateOnly(s.now().UTC())
	stats := &dto.AdminStats{}

	total, err := s.users.CountAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	students, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	teachers, err := s.users.CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	stats.Users = dto.UserCounts{Total: total, Students: students, Teachers: teachers}

	upcoming, err := s.flexDates.CountUpcoming(ctx, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count flex dates")
	}
	stats.FlexDates = dto.FlexDateCounts{Upcoming: upcoming}

	overCapacity, err := s.sessions.CountOverCapacity(ctx, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}
	empty, err := s.sessions.CountEmpty(ctx, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}
	stats.Sessions = dto.SessionCounts{OverCapacity: overCapacity, Empty: empty}

	next, err := s.flexDates.NextFlexDate(ctx, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find next flex date")
	}
	if next != nil {
		missing, err := s.registrations.CountStudentsWithoutSelection(ctx, next.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unregistered students")
		}
		stats.Registrations = dto.RegistrationCounts{StudentsWithoutSelection: missing}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.ttl); err != nil {
			s.logger.Sugar().Warnw("stats cache write failed", "error", err)
		}
	}
	return stats, nil
}

// Invalidate drops the cached overview. Called after bulk admin changes.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "stats:admin:*"); err != nil {
		s.logger.Sugar().Warnw("stats cache invalidation failed", "error", err)
	}
}
