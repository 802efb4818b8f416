package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/magabrotheeeer/rhmaster-billing/internal/client"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/plans"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// Задержки переключателя цикла и перехода после смены тарифа.
const (
	AutoRotateInterval = 3 * time.Second
	RedirectDelay      = 2 * time.Second
)

// PlanAPI запросы оформления и смены тарифа.
type PlanAPI interface {
	CreateSubscription(ctx context.Context, req models.ChangePlanRequest) (*models.ChangePlanResult, error)
	UpdateSubscription(ctx context.Context, req models.ChangePlanRequest) (*models.ChangePlanResult, error)
}

// Selection результат выбора тарифа: либо нужна оплата по ClientSecret, либо тариф уже применен.
type Selection struct {
	Plan         models.PlanID
	Cycle        models.BillingCycle
	ClientSecret string
	Completed    bool
}

// NeedsPayment сообщает, что нужно открыть подтверждение оплаты.
func (s Selection) NeedsPayment() bool {
	return s.ClientSecret != ""
}

// PlanSelector выбор тарифа и цикла оплаты.
type PlanSelector struct {
	api        PlanAPI
	notify     Notifier
	log        *slog.Logger
	upgrade    bool
	onRedirect func()

	tick  func(d time.Duration) (<-chan time.Time, func())
	after func(d time.Duration) <-chan time.Time

	mu       sync.Mutex
	cycle    models.BillingCycle
	rotating bool
	stop     chan struct{}
	inFlight bool
}

// NewPlanSelector создает PlanSelector. В режиме upgrade выбор вызывает update-subscription,
// иначе create-subscription. onRedirect вызывается через RedirectDelay после смены тарифа без оплаты
// и должен один раз перечитать подписку (например, Reader.Load): сам PlanSelector ее не загружает.
func NewPlanSelector(api PlanAPI, notify Notifier, log *slog.Logger, upgrade bool, onRedirect func()) *PlanSelector {
	if onRedirect == nil {
		onRedirect = func() {}
	}
	return &PlanSelector{
		api:        api,
		notify:     notify,
		log:        log,
		upgrade:    upgrade,
		onRedirect: onRedirect,
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		after: time.After,
		cycle: models.CycleMonthly,
		stop:  make(chan struct{}),
	}
}

// Plans тарифы в порядке возрастания.
func (s *PlanSelector) Plans() []plans.Plan {
	return slices.Clone(plans.All)
}

// Price цена тарифа для текущего цикла в центах.
func (s *PlanSelector) Price(plan plans.Plan) int64 {
	return plan.Price(s.Cycle())
}

// Cycle текущий цикл оплаты.
func (s *PlanSelector) Cycle() models.BillingCycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// Rotating сообщает, что переключатель цикла еще меняется автоматически.
func (s *PlanSelector) Rotating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotating
}

// StartAutoRotate переключает цикл monthly/annual каждые AutoRotateInterval до первого
// ручного SetCycle или отмены ctx. В режиме upgrade не запускается.
func (s *PlanSelector) StartAutoRotate(ctx context.Context) {
	s.mu.Lock()
	if s.upgrade || s.rotating || s.stopped() {
		s.mu.Unlock()
		return
	}
	s.rotating = true
	s.mu.Unlock()

	ticks, stopTicker := s.tick(AutoRotateInterval)
	go func() {
		defer stopTicker()
		defer func() {
			s.mu.Lock()
			s.rotating = false
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticks:
				s.mu.Lock()
				if s.stopped() {
					s.mu.Unlock()
					return
				}
				s.cycle = toggle(s.cycle)
				s.mu.Unlock()
			}
		}
	}()
}

// SetCycle ручной выбор цикла. Автоматическое переключение отключается до конца сессии.
func (s *PlanSelector) SetCycle(cycle models.BillingCycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle = cycle
	if !s.stopped() {
		close(s.stop)
	}
}

// Select оформляет или меняет тариф. Ошибка сервера показывается пользователю, повтора нет.
// Повторный вызов до завершения предыдущего возвращает ErrInFlight.
func (s *PlanSelector) Select(ctx context.Context, plan models.PlanID) (Selection, error) {
	const op = "dashboard.PlanSelector.Select"

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Selection{}, ErrInFlight
	}
	s.inFlight = true
	cycle := s.cycle
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	req := models.ChangePlanRequest{PlanID: plan, BillingCycle: cycle}
	var (
		res *models.ChangePlanResult
		err error
	)
	if s.upgrade {
		res, err = s.api.UpdateSubscription(ctx, req)
	} else {
		res, err = s.api.CreateSubscription(ctx, req)
	}
	if err != nil {
		s.log.Error("failed to select plan", sl.Op(op), slog.String("plan", string(plan)), sl.Err(err))
		s.notify.Error(client.Message(err, msgPlanFailed))
		return Selection{}, fmt.Errorf("%s: %w", op, err)
	}

	sel := Selection{Plan: plan, Cycle: cycle}
	if res.NeedsPayment() {
		sel.ClientSecret = res.ClientSecret
		return sel, nil
	}

	sel.Completed = true
	s.notify.Success(msgPlanChanged)
	wait := s.after(RedirectDelay)
	go func() {
		<-wait
		s.onRedirect()
	}()
	return sel, nil
}

// stopped вызывается под s.mu.
func (s *PlanSelector) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func toggle(c models.BillingCycle) models.BillingCycle {
	if c == models.CycleAnnual {
		return models.CycleMonthly
	}
	return models.CycleAnnual
}
