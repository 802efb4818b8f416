// Package plans содержит каталог тарифов RH Master: лимиты клиентов и таблицу цен
// для помесячной и годовой оплаты.
//
// Годовые цены заданы фиксированной таблицей по каждому тарифу, а не вычисляются
// от месячной цены. При этом витрина обещает скидку AnnualDiscountPercent.
// Расхождения между таблицей и обещанной скидкой не сглаживаются, а возвращаются
// функцией Discrepancies.
package plans

import (
	"errors"
	"fmt"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// AnnualDiscountPercent скидка, которую обещает переключатель "20% OFF".
const AnnualDiscountPercent = 20

// ErrUnknownPlan возвращается для неизвестного тарифа.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan описание тарифа. Цены в центах.
type Plan struct {
	ID           models.PlanID `json:"id"`
	Name         string        `json:"name"`
	MaxClients   int           `json:"maxClients"`
	PriceMonthly int64         `json:"priceMonthly"`
	PriceAnnual  int64         `json:"priceAnnual"`
	Currency     string        `json:"currency"`
	Features     []string      `json:"features,omitempty"`
}

// Тарифы в порядке возрастания.
var (
	Basic = Plan{
		ID:           models.PlanBasic,
		Name:         "Basic",
		MaxClients:   10,
		PriceMonthly: 2900,
		PriceAnnual:  29000,
		Currency:     "usd",
		Features:     []string{"behavioral-tests", "progress-tracking"},
	}

	Pro = Plan{
		ID:           models.PlanPro,
		Name:         "Pro",
		MaxClients:   50,
		PriceMonthly: 7900,
		PriceAnnual:  79000,
		Currency:     "usd",
		Features:     []string{"behavioral-tests", "progress-tracking", "ai-assistant", "reports"},
	}

	Enterprise = Plan{
		ID:           models.PlanEnterprise,
		Name:         "Enterprise",
		MaxClients:   500,
		PriceMonthly: 19900,
		PriceAnnual:  199000,
		Currency:     "usd",
		Features:     []string{"behavioral-tests", "progress-tracking", "ai-assistant", "reports", "priority-support"},
	}

	All = []Plan{Basic, Pro, Enterprise}
)

// ByID ищет тариф по идентификатору.
func ByID(id models.PlanID) (Plan, error) {
	for _, p := range All {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
}

// Price возвращает цену тарифа для цикла оплаты.
func (p Plan) Price(cycle models.BillingCycle) int64 {
	if cycle == models.CycleAnnual {
		return p.PriceAnnual
	}
	return p.PriceMonthly
}

// AdvertisedAnnual годовая цена, если бы скидка AnnualDiscountPercent считалась от месячной.
func (p Plan) AdvertisedAnnual() int64 {
	return p.PriceMonthly * 12 * (100 - AnnualDiscountPercent) / 100
}

// Discrepancy расхождение между таблицей годовых цен и обещанной скидкой.
type Discrepancy struct {
	Plan             models.PlanID `json:"plan"`
	TableAnnual      int64         `json:"tableAnnual"`
	AdvertisedAnnual int64         `json:"advertisedAnnual"`
	EffectivePercent float64       `json:"effectiveDiscountPercent"`
}

// Discrepancies возвращает тарифы, у которых годовая цена из таблицы
// не совпадает с ценой по обещанной скидке.
func Discrepancies() []Discrepancy {
	var res []Discrepancy
	for _, p := range All {
		advertised := p.AdvertisedAnnual()
		if advertised == p.PriceAnnual {
			continue
		}
		full := float64(p.PriceMonthly * 12)
		res = append(res, Discrepancy{
			Plan:             p.ID,
			TableAnnual:      p.PriceAnnual,
			AdvertisedAnnual: advertised,
			EffectivePercent: (full - float64(p.PriceAnnual)) / full * 100,
		})
	}
	return res
}

// Catalog витрина тарифов вместе с расхождениями годовых цен.
type Catalog struct {
	Plans                 []Plan        `json:"plans"`
	AnnualDiscountPercent int           `json:"annualDiscountPercent"`
	Discrepancies         []Discrepancy `json:"discrepancies"`
}

// CurrentCatalog возвращает витрину тарифов.
func CurrentCatalog() Catalog {
	d := Discrepancies()
	if d == nil {
		d = []Discrepancy{}
	}
	return Catalog{
		Plans:                 All,
		AnnualDiscountPercent: AnnualDiscountPercent,
		Discrepancies:         d,
	}
}
