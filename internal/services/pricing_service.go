package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/repositories"
	"tourbackend/internal/utils"
)

type PricingService struct {
	Pricing repositories.PricingRepository
}

func (s PricingService) Get(ctx context.Context) (models.PricingConfig, error) {
	return s.Pricing.Get(ctx)
}

// Update validates and stores a full pricing record.
func (s PricingService) Update(ctx context.Context, p models.PricingConfig) (models.PricingConfig, error) {
	p.Currency = strings.ToUpper(utils.Fallback(p.Currency, "EUR"))
	if p.Currency != "EUR" {
		return models.PricingConfig{}, domain.ValidationError{Field: "currency", Msg: "only EUR is supported"}
	}
	for field, v := range map[string]float64{"adultPrice": p.AdultPrice, "childPrice": p.ChildPrice, "guidedTourPrice": p.GuidedTourPrice} {
		if v < 0 || math.IsNaN(v) {
			return models.PricingConfig{}, domain.ValidationError{Field: field, Msg: "must not be negative"}
		}
	}
	clean := make(map[string]float64, len(p.Attractions))
	for name, v := range p.Attractions {
		name = utils.NormalizeSpace(name)
		if name == "" {
			continue
		}
		if v < 0 || math.IsNaN(v) {
			return models.PricingConfig{}, domain.ValidationError{Field: "attractions", Msg: fmt.Sprintf("price for %q must not be negative", name)}
		}
		clean[name] = utils.RoundCents(v)
	}
	p.Attractions = clean
	p.AdultPrice = utils.RoundCents(p.AdultPrice)
	p.ChildPrice = utils.RoundCents(p.ChildPrice)
	p.GuidedTourPrice = utils.RoundCents(p.GuidedTourPrice)

	if err := s.Pricing.Put(ctx, p); err != nil {
		return models.PricingConfig{}, err
	}
	utils.LogCtx(ctx, "pricing", "update", fmt.Sprintf("adult=%.2f child=%.2f guided=%.2f attractions=%d", p.AdultPrice, p.ChildPrice, p.GuidedTourPrice, len(p.Attractions)))
	return p, nil
}

// Breakdown itemises a booking against the pricing record. Attractions that
// are not priced are listed at zero.
func Breakdown(p models.PricingConfig, passengers []models.Passenger, guidedTour bool, attractions []string) []models.PriceLine {
	var adults, children int
	for _, ps := range passengers {
		if ps.Type == models.PassengerChild {
			children++
		} else {
			adults++
		}
	}

	var lines []models.PriceLine
	add := func(label string, qty int, unit float64) {
		if qty <= 0 {
			return
		}
		lines = append(lines, models.PriceLine{
			Label:     label,
			Quantity:  qty,
			UnitPrice: unit,
			Amount:    utils.RoundCents(unit * float64(qty)),
		})
	}
	add("Adult day pass", adults, p.AdultPrice)
	add("Child day pass", children, p.ChildPrice)
	if guidedTour {
		add("Guided tour", len(passengers), p.GuidedTourPrice)
	}

	names := append([]string(nil), attractions...)
	sort.Strings(names)
	for _, name := range names {
		add(name, len(passengers), p.Attractions[name])
	}
	return lines
}

func BreakdownTotal(lines []models.PriceLine) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.Amount
	}
	return utils.RoundCents(sum)
}
