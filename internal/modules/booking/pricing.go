package booking

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"slapp/internal/domain"
	"slapp/internal/pkg/timerange"
)

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

type PriceLine struct {
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	HourlyRate     decimal.Decimal `json:"hourly_rate"`
	Amount         decimal.Decimal `json:"amount"`
	SpecialPriceID *int64          `json:"special_price_id,omitempty"`
}

type Quote struct {
	Total decimal.Decimal `json:"total"`
	Lines []PriceLine     `json:"lines"`
}

type priceRule struct {
	src         domain.SpecialPrice
	open, close timerange.Clock
	// overnight rules run from open to midnight on their day and from
	// midnight to close on the following day.
	overnight   bool
	specificity int
}

func (r priceRule) appliesOn(wd time.Weekday) bool {
	return r.src.DayOfWeek == nil || time.Weekday(*r.src.DayOfWeek) == wd
}

// windows returns the parts of r that fall on the local day starting at day.
func (r priceRule) windows(day time.Time) []timerange.Interval {
	if !r.overnight {
		if !r.appliesOn(day.Weekday()) {
			return nil
		}
		return []timerange.Interval{{Start: timerange.At(day, r.open), End: timerange.At(day, r.close)}}
	}

	var out []timerange.Interval
	if r.close > 0 && r.appliesOn((day.Weekday()+6)%7) {
		out = append(out, timerange.Interval{Start: day, End: timerange.At(day, r.close)})
	}
	if r.appliesOn(day.Weekday()) {
		out = append(out, timerange.Interval{Start: timerange.At(day, r.open), End: timerange.NextDay(day)})
	}
	return out
}

func (r priceRule) covers(day time.Time, piece timerange.Interval) bool {
	for _, w := range r.windows(day) {
		if timerange.Contains(w, piece) {
			return true
		}
	}
	return false
}

// beats reports whether r takes precedence over other on a shared sub-range:
// more dimensions first, then the most recently created rule, then the higher id.
func (r priceRule) beats(other priceRule) bool {
	if r.specificity != other.specificity {
		return r.specificity > other.specificity
	}
	if !r.src.CreatedAt.Equal(other.src.CreatedAt) {
		return r.src.CreatedAt.After(other.src.CreatedAt)
	}
	return r.src.ID > other.src.ID
}

func prepareRules(rules []domain.SpecialPrice) ([]priceRule, error) {
	out := make([]priceRule, 0, len(rules))
	for _, sp := range rules {
		if !sp.Active || (!sp.HasDay() && !sp.HasWindow()) {
			continue
		}
		r, err := newPriceRule(sp)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func newPriceRule(sp domain.SpecialPrice) (priceRule, error) {
	if sp.Price.IsNegative() {
		return priceRule{}, fmt.Errorf("%w: special price %d", ErrNegativeRate, sp.ID)
	}
	if sp.DayOfWeek != nil && (*sp.DayOfWeek < 0 || *sp.DayOfWeek > 6) {
		return priceRule{}, fmt.Errorf("%w: special price %d day_of_week %d", ErrInvalidPriceRule, sp.ID, *sp.DayOfWeek)
	}

	r := priceRule{src: sp, open: 0, close: timerange.EndOfDay}
	var err error
	if sp.StartTime != nil && *sp.StartTime != "" {
		if r.open, err = timerange.ParseClock(*sp.StartTime); err != nil {
			return priceRule{}, fmt.Errorf("%w: special price %d: %v", ErrInvalidPriceRule, sp.ID, err)
		}
	}
	if sp.EndTime != nil && *sp.EndTime != "" {
		if r.close, err = timerange.ParseClock(*sp.EndTime); err != nil {
			return priceRule{}, fmt.Errorf("%w: special price %d: %v", ErrInvalidPriceRule, sp.ID, err)
		}
	}
	switch {
	case r.close == r.open:
		return priceRule{}, fmt.Errorf("%w: special price %d has an empty window %s-%s", ErrInvalidPriceRule, sp.ID, r.open, r.close)
	case r.close < r.open:
		r.overnight = true
	}

	if sp.HasDay() {
		r.specificity++
	}
	if sp.HasWindow() {
		r.specificity++
	}
	return r, nil
}

// ValidateSpecialPrice checks a rule the way ComputePrice will read it.
func ValidateSpecialPrice(sp domain.SpecialPrice) error {
	if !sp.HasDay() && !sp.HasWindow() {
		return fmt.Errorf("%w: special price needs a day_of_week or a time window", ErrInvalidPriceRule)
	}
	_, err := newPriceRule(sp)
	return err
}

// ComputePrice prices iv for room. The interval is cut at local midnights and
// at every applicable rule boundary; each piece is charged at the winning
// special rate or the base hourly rate, prorated by its exact duration. The
// total is rounded half-up to two decimals.
func ComputePrice(room domain.Room, rules []domain.SpecialPrice, loc *time.Location, iv timerange.Interval) (Quote, error) {
	if !iv.Valid() {
		return Quote{}, ErrInvalidInterval
	}
	if room.HourlyRate.IsNegative() {
		return Quote{}, fmt.Errorf("%w: room %d", ErrNegativeRate, room.ID)
	}
	if loc == nil {
		loc = time.UTC
	}
	prepared, err := prepareRules(rules)
	if err != nil {
		return Quote{}, err
	}

	cuts := map[int64]time.Time{}
	addCut := func(t time.Time) {
		if t.After(iv.Start) && t.Before(iv.End) {
			cuts[t.UnixNano()] = t
		}
	}
	for day := timerange.StartOfDay(iv.Start, loc); day.Before(iv.End); day = timerange.NextDay(day) {
		addCut(day)
		for _, r := range prepared {
			for _, w := range r.windows(day) {
				addCut(w.Start)
				addCut(w.End)
			}
		}
	}
	points := make([]time.Time, 0, len(cuts)+2)
	points = append(points, iv.Start)
	for _, t := range cuts {
		points = append(points, t)
	}
	points = append(points, iv.End)
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })

	var q Quote
	sum := decimal.Zero
	for i := 0; i+1 < len(points); i++ {
		piece := timerange.Interval{Start: points[i], End: points[i+1]}
		day := timerange.StartOfDay(piece.Start, loc)

		var winner *priceRule
		for j := range prepared {
			r := prepared[j]
			if !r.covers(day, piece) {
				continue
			}
			if winner == nil || r.beats(*winner) {
				winner = &prepared[j]
			}
		}

		line := PriceLine{Start: piece.Start, End: piece.End, HourlyRate: room.HourlyRate}
		if winner != nil {
			id := winner.src.ID
			line.HourlyRate = winner.src.Price
			line.SpecialPriceID = &id
		}
		amount := line.HourlyRate.
			Mul(decimal.NewFromInt(piece.Duration().Nanoseconds())).
			Div(nanosPerHour)
		sum = sum.Add(amount)
		line.Amount = amount

		if n := len(q.Lines); n > 0 && sameRate(q.Lines[n-1], line) {
			q.Lines[n-1].End = line.End
			q.Lines[n-1].Amount = q.Lines[n-1].Amount.Add(line.Amount)
			continue
		}
		q.Lines = append(q.Lines, line)
	}

	for i := range q.Lines {
		q.Lines[i].Amount = q.Lines[i].Amount.Round(2)
	}
	q.Total = sum.Round(2)
	return q, nil
}

func sameRate(a, b PriceLine) bool {
	if (a.SpecialPriceID == nil) != (b.SpecialPriceID == nil) {
		return false
	}
	if a.SpecialPriceID != nil && *a.SpecialPriceID != *b.SpecialPriceID {
		return false
	}
	return a.End.Equal(b.Start) && a.HourlyRate.Equal(b.HourlyRate)
}
