package odds

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/radieske/intramural-predictions/internal/domain"
)

const eps = 1e-9

func TestQuoteNormalization(t *testing.T) {
	e := NewEngine(DefaultConfig())

	for home := 600.0; home <= 2000; home += 100 {
		for away := 600.0; away <= 2000; away += 175 {
			for _, rates := range [][2]float64{{0, 0}, {0.1, 0.3}, {0.9, 0.9}} {
				for _, draws := range []bool{true, false} {
					q := e.Quote(QuoteInput{
						HomeRating:      home,
						AwayRating:      away,
						HomeForfeitRate: rates[0],
						AwayForfeitRate: rates[1],
						AllowsDraw:      draws,
					})
					if math.Abs(q.Sum()-1) > eps {
						t.Fatalf("sum = %.12f for %v vs %v rates=%v", q.Sum(), home, away, rates)
					}
					if !draws && q.Draw != 0 {
						t.Fatalf("draw prob %.4f for a sport without draws", q.Draw)
					}
				}
			}
		}
	}
}

func TestQuoteEqualRatings(t *testing.T) {
	e := NewEngine(DefaultConfig())
	q := e.Quote(QuoteInput{MatchID: "m1", HomeRating: 1200, AwayRating: 1200, AllowsDraw: true})

	// diff 0: draw = 0.1, forfeit no piso 0.05, resto dividido igualmente
	if math.Abs(q.Draw-0.1) > eps {
		t.Errorf("draw = %f, want 0.1", q.Draw)
	}
	if math.Abs(q.Forfeit-0.05) > eps {
		t.Errorf("forfeit = %f, want 0.05", q.Forfeit)
	}
	if math.Abs(q.Home-0.425) > eps || math.Abs(q.Away-0.425) > eps {
		t.Errorf("home/away = %f/%f, want 0.425", q.Home, q.Away)
	}
	if q.Fallback {
		t.Error("regular quote flagged as fallback")
	}
	if q.MatchID != "m1" {
		t.Errorf("match id = %q", q.MatchID)
	}
}

func TestQuoteDrawDecaysWithGap(t *testing.T) {
	e := NewEngine(DefaultConfig())
	near := e.Quote(QuoteInput{HomeRating: 1200, AwayRating: 1180, AllowsDraw: true})
	wide := e.Quote(QuoteInput{HomeRating: 1600, AwayRating: 1000, AllowsDraw: true})
	if wide.Draw >= near.Draw {
		t.Errorf("draw prob should shrink with rating gap: near=%f wide=%f", near.Draw, wide.Draw)
	}
	if wide.Home <= wide.Away {
		t.Errorf("higher rated home should be favored: %f vs %f", wide.Home, wide.Away)
	}
}

func TestQuoteForfeitClamp(t *testing.T) {
	e := NewEngine(DefaultConfig())
	q := e.Quote(QuoteInput{HomeRating: 1200, AwayRating: 1200, HomeForfeitRate: 1, AwayForfeitRate: 1})
	if math.Abs(q.Forfeit-0.25) > eps {
		t.Errorf("forfeit = %f, want ceiling 0.25", q.Forfeit)
	}
}

func TestQuoteMarketBlend(t *testing.T) {
	e := NewEngine(DefaultConfig())
	base := e.Quote(QuoteInput{HomeRating: 1200, AwayRating: 1200, AllowsDraw: true})

	vol := domain.NewMarketVolume("m1")
	vol.Amounts[domain.OutcomeAway] = decimal.NewFromInt(500)
	blended := e.Quote(QuoteInput{HomeRating: 1200, AwayRating: 1200, AllowsDraw: true, Volume: &vol})

	if blended.Away <= base.Away {
		t.Errorf("away prob should move toward the market: base=%f blended=%f", base.Away, blended.Away)
	}
	// peso do rating domina: 0.8*0.425 + 0.2*1 = 0.54
	if math.Abs(blended.Away-0.54) > 1e-6 {
		t.Errorf("blended away = %f, want 0.54", blended.Away)
	}
	if math.Abs(blended.Sum()-1) > eps {
		t.Errorf("blended sum = %f", blended.Sum())
	}

	empty := domain.NewMarketVolume("m1")
	unchanged := e.Quote(QuoteInput{HomeRating: 1200, AwayRating: 1200, AllowsDraw: true, Volume: &empty})
	if math.Abs(unchanged.Away-base.Away) > eps {
		t.Errorf("empty market must not change the quote")
	}
}

func TestFallback(t *testing.T) {
	q := NewEngine(DefaultConfig()).Fallback("m2")
	if !q.Fallback {
		t.Error("Fallback flag not set")
	}
	if q.Home != 0.35 || q.Away != 0.35 || q.Draw != 0.10 || q.Forfeit != 0.20 {
		t.Errorf("fallback distribution = %+v", q)
	}
	if math.Abs(q.Sum()-1) > eps {
		t.Errorf("fallback sum = %f", q.Sum())
	}
}

func TestProbToMoneyline(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		want int
	}{
		{"even", 0.5, -100},
		{"favorite 60%", 0.6, -150},
		{"favorite -110", 0.5238, -110},
		{"underdog 40%", 0.4, 150},
		{"underdog 25%", 0.25, 300},
		{"zero clamped", 0, 9900},
		{"one clamped", 1, -9900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProbToMoneyline(tt.p, 0.01); got != tt.want {
				t.Errorf("ProbToMoneyline(%v) = %d, want %d", tt.p, got, tt.want)
			}
		})
	}
}

func TestMoneylineToProb(t *testing.T) {
	tests := []struct {
		line int
		want float64
	}{
		{150, 0.4},
		{-150, 0.6},
		{-110, 0.5238},
		{300, 0.25},
	}
	for _, tt := range tests {
		got, err := MoneylineToProb(tt.line)
		if err != nil {
			t.Fatalf("MoneylineToProb(%d): %v", tt.line, err)
		}
		if math.Abs(got-tt.want) > 0.0001 {
			t.Errorf("MoneylineToProb(%d) = %f, want %f", tt.line, got, tt.want)
		}
	}
	if _, err := MoneylineToProb(50); err == nil {
		t.Error("expected error for moneyline inside (-100, 100)")
	}
}
