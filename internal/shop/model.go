package shop

import "github.com/shopspring/decimal"

type Shop struct {
	ID         string
	Name       string
	Location   string
	PriceBW    decimal.Decimal
	PriceColor decimal.Decimal
	OwnerID    string
}

// Quote is the cost of printing copies of a document with the given page count.
func (s *Shop) Quote(pages, copies int, color bool) decimal.Decimal {
	perPage := s.PriceBW
	if color {
		perPage = s.PriceColor
	}
	return perPage.Mul(decimal.NewFromInt(int64(pages) * int64(copies))).Round(2)
}
