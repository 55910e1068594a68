package model

// Pagination represents common pagination parameters
type Pagination struct {
	Page  int `json:"page" form:"page"`
	Limit int `json:"limit" form:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Normalize clamps page/limit to sane values and computes Pages.
func (p *Pagination) Normalize(defaultLimit, maxLimit int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
}

// Offset returns the row offset for the current page.
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// SetTotal records the total row count and derives the page count.
func (p *Pagination) SetTotal(total int) {
	p.Total = total
	p.Pages = (total + p.Limit - 1) / p.Limit
}
