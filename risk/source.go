package risk

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FillQuery selects one page of fills in [Start, End], oldest first.
// PageToken is the ID of the last fill of the previous page.
type FillQuery struct {
	Start     time.Time
	End       time.Time
	PageToken string
	PageSize  int
}

// FillSource is the broker's activity feed. A page shorter than PageSize
// (or empty) is the last one.
type FillSource interface {
	Fills(ctx context.Context, q FillQuery) ([]Fill, error)
}

// Capital is the account value and the fraction of it reserved for
// strategies that the gate does not police (the buy-and-hold sleeve).
type Capital struct {
	AccountValue     float64
	ReservedFraction float64
}

// Tradeable is the part of the account the trading strategies may use.
func (c Capital) Tradeable() float64 {
	return c.AccountValue * (1 - c.ReservedFraction)
}

type AccountSource interface {
	Capital(ctx context.Context) (Capital, error)
}

// SnapshotStore persists the daily snapshot log. Whole-log read and
// replace is all the gate needs.
type SnapshotStore interface {
	ReadAll(ctx context.Context) (SnapshotLog, error)
	WriteAll(ctx context.Context, log SnapshotLog) error
}

// PageResult is what Paginate managed to fetch.
type PageResult struct {
	Fills []Fill
	Pages int

	// Degraded is set when a page failed and the result is partial.
	Degraded bool
	Err      error
}

// Paginate walks src from start to end. A failing page ends the walk and
// whatever was fetched before it is returned with Degraded set.
func Paginate(ctx context.Context, src FillSource, start, end time.Time, pageSize int, log zerolog.Logger) PageResult {
	var res PageResult
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			res.Degraded, res.Err = true, err
			return res
		}

		page, err := src.Fills(ctx, FillQuery{
			Start:     start,
			End:       end,
			PageToken: token,
			PageSize:  pageSize,
		})
		if err != nil {
			log.Error().Err(err).Str("page_token", token).Int("fetched", len(res.Fills)).
				Msg("failed to fetch fills page, continuing with partial data")
			res.Degraded, res.Err = true, err
			return res
		}
		res.Pages++
		res.Fills = append(res.Fills, page...)

		if len(page) < pageSize {
			return res
		}
		next := page[len(page)-1].ID
		if next == "" || next == token {
			log.Warn().Str("page_token", token).Msg("fills feed returned no usable cursor, stopping")
			return res
		}
		token = next
	}
}
