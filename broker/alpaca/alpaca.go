// Package alpaca adapts the Alpaca trading and market-data REST clients to
// broker.Broker.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradeguard/broker"
	"github.com/rustyeddy/tradeguard/risk"
)

const (
	PaperURL = "https://paper-api.alpaca.markets"
	LiveURL  = "https://api.alpaca.markets"
)

// TradingAPI is the part of *alpaca.Client the adapter uses.
type TradingAPI interface {
	GetAccount() (*alpacaapi.Account, error)
	GetAccountActivities(req alpacaapi.GetAccountActivitiesRequest) ([]alpacaapi.AccountActivity, error)
}

// MarketDataAPI is the part of *marketdata.Client the adapter uses.
type MarketDataAPI interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
}

func (c Config) Validate() error {
	if c.APIKey == "" || c.APISecret == "" {
		return fmt.Errorf("alpaca credentials: %w", broker.ErrNotConfigured)
	}
	return nil
}

type Client struct {
	trading TradingAPI
	data    MarketDataAPI
	log     zerolog.Logger
	now     func() time.Time
}

// New builds a client against the real Alpaca endpoints.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := cfg.BaseURL
	if base == "" {
		base = PaperURL
	}
	trading := alpacaapi.NewClient(alpacaapi.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   base,
	})
	data := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	})
	return NewWithAPIs(trading, data, log), nil
}

func NewWithAPIs(trading TradingAPI, data MarketDataAPI, log zerolog.Logger) *Client {
	return &Client{trading: trading, data: data, log: log, now: time.Now}
}

func (c *Client) Account(ctx context.Context) (broker.Account, error) {
	if err := ctx.Err(); err != nil {
		return broker.Account{}, err
	}
	a, err := c.trading.GetAccount()
	if err != nil {
		return broker.Account{}, fmt.Errorf("alpaca get account: %w", err)
	}
	if a == nil {
		return broker.Account{}, errors.New("alpaca get account: empty response")
	}
	return broker.Account{
		ID:             a.ID,
		Currency:       a.Currency,
		Status:         a.Status,
		Cash:           a.Cash,
		Equity:         a.Equity,
		PortfolioValue: a.PortfolioValue,
	}, nil
}

// Fills pages through FILL activities in ascending order. The page token
// is the ID of the last activity of the previous page.
func (c *Client) Fills(ctx context.Context, q risk.FillQuery) ([]risk.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acts, err := c.trading.GetAccountActivities(alpacaapi.GetAccountActivitiesRequest{
		ActivityTypes: []string{"FILL"},
		After:         q.Start,
		Until:         q.End,
		Direction:     "asc",
		PageSize:      q.PageSize,
		PageToken:     q.PageToken,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca account activities: %w", err)
	}

	out := make([]risk.Fill, 0, len(acts))
	for _, a := range acts {
		out = append(out, c.toFill(a))
	}
	return out, nil
}

// toFill keeps malformed activities (the matcher skips them) so that the
// page length and cursor stay intact.
func (c *Client) toFill(a alpacaapi.AccountActivity) risk.Fill {
	side, err := parseSide(a.Side)
	if err != nil {
		c.log.Warn().Str("activity_id", a.ID).Str("side", a.Side).Msg("unknown fill side")
	}
	if !a.Qty.Equal(a.Qty.Truncate(0)) {
		c.log.Warn().Str("activity_id", a.ID).Str("qty", a.Qty.String()).
			Msg("fractional fill quantity truncated")
	}
	return risk.Fill{
		ID:              a.ID,
		Symbol:          strings.ToUpper(a.Symbol),
		Side:            side,
		Qty:             a.Qty.IntPart(),
		Price:           a.Price,
		TransactionTime: a.TransactionTime,
	}
}

func parseSide(s string) (risk.Side, error) {
	if strings.EqualFold(s, "sell_short") {
		return risk.Sell, nil
	}
	return risk.ParseSide(s)
}

// DailyCloses returns daily bars over the last days calendar days.
func (c *Client) DailyCloses(ctx context.Context, symbol string, days int) ([]broker.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	end := c.now()
	bars, err := c.data.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     end.AddDate(0, 0, -days),
		End:       end,
		Feed:      marketdata.IEX,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", symbol, err)
	}

	out := make([]broker.Bar, len(bars))
	for i, b := range bars {
		out[i] = broker.Bar{Time: b.Timestamp, Close: b.Close}
	}
	return out, nil
}

var _ broker.Broker = (*Client)(nil)
