package serp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/FranksOps/serpent/pkg/proxy"
	"github.com/go-playground/validator/v10"
)

// Options configures one search.
type Options struct {
	Term string `validate:"required"`
	// NumResults is the most results the search yields. Defaults to 10.
	NumResults int `validate:"gte=1"`
	// Lang is sent as hl. Defaults to "en".
	Lang  string
	Proxy *url.URL `validate:"-"`
	// Advanced fills Title and Description; otherwise only URL is set.
	Advanced bool
	// SleepInterval is the pause between successive page fetches.
	SleepInterval time.Duration `validate:"gte=0"`
	// SleepJitter randomizes SleepInterval by up to this fraction.
	SleepJitter float64 `validate:"gte=0,lte=1"`
	// Timeout bounds each page fetch. Defaults to 5s.
	Timeout time.Duration `validate:"gte=0"`
	// Safe is the safe-search mode. Defaults to "active".
	Safe          string
	SkipTLSVerify bool
	Region        string
	// StartOffset is the first page offset, a multiple of PageStride.
	StartOffset int `validate:"gte=0"`
	// Unique drops URLs already yielded by this search.
	Unique bool
	Render bool

	// Extractor overrides the default result extractor.
	Extractor *Extractor   `validate:"-"`
	Logger    *slog.Logger `validate:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (o Options) withDefaults() Options {
	if o.NumResults == 0 {
		o.NumResults = 10
	}
	if o.Lang == "" {
		o.Lang = "en"
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Safe == "" {
		o.Safe = "active"
	}
	if o.Extractor == nil {
		o.Extractor = NewExtractor(DefaultSelectors)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Validate reports option errors wrapped in ErrInvalidOptions. Zero values
// with a documented default are accepted.
func (o Options) Validate() error {
	return o.withDefaults().validate()
}

func (o Options) validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (got %v)", ErrInvalidOptions, fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if o.StartOffset%PageStride != 0 {
		return fmt.Errorf("%w: StartOffset %d is not a multiple of %d", ErrInvalidOptions, o.StartOffset, PageStride)
	}
	if o.Proxy != nil {
		if err := proxy.CheckScheme(o.Proxy); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}
	return nil
}
