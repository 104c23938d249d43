package payment

import (
	"fmt"
	"slices"
)

// RouterConfig is resolved once at startup.
type RouterConfig struct {
	// RegionalProvider selects which regional-wallet sub-provider serves VND.
	RegionalProvider Provider
}

// Router maps a currency, or an explicit provider override, to exactly one
// adapter. It is read-only after construction.
type Router struct {
	byName     map[Provider]Adapter
	byCurrency map[Currency]Adapter
}

func NewRouter(cfg RouterConfig, adapters ...Adapter) (*Router, error) {
	if !cfg.RegionalProvider.IsRegional() {
		return nil, fmt.Errorf("regional provider must be %s or %s, got %q",
			ProviderMoMo, ProviderZaloPay, cfg.RegionalProvider)
	}

	r := &Router{
		byName:     make(map[Provider]Adapter, len(adapters)),
		byCurrency: make(map[Currency]Adapter, len(Currencies)),
	}

	for _, a := range adapters {
		name := a.Descriptor().Name
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("adapter %s registered twice", name)
		}

		r.byName[name] = a
	}

	for _, c := range Currencies {
		a, ok := r.byName[zoneProvider(cfg, c)]
		if !ok || !a.SupportsCurrency(c) {
			continue
		}

		r.byCurrency[c] = a
	}

	return r, nil
}

// zoneProvider encodes the two routing zones: the card network handles the
// international settlement currencies, the regional wallet handles VND.
func zoneProvider(cfg RouterConfig, c Currency) Provider {
	switch c {
	case CurrencyUSD, CurrencyEUR:
		return ProviderStripe
	case CurrencyVND:
		return cfg.RegionalProvider
	}

	return ""
}

func (r *Router) RouteByCurrency(c Currency) (Adapter, error) {
	a, ok := r.byCurrency[c]
	if !ok {
		return nil, &UnsupportedCurrencyError{Currency: c}
	}

	return a, nil
}

func (r *Router) GetProvider(name Provider) (Adapter, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, &UnknownProviderError{Name: string(name)}
	}

	return a, nil
}

// Resolve honours an explicit override when given, otherwise routes by
// currency. An override that cannot charge the currency is rejected.
func (r *Router) Resolve(c Currency, override Provider) (Adapter, error) {
	if override == "" {
		return r.RouteByCurrency(c)
	}

	a, err := r.GetProvider(override)
	if err != nil {
		return nil, err
	}

	if !a.SupportsCurrency(c) {
		return nil, &UnsupportedCurrencyError{Currency: c}
	}

	return a, nil
}

// Currencies returns the currencies that currently route to an adapter.
func (r *Router) Currencies() []Currency {
	out := make([]Currency, 0, len(r.byCurrency))
	for _, c := range Currencies {
		if _, ok := r.byCurrency[c]; ok {
			out = append(out, c)
		}
	}

	return out
}

func (r *Router) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.byName))
	for _, a := range r.byName {
		out = append(out, a.Descriptor())
	}

	slices.SortFunc(out, func(a, b Descriptor) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}

		return 0
	})

	return out
}
