package statement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

type Ledger interface {
	Get(ctx context.Context, transactionID string) (*ledger.Payment, error)
}

// Service checks provider settlement exports against the ledger. It never
// writes: discrepancies are reported for an operator to act on.
type Service struct {
	ledger  Ledger
	parsers map[payment.Provider]Parser
	logger  *slog.Logger
}

func NewService(l Ledger, parsers map[payment.Provider]Parser, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{ledger: l, parsers: parsers, logger: logger}
}

// Providers lists the providers a statement can be checked for.
func (s *Service) Providers() []payment.Provider {
	out := make([]payment.Provider, 0, len(s.parsers))
	for _, p := range []payment.Provider{payment.ProviderStripe, payment.ProviderMoMo, payment.ProviderZaloPay} {
		if _, ok := s.parsers[p]; ok {
			out = append(out, p)
		}
	}

	return out
}

func (s *Service) Check(ctx context.Context, provider payment.Provider, r io.Reader) (*Report, error) {
	parser, ok := s.parsers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoParser, provider)
	}

	lines, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	report := &Report{Provider: provider, Lines: len(lines)}
	seen := make(map[string]bool, len(lines))

	for _, line := range lines {
		if seen[line.TransactionID] {
			report.Findings = append(report.Findings, Finding{Kind: KindDuplicate, Line: line})
			continue
		}
		seen[line.TransactionID] = true

		p, err := s.ledger.Get(ctx, line.TransactionID)
		if errors.Is(err, ledger.ErrNotFound) {
			report.Findings = append(report.Findings, Finding{Kind: KindMissing, Line: line})
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", line.TransactionID, err)
		}

		found := compare(line, p, provider)
		if len(found) == 0 {
			report.Matched++
			continue
		}

		report.Findings = append(report.Findings, found...)
	}

	s.logger.Info("statement checked",
		"provider", provider,
		"lines", report.Lines,
		"matched", report.Matched,
		"findings", len(report.Findings),
	)

	return report, nil
}

func compare(line Line, p *ledger.Payment, provider payment.Provider) []Finding {
	var out []Finding

	add := func(k Kind) {
		out = append(out, Finding{Kind: k, Line: line, Payment: p})
	}

	if p.Provider != provider {
		add(KindProviderMismatch)
	}

	if line.Currency != "" && line.Currency != p.Currency {
		add(KindCurrencyMismatch)
	} else if !line.Amount.Equal(p.Amount) {
		add(KindAmountMismatch)
	}

	if line.Status != p.Status {
		add(KindStatusMismatch)
	}

	return out
}
