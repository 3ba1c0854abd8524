package service

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/oppdrag"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func month(year int, m time.Month) *domain.YearMonth {
	v := domain.NewYearMonth(year, m)
	return &v
}

func nok(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func decision(caseID, decisionID int64, schedule ...domain.ScheduleEntry) domain.DecisionApproved {
	if len(schedule) == 0 {
		schedule = []domain.ScheduleEntry{{
			PeriodFrom: domain.NewYearMonth(2022, time.February),
			PeriodTo:   month(2030, time.January),
			Amount:     nok("10000"),
			Kind:       domain.LineKindPayment,
		}}
	}
	return domain.DecisionApproved{
		CaseID:        caseID,
		DecisionID:    decisionID,
		CaseType:      domain.CaseTypeBarnepensjon,
		BeneficiaryID: "12345678910",
		Attestant:     "Z111111",
		Saksbehandler: "Z222222",
		Schedule:      schedule,
	}
}

// kvittering is the ledger's reply to req, echoing its case, decision and henvisning.
func kvittering(req *domain.PaymentRequest, severity string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ns2:oppdrag xmlns:ns2="http://www.trygdeetaten.no/skjema/oppdrag">
  <mmel>
    <alvorlighetsgrad>%s</alvorlighetsgrad>
    <beskrMelding>behandlet</beskrMelding>
  </mmel>
  <oppdrag-110>
    <fagsystemId>%d</fagsystemId>
    <oppdrags-linje-150>
      <vedtakId>%d</vedtakId>
      <henvisning>%s</henvisning>
    </oppdrags-linje-150>
  </oppdrag-110>
</ns2:oppdrag>`, severity, req.CaseID, req.DecisionID, domain.CorrelationKey(req.ID)))
}

// harness wires the decision flow against in-memory fakes and the real codec.
type harness struct {
	store      *MockOrderStore
	publisher  *MockPublisher
	events     *MockEvents
	dispatcher *Dispatcher
	processor  *DecisionProcessor
	acks       *AcknowledgementHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     NewMockOrderStore(),
		publisher: &MockPublisher{},
		events:    &MockEvents{},
	}
	codec := oppdrag.NewCodec()
	logger := discardLogger()

	h.dispatcher = NewDispatcher(h.store, codec, h.publisher, time.Second, logger)
	h.processor = NewDecisionProcessor(
		h.store,
		NewPaymentLineBuilder(&sequenceIDs{}),
		NewDecisionVerifier(),
		h.dispatcher,
		h.events,
		logger,
	)
	h.acks = NewAcknowledgementHandler(h.store, codec, h.events, logger)
	return h
}
