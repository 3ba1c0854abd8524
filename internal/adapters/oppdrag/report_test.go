package oppdrag_test

import (
	"strings"
	"testing"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/oppdrag"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeGrensesnitt(t *testing.T) {
	from := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	key := from.Add(time.Hour)

	accepted := newRequest(t, domain.PaymentLine{ID: 1, PeriodFrom: domain.NewYearMonth(2024, time.January), Amount: amount(100), Kind: domain.LineKindPayment})
	accepted.Status = domain.StatusAccepted
	accepted.ReconciliationKey = &key

	rejected := newRequest(t, domain.PaymentLine{ID: 2, PeriodFrom: domain.NewYearMonth(2024, time.January), Amount: amount(50), Kind: domain.LineKindPayment})
	rejected.CaseID = 999
	rejected.Status = domain.StatusRejected
	rejected.ReconciliationKey = &key
	rejected.Receipt = &domain.AcknowledgementReceipt{Severity: "08"}

	seg := domain.ReportSegment{
		CorrelationID: "run-1",
		Index:         1,
		Total:         2,
		RoutingCode:   "BARNEPE",
		Period:        domain.ReconciliationPeriod{From: from, To: to},
		Orders:        []*domain.PaymentRequest{accepted, rejected},
		Totals:        domain.OutcomeTotals{Accepted: 1, Rejected: 1},
		Amount:        decimal.NewFromInt(150),
	}

	body, err := oppdrag.NewCodec().EncodeGrensesnitt(seg)
	require.NoError(t, err)

	xml := string(body)
	assert.True(t, strings.HasPrefix(xml, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, xml, "<avstemmingType>GRSN</avstemmingType>")
	assert.Contains(t, xml, "<underkomponentKode>BARNEPE</underkomponentKode>")
	assert.Contains(t, xml, "<avleverendeAvstemmingId>run-1</avleverendeAvstemmingId>")
	assert.Contains(t, xml, "<nummer>1</nummer>")
	assert.Contains(t, xml, "<antall>2</antall>")
	assert.Contains(t, xml, "<totalAntall>2</totalAntall>")
	assert.Contains(t, xml, "<totalBelop>150.00</totalBelop>")
	assert.Contains(t, xml, "<datoAvstemtFom>2024031400</datoAvstemtFom>")
	assert.Contains(t, xml, "<datoAvstemtTom>2024031500</datoAvstemtTom>")
	assert.Contains(t, xml, "<nokkelFom>"+oppdrag.NokkelAvstemming(from)+"</nokkelFom>")
	assert.Equal(t, 1, strings.Count(xml, "<detalj>"), "only the rejected order is itemised")
	assert.Contains(t, xml, "<avleverendeTransaksjonNokkel>999</avleverendeTransaksjonNokkel>")
	assert.Contains(t, xml, "<tidspunkt>2024-03-14-01.00.00.000000</tidspunkt>", "itemised by the key the order carried")
}

func TestEncodeKonsistens(t *testing.T) {
	at := time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC)
	seg := domain.ConsistencySegment{
		CorrelationID: "kons-1",
		Index:         1,
		Total:         1,
		RoutingCode:   "OMSTILL",
		At:            at,
		Cases: []domain.ActiveCase{{
			CaseID:        42,
			DecisionID:    7,
			CaseType:      domain.CaseTypeOmstillingsstonad,
			BeneficiaryID: "01010112345",
			Attestant:     "Z111111",
			Lines: []domain.PaymentLine{
				{ID: 11, PeriodFrom: domain.NewYearMonth(2024, time.January), Amount: amount(9000), Kind: domain.LineKindPayment, ClassificationCode: "OMSTILLINGOR"},
			},
		}},
	}

	body, err := oppdrag.NewCodec().EncodeKonsistens(seg)
	require.NoError(t, err)

	xml := string(body)
	assert.Contains(t, xml, "<avstemmingType>KONS</avstemmingType>")
	assert.Contains(t, xml, "<tidspunktAvstemmingTom>2024-03-01-06.00.00.000000</tidspunktAvstemmingTom>")
	assert.Contains(t, xml, "<fagsystemId>42</fagsystemId>")
	assert.Contains(t, xml, "<vedtakPeriode>")
	assert.Contains(t, xml, "<fom>2024-01-01</fom>")
	assert.NotContains(t, xml, "<tom>")
	assert.Contains(t, xml, "<attestantId>Z111111</attestantId>")
	assert.Contains(t, xml, "<totalBelop>9000.00</totalBelop>")
}

func TestSegmentName(t *testing.T) {
	at := time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, "GRENSESNITT/2024-03-01/run-1-002.xml", oppdrag.SegmentName(domain.BatchKindGrensesnitt, "run-1", 2, at))
}
