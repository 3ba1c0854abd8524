package oppdrag

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
)

// kvitteringXML matches on local names only, so any namespace prefix the
// ledger puts on the reply is accepted.
type kvitteringXML struct {
	Mmel       mmelXML `xml:"mmel"`
	Oppdrag110 struct {
		FagsystemID string `xml:"fagsystemId"`
		Linjer      []struct {
			VedtakID   string `xml:"vedtakId"`
			Henvisning string `xml:"henvisning"`
		} `xml:"oppdrags-linje-150"`
	} `xml:"oppdrag-110"`
}

type mmelXML struct {
	SystemID         string `xml:"systemId"`
	Alvorlighetsgrad string `xml:"alvorlighetsgrad"`
	BeskrMelding     string `xml:"beskrMelding"`
}

// Decode extracts the severity, detail and correlation key from a kvittering.
// The correlation key is the henvisning of the first line that carries one.
// Missing elements decode to empty values; only payloads that are not
// well-formed XML fail, with a *domain.ProtocolError.
func (c *Codec) Decode(payload []byte) (domain.AcknowledgementReceipt, error) {
	var doc kvitteringXML
	if err := xml.NewDecoder(bytes.NewReader(payload)).Decode(&doc); err != nil {
		return domain.AcknowledgementReceipt{}, &domain.ProtocolError{Payload: payload, Err: err}
	}

	receipt := domain.AcknowledgementReceipt{
		Severity: strings.TrimSpace(doc.Mmel.Alvorlighetsgrad),
		Detail:   strings.TrimSpace(doc.Mmel.BeskrMelding),
		CaseRef:  strings.TrimSpace(doc.Oppdrag110.FagsystemID),
		Raw:      payload,
	}

	for _, l := range doc.Oppdrag110.Linjer {
		if receipt.DecisionRef == "" {
			receipt.DecisionRef = strings.TrimSpace(l.VedtakID)
		}
		if ref := strings.TrimSpace(l.Henvisning); ref != "" {
			receipt.CorrelationKey = ref
			break
		}
	}
	return receipt, nil
}
