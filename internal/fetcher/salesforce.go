package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-intake/internal/model"
	sf "github.com/sells-group/deal-intake/pkg/salesforce"
)

// SalesforceSource renders one Opportunity and its contact roles as a
// crm_export document. The declared type skips classification: the
// system of record is never ambiguous about what it is.
type SalesforceSource struct {
	Client        sf.Client
	OpportunityID string
}

func (s *SalesforceSource) Fetch(ctx context.Context, dealID string) ([]model.Document, error) {
	opp, err := sf.FindOpportunityByID(ctx, s.Client, s.OpportunityID)
	if err != nil {
		return nil, err
	}
	if opp == nil {
		return nil, eris.Errorf("fetcher: opportunity not found: %s", s.OpportunityID)
	}
	contacts, err := sf.ListOpportunityContacts(ctx, s.Client, s.OpportunityID)
	if err != nil {
		return nil, err
	}

	doc := model.NewDocument(dealID, "salesforce/opportunity_"+opp.ID+".txt", renderOpportunity(opp, contacts))
	doc.DeclaredType = model.DocTypeCRMExport
	return []model.Document{doc}, nil
}

// renderOpportunity flattens the CRM record into the labeled key-value
// form the crm_export extractor reads.
func renderOpportunity(opp *sf.Opportunity, contacts []sf.OpportunityContact) string {
	var b strings.Builder
	writeLine := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}
	}

	writeLine("Opportunity Name", opp.Name)
	writeLine("Account Name", opp.AccountName)
	writeLine("Stage", opp.StageName)
	if opp.Amount > 0 {
		writeLine("Amount", fmt.Sprintf("%.0f", opp.Amount))
	}
	writeLine("Close Date", opp.CloseDate)
	writeLine("Owner", opp.OwnerName)
	writeLine("Competition", opp.MainCompetitors)
	writeLine("Next Step", opp.NextStep)

	for _, c := range contacts {
		switch strings.ToLower(c.Role) {
		case "economic buyer", "economic decision maker":
			writeLine("Economic Buyer", c.ContactName)
		case "champion":
			writeLine("Champion", c.ContactName)
		default:
			writeLine("Contact", c.ContactName)
		}
	}

	if strings.TrimSpace(opp.Description) != "" {
		b.WriteString("\n")
		b.WriteString(opp.Description)
		b.WriteString("\n")
	}
	return b.String()
}
