package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Opportunity represents a Salesforce Opportunity record, the CRM unit
// the intake pipeline turns into a crm_export document.
type Opportunity struct {
	ID              string  `json:"Id" salesforce:"Id"`
	Name            string  `json:"Name" salesforce:"Name"`
	StageName       string  `json:"StageName" salesforce:"StageName"`
	Amount          float64 `json:"Amount" salesforce:"Amount"`
	CloseDate       string  `json:"CloseDate" salesforce:"CloseDate"`
	OwnerName       string  `json:"Owner.Name" salesforce:"Owner.Name"`
	AccountName     string  `json:"Account.Name" salesforce:"Account.Name"`
	NextStep        string  `json:"NextStep" salesforce:"NextStep"`
	Description     string  `json:"Description" salesforce:"Description"`
	MainCompetitors string  `json:"MainCompetitors__c" salesforce:"MainCompetitors__c"`
}

// opportunityFields are the SOQL fields selected for Opportunity queries.
var opportunityFields = []string{
	"Id", "Name", "StageName", "Amount", "CloseDate",
	"Owner.Name", "Account.Name", "NextStep", "Description",
	"MainCompetitors__c",
}

// OpportunityContact is one row of OpportunityContactRole joined to its
// Contact, carrying the explicit role labels the CRM holds.
type OpportunityContact struct {
	ContactName string `json:"Contact.Name" salesforce:"Contact.Name"`
	Title       string `json:"Contact.Title" salesforce:"Contact.Title"`
	Email       string `json:"Contact.Email" salesforce:"Contact.Email"`
	Role        string `json:"Role" salesforce:"Role"`
	IsPrimary   bool   `json:"IsPrimary" salesforce:"IsPrimary"`
}

// FindOpportunityByID queries Salesforce for an Opportunity by its ID.
// Returns nil if no opportunity is found.
func FindOpportunityByID(ctx context.Context, c Client, id string) (*Opportunity, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Opportunity WHERE Id = '%s' LIMIT 1",
		strings.Join(opportunityFields, ", "),
		escapeSoql(id),
	)

	var opps []Opportunity
	if err := c.Query(ctx, soql, &opps); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find opportunity by id %s", id))
	}
	if len(opps) == 0 {
		return nil, nil
	}
	return &opps[0], nil
}

// ListOpportunityContacts queries the contact roles attached to an
// Opportunity.
func ListOpportunityContacts(ctx context.Context, c Client, opportunityID string) ([]OpportunityContact, error) {
	soql := fmt.Sprintf(
		"SELECT Contact.Name, Contact.Title, Contact.Email, Role, IsPrimary"+
			" FROM OpportunityContactRole WHERE OpportunityId = '%s' ORDER BY IsPrimary DESC",
		escapeSoql(opportunityID),
	)

	var contacts []OpportunityContact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: list contacts for opportunity %s", opportunityID))
	}
	return contacts, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
