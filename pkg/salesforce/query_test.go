package salesforce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient captures the SOQL it receives and returns canned rows.
type recordingClient struct {
	lastSOQL      string
	opportunities []Opportunity
	contacts      []OpportunityContact
	err           error
}

func (c *recordingClient) Query(_ context.Context, soql string, out any) error {
	c.lastSOQL = soql
	if c.err != nil {
		return c.err
	}
	switch v := out.(type) {
	case *[]Opportunity:
		*v = c.opportunities
	case *[]OpportunityContact:
		*v = c.contacts
	}
	return nil
}

func (c *recordingClient) DescribeSObject(context.Context, string) (*SObjectDescription, error) {
	return nil, nil
}

func TestFindOpportunityByID(t *testing.T) {
	client := &recordingClient{opportunities: []Opportunity{{ID: "006A", Name: "Acme"}}}

	opp, err := FindOpportunityByID(context.Background(), client, "006A")
	require.NoError(t, err)
	require.NotNil(t, opp)
	assert.Equal(t, "Acme", opp.Name)

	assert.Contains(t, client.lastSOQL, "FROM Opportunity WHERE Id = '006A' LIMIT 1")
	assert.Contains(t, client.lastSOQL, "MainCompetitors__c")
	assert.Contains(t, client.lastSOQL, "Owner.Name")
}

func TestFindOpportunityByID_NotFound(t *testing.T) {
	opp, err := FindOpportunityByID(context.Background(), &recordingClient{}, "006B")
	require.NoError(t, err)
	assert.Nil(t, opp)
}

func TestFindOpportunityByID_QueryError(t *testing.T) {
	client := &recordingClient{err: assert.AnError}
	_, err := FindOpportunityByID(context.Background(), client, "006A")
	assert.Error(t, err)
}

func TestListOpportunityContacts(t *testing.T) {
	client := &recordingClient{contacts: []OpportunityContact{
		{ContactName: "Dana Whitfield", Role: "Economic Buyer", IsPrimary: true},
	}}

	contacts, err := ListOpportunityContacts(context.Background(), client, "006A")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Dana Whitfield", contacts[0].ContactName)

	assert.Contains(t, client.lastSOQL, "FROM OpportunityContactRole WHERE OpportunityId = '006A'")
	assert.Contains(t, client.lastSOQL, "ORDER BY IsPrimary DESC")
}

func TestEscapeSoql(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeSoql("O'Brien"))
	assert.Equal(t, "plain", escapeSoql("plain"))
}
