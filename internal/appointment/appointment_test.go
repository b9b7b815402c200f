package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fp(v float64) *float64 { return &v }

func TestMergeEmptyPayloadKeepsSnapshot(t *testing.T) {
	d := Details{
		Intent: IntentConfirmAppointment,
		Customer: Customer{
			Name:      "Maria Perez",
			Phone:     "+584121234567",
			Address:   "Plaza Venezuela, Caracas",
			Latitude:  fp(10.5),
			Longitude: fp(-66.9),
		},
		Service: Service{Requirement: "New installation", Date: "2026-09-15", Time: "10:00"},
	}
	before := d

	d.Merge(Details{})

	assert.Equal(t, before, d)
}

func TestMergeOverwritesPresentFieldsOnly(t *testing.T) {
	d := Details{
		Customer: Customer{Name: "Maria Perez", Email: "maria@example.com"},
		Service:  Service{Requirement: "New installation"},
	}

	d.Merge(Details{
		Intent:   IntentReadyForConfirmation,
		Customer: Customer{Name: "Maria P. Perez", Latitude: fp(10.5), Longitude: fp(-66.9)},
	})

	assert.Equal(t, IntentReadyForConfirmation, d.Intent)
	assert.Equal(t, "Maria P. Perez", d.Customer.Name)
	assert.Equal(t, "maria@example.com", d.Customer.Email)
	assert.Equal(t, "New installation", d.Service.Requirement)
	assert.Equal(t, 10.5, *d.Customer.Latitude)
}

func TestMergeIgnoresPlaceholderValues(t *testing.T) {
	d := Details{Customer: Customer{Sector: "Chacao"}}
	d.Merge(Details{Customer: Customer{Sector: "N/A", City: "null"}})

	assert.Equal(t, "Chacao", d.Customer.Sector)
	assert.Equal(t, "", d.Customer.City)
}

func TestAddressMissing(t *testing.T) {
	cases := []struct {
		name string
		d    Details
		want bool
	}{
		{"empty record", Details{}, true},
		{"address only", Details{Customer: Customer{Address: "Av. Libertador"}}, true},
		{"coords only", Details{Customer: Customer{Latitude: fp(10.5), Longitude: fp(-66.9)}}, true},
		{"missing longitude", Details{Customer: Customer{Address: "Av. Libertador", Latitude: fp(10.5)}}, true},
		{"whitespace address", Details{Customer: Customer{Address: "  ", Latitude: fp(10.5), Longitude: fp(-66.9)}}, true},
		{"complete", Details{Customer: Customer{Address: "Av. Libertador", Latitude: fp(10.5), Longitude: fp(-66.9)}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.d.AddressMissing())
		})
	}
}

func TestIsZero(t *testing.T) {
	assert.True(t, Details{}.IsZero())
	assert.False(t, Details{Intent: IntentError}.IsZero())
	assert.False(t, Details{Customer: Customer{Name: "x"}}.IsZero())
}

func TestClean(t *testing.T) {
	assert.Equal(t, "", Clean("N/A"))
	assert.Equal(t, "", Clean(" null "))
	assert.Equal(t, "", Clean(""))
	assert.Equal(t, "Chacao", Clean("Chacao"))
}
