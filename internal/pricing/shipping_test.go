package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneForCity(t *testing.T) {
	tests := []struct {
		city string
		zone string
	}{
		{"Riyadh", ZoneCentral},
		{"riyadh", ZoneCentral},
		{"  Jeddah  ", ZoneWestern},
		{"الرياض", ZoneCentral},
		{"Dammam", ZoneEastern},
		{"Tabuk", ZoneRemote},
	}
	for _, tt := range tests {
		zone, err := ZoneForCity(tt.city)
		require.NoError(t, err, tt.city)
		assert.Equal(t, tt.zone, zone, tt.city)
	}
}

func TestZoneForCityUnknown(t *testing.T) {
	_, err := ZoneForCity("Atlantis")
	assert.ErrorIs(t, err, ErrUnknownZone)
}

func TestShippingCostBelowThreshold(t *testing.T) {
	cost, err := ShippingCost("Riyadh", 100, false)
	require.NoError(t, err)
	assert.Equal(t, 20.0, cost)
}

func TestShippingCostAtThreshold(t *testing.T) {
	cost, err := ShippingCost("Riyadh", 300, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cost)
}

func TestShippingCostBulkySurcharge(t *testing.T) {
	cost, err := ShippingCost("Jeddah", 100, true)
	require.NoError(t, err)
	assert.Equal(t, 60.0, cost)

	// surcharge still applies above the free threshold
	cost, err = ShippingCost("Jeddah", 400, true)
	require.NoError(t, err)
	assert.Equal(t, 45.0, cost)
}

func TestShippingCostRemoteZone(t *testing.T) {
	cost, err := ShippingCost("Abha", 400, false)
	require.NoError(t, err)
	assert.Equal(t, 40.0, cost)

	cost, err = ShippingCost("Abha", 500, false)
	require.NoError(t, err)
	assert.Equal(t, 20.0, cost)
}

func TestShippingCostUnknownCity(t *testing.T) {
	_, err := ShippingCost("Atlantis", 100, false)
	assert.ErrorIs(t, err, ErrUnknownZone)
}
