package pricing

import (
	"errors"
	"strings"
)

// ErrUnknownZone is returned when a city maps to no shipping zone.
var ErrUnknownZone = errors.New("no shipping zone for city")

// zone identifiers.
const (
	ZoneCentral = "central"
	ZoneWestern = "western"
	ZoneEastern = "eastern"
	ZoneRemote  = "remote"
)

// cityZones maps destination cities to zones. Lookup is
// case-insensitive; Arabic spellings share an entry with the
// transliterated name.
var cityZones = map[string]string{
	"riyadh":    ZoneCentral,
	"الرياض":    ZoneCentral,
	"kharj":     ZoneCentral,
	"jeddah":    ZoneWestern,
	"جدة":       ZoneWestern,
	"mecca":     ZoneWestern,
	"makkah":    ZoneWestern,
	"مكة":       ZoneWestern,
	"medina":    ZoneWestern,
	"المدينة":   ZoneWestern,
	"taif":      ZoneWestern,
	"dammam":    ZoneEastern,
	"الدمام":    ZoneEastern,
	"khobar":    ZoneEastern,
	"الخبر":     ZoneEastern,
	"dhahran":   ZoneEastern,
	"jubail":    ZoneEastern,
	"abha":      ZoneRemote,
	"tabuk":     ZoneRemote,
	"تبوك":      ZoneRemote,
	"jazan":     ZoneRemote,
	"najran":    ZoneRemote,
	"hail":      ZoneRemote,
	"al-ahsa":   ZoneEastern,
	"buraidah":  ZoneCentral,
	"بريدة":     ZoneCentral,
	"khamis":    ZoneRemote,
}

// bracket prices one zone: base cost below the free-shipping
// threshold, reduced cost above it, and a surcharge applied when any
// line in the order is bulky.
type bracket struct {
	base           float64
	threshold      float64
	overThreshold  float64
	bulkySurcharge float64
}

var zoneBrackets = map[string]bracket{
	ZoneCentral: {base: 20, threshold: 300, overThreshold: 0, bulkySurcharge: 30},
	ZoneWestern: {base: 25, threshold: 300, overThreshold: 10, bulkySurcharge: 35},
	ZoneEastern: {base: 25, threshold: 300, overThreshold: 10, bulkySurcharge: 35},
	ZoneRemote:  {base: 40, threshold: 500, overThreshold: 20, bulkySurcharge: 50},
}

// ZoneForCity resolves a destination city to its shipping zone.
func ZoneForCity(city string) (string, error) {
	zone, ok := cityZones[strings.ToLower(strings.TrimSpace(city))]
	if !ok {
		return "", ErrUnknownZone
	}
	return zone, nil
}

// ShippingCost resolves the zone/weight shipping table for a
// destination city, order value and bulkiness.
func ShippingCost(city string, orderValue float64, hasBulky bool) (float64, error) {
	zone, err := ZoneForCity(city)
	if err != nil {
		return 0, err
	}

	b := zoneBrackets[zone]
	cost := b.base
	if orderValue >= b.threshold {
		cost = b.overThreshold
	}
	if hasBulky {
		cost += b.bulkySurcharge
	}
	return cost, nil
}
