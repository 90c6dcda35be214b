// Package pricing implements the quote engine: a pure function from service
// type, load size, distance and surge state to a customer price. It holds no
// state and performs no I/O, so the same inputs within a pricing epoch always
// produce the same quote. The engine is called once per matched candidate
// and once for the winning quote, and the results must agree.
package pricing

import "math"

// ServiceType identifies a category of work a customer can book.
type ServiceType string

const (
	ServiceJunkRemoval   ServiceType = "junk_removal"
	ServiceFurnitureMove ServiceType = "furniture_move"
	ServiceApplianceHaul ServiceType = "appliance_haul"
	ServiceYardDebris    ServiceType = "yard_debris"
	ServiceDumpsterRun   ServiceType = "dumpster_run"
	ServiceRecurringYard ServiceType = "recurring_yard"
)

// VehicleType optionally narrows the vehicle the job requires.
type VehicleType string

const (
	VehicleAny         VehicleType = ""
	VehiclePickup      VehicleType = "pickup"
	VehicleBoxTruck    VehicleType = "box_truck"
	VehicleDumpTrailer VehicleType = "dump_trailer"
)

// LoadSize buckets the volume of a job.
type LoadSize string

const (
	LoadMinimum LoadSize = "minimum"
	LoadQuarter LoadSize = "quarter"
	LoadHalf    LoadSize = "half"
	LoadThree   LoadSize = "three_quarter"
	LoadFull    LoadSize = "full"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64
	Lng float64
}

// rate describes the pricing entries for one service type, all in cents.
type rate struct {
	BaseCents  int64 // flat call-out component
	PerKMCents int64 // distance component between pickup and destination
	LoadCents  map[LoadSize]int64
}

// rateTable is the pricing epoch's lookup. Values are the platform's
// documented list prices.
var rateTable = map[ServiceType]rate{
	ServiceJunkRemoval: {
		BaseCents:  4900,
		PerKMCents: 120,
		LoadCents: map[LoadSize]int64{
			LoadMinimum: 3000, LoadQuarter: 7900, LoadHalf: 14900, LoadThree: 21900, LoadFull: 29900,
		},
	},
	ServiceFurnitureMove: {
		BaseCents:  5900,
		PerKMCents: 150,
		LoadCents: map[LoadSize]int64{
			LoadMinimum: 4000, LoadQuarter: 8900, LoadHalf: 15900, LoadThree: 22900, LoadFull: 31900,
		},
	},
	ServiceApplianceHaul: {
		BaseCents:  6900,
		PerKMCents: 150,
		LoadCents: map[LoadSize]int64{
			LoadMinimum: 5000, LoadQuarter: 9900, LoadHalf: 16900, LoadThree: 23900, LoadFull: 32900,
		},
	},
	ServiceYardDebris: {
		BaseCents:  3900,
		PerKMCents: 100,
		LoadCents: map[LoadSize]int64{
			LoadMinimum: 2500, LoadQuarter: 5900, LoadHalf: 10900, LoadThree: 15900, LoadFull: 20900,
		},
	},
	ServiceDumpsterRun: {
		BaseCents:  4400,
		PerKMCents: 130,
		LoadCents: map[LoadSize]int64{
			LoadMinimum: 3000, LoadQuarter: 6900, LoadHalf: 11900, LoadThree: 16900, LoadFull: 21900,
		},
	},
	ServiceRecurringYard: {
		BaseCents:  2900,
		PerKMCents: 100,
		LoadCents: map[LoadSize]int64{
			LoadMinimum: 2000, LoadQuarter: 4900, LoadHalf: 8900, LoadThree: 12900, LoadFull: 16900,
		},
	},
}

// vehicleMultiplier applies when a specific vehicle class is required.
var vehicleMultiplier = map[VehicleType]float64{
	VehicleAny:         1.0,
	VehiclePickup:      1.0,
	VehicleBoxTruck:    1.15,
	VehicleDumpTrailer: 1.25,
}

// SurgeState captures the matching supply/demand snapshot for a region at
// quote time. It is an input, never read from anywhere, so the engine stays
// deterministic within an epoch.
type SurgeState struct {
	OpenRequests     int
	AvailableHaulers int
	Cap              float64 // maximum multiplier; <=1 means no surge
}

// Multiplier derives the surge multiplier: 1.0 when supply covers demand,
// rising 0.25 per unit of excess demand ratio, capped.
func (s SurgeState) Multiplier() float64 {
	if s.AvailableHaulers <= 0 {
		if s.OpenRequests <= 0 {
			return 1.0
		}
		return s.cap()
	}
	ratio := float64(s.OpenRequests) / float64(s.AvailableHaulers)
	if ratio <= 1.0 {
		return 1.0
	}
	m := 1.0 + 0.25*(ratio-1.0)
	if cap := s.cap(); m > cap {
		return cap
	}
	// quantize to 2 decimals so repeated quotes agree bit-for-bit
	return math.Round(m*100) / 100
}

func (s SurgeState) cap() float64 {
	if s.Cap > 1.0 {
		return s.Cap
	}
	return 2.5
}

// QuoteInput is everything the engine needs to price a request.
type QuoteInput struct {
	ServiceType ServiceType
	LoadSize    LoadSize
	Pickup      Coordinates
	Destination Coordinates
	VehicleType VehicleType
	Surge       SurgeState
}

// QuoteResult is the priced outcome.
type QuoteResult struct {
	TotalCents      int64
	SurgeMultiplier float64
}

// Quote computes the customer price for the given inputs.
// Unknown service types and load sizes fall back to junk removal / minimum
// load so a stale client can never produce a zero quote.
func Quote(in QuoteInput) QuoteResult {
	r, ok := rateTable[in.ServiceType]
	if !ok {
		r = rateTable[ServiceJunkRemoval]
	}
	loadCents, ok := r.LoadCents[in.LoadSize]
	if !ok {
		loadCents = r.LoadCents[LoadMinimum]
	}

	distanceKM := haversineKM(in.Pickup, in.Destination)
	distanceCents := RoundCents(distanceKM * float64(r.PerKMCents))

	subtotal := r.BaseCents + loadCents + distanceCents

	mult, ok := vehicleMultiplier[in.VehicleType]
	if !ok {
		mult = 1.0
	}
	surge := in.Surge.Multiplier()

	return QuoteResult{
		TotalCents:      RoundCents(float64(subtotal) * mult * surge),
		SurgeMultiplier: surge,
	}
}

// WithProtectionFee returns the customer-facing total: the base service
// price marked up by the protection-fee rate.
func WithProtectionFee(baseCents int64, rate float64) int64 {
	return RoundCents(float64(baseCents) * (1 + rate))
}

// BaseFromTotal strips the protection fee back out of a customer total.
// The rate is stored per request at creation; this derivation exists only
// for legacy rows that predate the stored rate.
func BaseFromTotal(totalCents int64, rate float64) int64 {
	if rate <= 0 {
		return totalCents
	}
	return RoundCents(float64(totalCents) / (1 + rate))
}

// RoundCents rounds half-up to a whole number of cents.
func RoundCents(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

const earthRadiusKM = 6371.0

func haversineKM(a, b Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}
