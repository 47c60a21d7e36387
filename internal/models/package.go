package models

// CreditPackage is a purchasable bundle of generation credits.
// Prices are in IDR.
type CreditPackage struct {
	Plan    string `json:"plan"`
	Credits int    `json:"credits"`
	Price   int64  `json:"price"`
}

// CreditPackages is the catalog keyed by plan name.
var CreditPackages = map[string]CreditPackage{
	"starter": {Plan: "starter", Credits: 5, Price: 25000},
	"pro":     {Plan: "pro", Credits: 10, Price: 45000},
	"premium": {Plan: "premium", Credits: 25, Price: 100000},
}

// OneOffPrice is the pay-per-image price in IDR for a single generation.
const OneOffPrice int64 = 10000
