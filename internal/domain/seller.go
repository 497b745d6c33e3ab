package domain

// Address is a seller's postal address
type Address struct {
	City       string `json:"city"`
	County     string `json:"county"`
	Address    string `json:"address"`
	PostalCode string `json:"postalCode"`
}

// Contact holds a seller's contact details
type Contact struct {
	Email              string  `json:"email"`
	PhoneNumber        string  `json:"phoneNumber"`
	AddressInformation Address `json:"addressInformation"`
}

// Seller is the farm profile aggregate. Its ID is the owning account's
// identity id, assigned before first creation and never minted by the store.
// ProductIDs is a denormalized cache of the seller's catalog entries; the
// catalog itself is the source of truth and the cache is rebuilt, never
// hand-patched, after every catalog mutation.
type Seller struct {
	ID                 string   `json:"id"`
	FullName           string   `json:"fullName"`
	ContactInformation Contact  `json:"contactInformation"`
	FarmName           string   `json:"farmName"`
	FarmDescription    string   `json:"farmDescription"`
	ProductIDs         []string `json:"productIds"`
	Rating             float64  `json:"rating"`
}
