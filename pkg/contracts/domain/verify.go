package domain

// VerifyRequest is the wire payload of POST /verify. Field names are a
// stable external contract shared with the client signing code.
type VerifyRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
	MachineID  string `json:"machine_id" validate:"required"`
	Timestamp  int64  `json:"timestamp"`
	Signature  string `json:"signature" validate:"required"`
}

// VerifyResponse is the wire payload of every /verify response.
// ExpireTime and DaysRemaining are only present on a valid verdict.
type VerifyResponse struct {
	Valid         bool   `json:"valid"`
	Message       string `json:"message"`
	ExpireTime    *int64 `json:"expire_time,omitempty"`
	DaysRemaining *int64 `json:"days_remaining,omitempty"`
}

// HealthResponse reports configuration presence only, never values.
type HealthResponse struct {
	Status      string            `json:"status"`
	Message     string            `json:"message"`
	Environment HealthEnvironment `json:"environment"`
}

// HealthEnvironment holds per-setting presence booleans.
type HealthEnvironment struct {
	SecretKey       bool `json:"secret_key"`
	StoreDSN        bool `json:"store_dsn"`
	StoreConnection bool `json:"store_connection"`
}
