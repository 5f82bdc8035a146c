package model

// AssetInput is the payload for registering an asset.
type AssetInput struct {
	Name            string `json:"name"`
	Code            string `json:"code"`
	Branch          string `json:"branch,omitempty"`
	Location        string `json:"location,omitempty"`
	ProcurementYear int    `json:"procurementYear,omitempty"`
}

// AssetPatch is a partial asset update. Nil fields are left untouched.
type AssetPatch struct {
	Name            *string `json:"name,omitempty"`
	Code            *string `json:"code,omitempty"`
	Branch          *string `json:"branch,omitempty"`
	Location        *string `json:"location,omitempty"`
	ProcurementYear *int    `json:"procurementYear,omitempty"`
}

// UserInput is the payload for registering a dashboard account. Password
// is passed through to the API and never stored or logged.
type UserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Role     Role   `json:"role"`
}
