package user

// Summary is the public part of a user returned next to balances and tokens.
type Summary struct {
	Name string `json:"name"`
}

type CreditsResponse struct {
	Success bool    `json:"success"`
	Credits int64   `json:"credits"`
	User    Summary `json:"user"`
}
