package models

// Account is a stored credential. Password holds the plaintext in memory;
// it is only ever written to disk encrypted.
type Account struct {
	// ID is assigned by the store on first save. Zero means not yet saved.
	ID       int64  `json:"id,omitempty"`
	Title    string `json:"title"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// IsNew reports whether the account has not been saved yet.
func (a *Account) IsNew() bool {
	return a.ID == 0
}
