package session

// Record is the cached projection of a user account.
type Record struct {
	UserID    string
	Username  string
	Phone     string
	Email     string
	AvatarURL string
	Bio       string
	Role      uint8
	Status    uint8

	// Unix milliseconds.
	CreatedAt int64
	UpdatedAt int64
}
