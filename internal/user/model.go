package user

// User is a directory entry used to address notifications.
type User struct {
	ID       string
	Email    string
	FullName string
}

func (u *User) DisplayName(fallback string) string {
	if u == nil || u.FullName == "" {
		return fallback
	}
	return u.FullName
}
