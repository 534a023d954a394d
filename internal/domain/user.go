package domain

// User is a registered account. The backend currently ships with a fixed
// seed list; there is no signup flow.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
