package model

// Product is one catalog item. Product descriptions feed the QA knowledge
// base alongside trained documents.
type Product struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"desc"`
}

// User is a storefront account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`

	// Password is stored only server-side and never serialized.
	Password string `json:"-"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries an issued bearer token and its subject.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
