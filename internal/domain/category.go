// Package domain holds the core types of the scoring service: interaction
// categories, per-user score state, and the results of the daily cohort
// analysis.
package domain

// Category identifies one of the six scored interaction kinds.
type Category string

const (
	CategoryPost     Category = "post"
	CategoryLike     Category = "like"
	CategoryComment  Category = "comment"
	CategoryCrypto   Category = "crypto"
	CategoryTipping  Category = "tipping"
	CategoryReferral Category = "referral"
)

// Categories returns all categories in canonical order. The order is fixed
// because the persisted column layout and API payloads rely on it.
func Categories() []Category {
	return []Category{
		CategoryPost,
		CategoryLike,
		CategoryComment,
		CategoryCrypto,
		CategoryTipping,
		CategoryReferral,
	}
}

// Valid reports whether c is one of the six known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPost, CategoryLike, CategoryComment,
		CategoryCrypto, CategoryTipping, CategoryReferral:
		return true
	}
	return false
}

// OneTimeEvent names a bonus that credits a user at most once. Any
// non-empty string is a valid event ID; these are the ones the HTTP
// surface exposes.
type OneTimeEvent string

const (
	EventRegistration OneTimeEvent = "registration"
	EventVerification OneTimeEvent = "verification"
)
