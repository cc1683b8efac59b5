package domain

// UserIdentity is the cached profile. Fields are pass-through for display;
// nothing here is interpreted beyond caching and invalidation.
type UserIdentity struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Flags     []string
}

// CredentialRecord is the durable mirror of the session, written whenever
// the token pair changes and erased on logout. InstallID identifies this
// install across token rotations; it is regenerated after a logout.
type CredentialRecord struct {
	InstallID string
	Session   Session
	Identity  *UserIdentity
}
