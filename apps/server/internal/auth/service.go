package auth

// Service is the account/session contract consumed by the HTTP layer and
// the websocket gateway.
type Service interface {
	Register(username, password string) (accountID uint64, sessionToken string, err error)
	Login(username, password string) (accountID uint64, sessionToken string, err error)

	// Guest creates a throwaway account so a player can sit down without
	// registering. The returned username is what other players see.
	Guest(displayName string) (accountID uint64, username string, sessionToken string, err error)

	ResolveSession(token string) (accountID uint64, username string, ok bool)
	Logout(token string)
	Close() error
}
