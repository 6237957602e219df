package domain

type AuthStatus int

const (
	AuthUnresolved AuthStatus = iota
	AuthAuthenticated
	AuthUnauthenticated
)

func (s AuthStatus) String() string {
	switch s {
	case AuthAuthenticated:
		return "authenticated"
	case AuthUnauthenticated:
		return "unauthenticated"
	default:
		return "unresolved"
	}
}

// AuthState is the tri-state session signal pages gate on. Credential is the
// raw session token forwarded to the backend on behalf of the user.
type AuthState struct {
	Status     AuthStatus
	User       *User
	Credential string
}

func Unresolved() AuthState { return AuthState{Status: AuthUnresolved} }

func Unauthenticated() AuthState { return AuthState{Status: AuthUnauthenticated} }

func Authenticated(user User, credential string) AuthState {
	return AuthState{Status: AuthAuthenticated, User: &user, Credential: credential}
}

func (a AuthState) IsAuthenticated() bool {
	return a.Status == AuthAuthenticated && a.User != nil
}

// ContextKey identifies the credential context a fetch was issued under.
// Two states with the same key may share fetch results.
func (a AuthState) ContextKey() string {
	if !a.IsAuthenticated() {
		return a.Status.String()
	}
	return a.User.ID + "\x00" + a.Credential
}
