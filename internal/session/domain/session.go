package domain

// UserProfile is the signed-in user as returned by the backend. Only ProfileCompleted and
// AcceptTerms take part in routing; the rest is carried for the screens.
type UserProfile struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	FullName         string   `json:"fullName"`
	ImageProfile     string   `json:"imageProfile,omitempty"`
	ProfileCompleted bool     `json:"profileCompleted"`
	AcceptTerms      bool     `json:"acceptTerms"`
	Address          string   `json:"address,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Skills           []string `json:"skills,omitempty"`
}

// Clone returns a deep copy of u. Returns nil for a nil receiver.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	if u.Skills != nil {
		c.Skills = append([]string(nil), u.Skills...)
	}
	return &c
}

// Session is the signed-in state: Token and User are both set or both empty.
// Rehydrated flips to true once the persisted session has been loaded and never goes back.
type Session struct {
	Token      string
	User       *UserProfile
	Rehydrated bool
}

// Authenticated reports whether the session carries a bearer token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Clone returns a copy of s that shares no memory with it.
func (s Session) Clone() Session {
	s.User = s.User.Clone()
	return s
}

// Record is the {token, user} pair persisted across process restarts.
type Record struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user"`
}

// Valid reports whether the pair is either fully populated or fully empty.
func (r Record) Valid() bool {
	return (r.Token == "") == (r.User == nil)
}

// Empty reports whether the record holds no session.
func (r Record) Empty() bool {
	return r.Token == "" && r.User == nil
}
